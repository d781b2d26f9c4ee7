package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeTriggers(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	header := rec.Header().Get("HX-Trigger")
	require.NotEmpty(t, header)
	var triggers map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(header), &triggers))
	return triggers
}

func TestHTMXResponseTriggers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerBillCreated("2024-06").
		TriggerMonthRefresh("2024-06").
		TriggerFormReset().
		Write(rec)

	require.Equal(t, 200, rec.Code)
	triggers := decodeTriggers(t, rec)
	require.Contains(t, triggers, "bill:created")
	require.Contains(t, triggers, "month:refresh")
	require.Contains(t, triggers, "form:reset")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(triggers["bill:created"], &payload))
	require.Equal(t, "2024-06", payload["month"])
}

func TestHTMXResponseNotification(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().TriggerErrorNotification("Qualcosa è andato storto").Write(rec)

	triggers := decodeTriggers(t, rec)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(triggers["show-notification"], &payload))
	require.Equal(t, "error", payload["type"])
	require.Equal(t, "Qualcosa è andato storto", payload["message"])
	require.EqualValues(t, 5000, payload["duration"])
}

func TestHTMXResponseBodyAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		Status(201).
		BodyHTML(`<div class="success">Creata</div>`).
		Write(rec)

	require.Equal(t, 201, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "Creata")
	require.Empty(t, rec.Header().Get("HX-Trigger"), "no triggers, no header")
}

func TestErrorResponsesEscapeHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	UnprocessableEntityError(`importo <script>alert(1)</script>`).Write(rec)

	require.Equal(t, 422, rec.Code)
	body := rec.Body.String()
	require.NotContains(t, body, "<script>")
	require.Contains(t, body, "&lt;script&gt;")
	require.Contains(t, body, `class="error"`)
}

func TestErrorResponseStatusCodes(t *testing.T) {
	cases := []struct {
		build func(string) *HTMXResponseBuilder
		code  int
	}{
		{BadRequestError, 400},
		{NotFoundError, 404},
		{ConflictError, 409},
		{UnprocessableEntityError, 422},
		{InternalServerError, 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.build("errore").Write(rec)
		require.Equal(t, tc.code, rec.Code)
	}
}
