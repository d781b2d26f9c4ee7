package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bollette/internal/core"
)

// Event types carried on the bill event queue.
const (
	EventBillCreated = "bill.created"
	EventBillPaid    = "bill.paid"
	EventBillDeleted = "bill.deleted"
)

// BillEventMessage notifies the worker that something happened to a bill.
// The payload is intentionally thin: the worker re-reads the bill from
// storage, so a stale message can never overwrite fresher state.
type BillEventMessage struct {
	Type       string    `json:"type"`
	BillID     string    `json:"bill_id"`
	Month      string    `json:"month"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBillEvent(eventType, billID string, month core.MonthKey) *BillEventMessage {
	return &BillEventMessage{
		Type:       eventType,
		BillID:     billID,
		Month:      string(month),
		OccurredAt: time.Now(),
	}
}

func (m *BillEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillEventFromJSON(data []byte) (*BillEventMessage, error) {
	var m BillEventMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal bill event: %w", err)
	}
	if m.Type == "" || m.BillID == "" {
		return nil, fmt.Errorf("bill event missing type or bill_id")
	}
	return &m, nil
}
