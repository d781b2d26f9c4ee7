package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"bollette/internal/core"
	"bollette/internal/services"
)

// handleCreateBill creates a one-off bill from the month page form.
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	categoryID := sanitizeInput(r.Form.Get("category_id"))
	bankAccount := sanitizeInput(r.Form.Get("bank_account"))

	amount, err := ParseAmountField(r.Form, "amount")
	if err != nil {
		UnprocessableEntityError("Importo non valido").Write(w)
		return
	}
	dueDate, err := ParseDateField(r.Form, "due_date")
	if err != nil {
		UnprocessableEntityError("Data di scadenza non valida").Write(w)
		return
	}

	bill, err := s.bills.CreateOneOffBill(r.Context(), services.OneOffBillInput{
		Name:        name,
		CategoryID:  categoryID,
		AmountDue:   amount,
		DueDate:     dueDate,
		BankAccount: bankAccount,
	})
	if err != nil {
		s.writeBillError(w, r, err)
		return
	}

	s.invalidatePages()
	NewHTMXResponse().
		TriggerBillCreated(string(bill.Month)).
		TriggerMonthRefresh(string(bill.Month)).
		TriggerFormReset().
		BodyHTML(`<div class="success">Bolletta registrata: ` +
			template.HTMLEscapeString(bill.Name) + ` — ` +
			template.HTMLEscapeString(formatAmount(bill.AmountDue)) + `</div>`).
		Write(w)
}

// handleToggleBill flips the paid state of a bill.
func (s *Server) handleToggleBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Bolletta mancante").Write(w)
		return
	}

	if err := s.bills.TogglePaid(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Toggle paid error", "error", err, "bill_id", id)
		InternalServerError("Errore aggiornando lo stato").Write(w)
		return
	}

	month := s.monthParamOrNow(r)
	s.invalidatePages()
	NewHTMXResponse().
		TriggerBillUpdated(string(month)).
		TriggerMonthRefresh(string(month)).
		Write(w)
}

// handleUpdateBill applies an inline edit to amount, due date, or account.
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Bolletta mancante").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	var patch services.BillPatch
	if r.Form.Has("amount") {
		amount, err := ParseAmountField(r.Form, "amount")
		if err != nil {
			UnprocessableEntityError("Importo non valido").Write(w)
			return
		}
		patch.AmountDue = &amount
	}
	if r.Form.Has("due_date") {
		dueDate, err := ParseDateField(r.Form, "due_date")
		if err != nil {
			UnprocessableEntityError("Data di scadenza non valida").Write(w)
			return
		}
		patch.DueDate = &dueDate
	}
	if r.Form.Has("bank_account") {
		account := sanitizeInput(r.Form.Get("bank_account"))
		patch.BankAccount = &account
	}

	if err := s.bills.UpdateBill(r.Context(), id, patch); err != nil {
		s.writeBillError(w, r, err)
		return
	}

	month := s.monthParamOrNow(r)
	s.invalidatePages()
	NewHTMXResponse().
		TriggerBillUpdated(string(month)).
		TriggerMonthRefresh(string(month)).
		Write(w)
}

// handleDeleteBill removes a bill.
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Bolletta mancante").Write(w)
		return
	}

	if err := s.bills.DeleteBill(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Delete bill error", "error", err, "bill_id", id)
		InternalServerError("Errore eliminando la bolletta").Write(w)
		return
	}

	month := s.monthParamOrNow(r)
	s.invalidatePages()
	NewHTMXResponse().
		TriggerBillDeleted(string(month)).
		TriggerMonthRefresh(string(month)).
		Write(w)
}

func (s *Server) monthParamOrNow(r *http.Request) core.MonthKey {
	month, err := MonthParam(r)
	if err != nil {
		return core.ToMonthKey(time.Now())
	}
	return month
}

// writeBillError maps validation errors to 422 and everything else to 500.
func (s *Server) writeBillError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("Il nome è obbligatorio").Write(w)
	case errors.Is(err, core.ErrMissingCategory):
		UnprocessableEntityError("Categoria non valida").Write(w)
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Importo non valido").Write(w)
	case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrMonthMismatch):
		UnprocessableEntityError("Data non valida").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Bill mutation error", "error", err, "url", r.URL.Path)
		InternalServerError("Errore nel salvataggio").Write(w)
	}
}
