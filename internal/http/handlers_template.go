package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bollette/internal/core"
	"bollette/internal/services"
)

type templateRow struct {
	ID          string
	Name        string
	Category    string
	Amount      string
	DueDay      int
	BankAccount string
	IsActive    bool
}

type templatesPageData struct {
	Templates  []templateRow
	Categories []categoryOption
}

// handleTemplatesPage renders the recurring-bill template management page.
func (s *Server) handleTemplatesPage(w http.ResponseWriter, r *http.Request) {
	templates, err := s.bills.ListTemplates(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List templates error", "error", err)
		InternalServerError("Errore caricando i modelli").Write(w)
		return
	}
	categories, err := s.bills.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", "error", err)
		InternalServerError("Errore caricando le categorie").Write(w)
		return
	}

	names := make(map[string]string, len(categories))
	data := templatesPageData{}
	for _, c := range categories {
		names[c.ID] = c.Name
		data.Categories = append(data.Categories, categoryOption{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	for _, t := range templates {
		data.Templates = append(data.Templates, templateRow{
			ID:          t.ID,
			Name:        t.Name,
			Category:    names[t.CategoryID],
			Amount:      formatAmount(t.AmountDefault),
			DueDay:      t.DueDayDefault,
			BankAccount: t.BankAccountDefault,
			IsActive:    t.IsActive,
		})
	}

	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "templates.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Templates page execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	in, resp := parseTemplateForm(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	if _, err := s.bills.CreateTemplate(r.Context(), in); err != nil {
		s.writeTemplateError(w, r, err)
		return
	}

	NewHTMXResponse().
		Trigger("template:changed", struct{}{}).
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Modello mancante").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	in, resp := parseTemplateForm(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	active := r.Form.Get("is_active") != ""
	err := s.bills.UpdateTemplate(r.Context(), core.BillTemplate{
		ID:                 id,
		Name:               in.Name,
		CategoryID:         in.CategoryID,
		AmountDefault:      in.AmountDefault,
		DueDayDefault:      in.DueDayDefault,
		BankAccountDefault: in.BankAccount,
		IsActive:           active,
	})
	if err != nil {
		s.writeTemplateError(w, r, err)
		return
	}

	NewHTMXResponse().Trigger("template:changed", struct{}{}).Write(w)
}

// handleTemplateActive pauses or resumes a template without touching bills
// already generated from it.
func (s *Server) handleTemplateActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Modello mancante").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	active, err := strconv.ParseBool(r.Form.Get("active"))
	if err != nil {
		BadRequestError("Valore non valido").Write(w)
		return
	}

	if err := s.bills.SetTemplateActive(r.Context(), id, active); err != nil {
		slog.ErrorContext(r.Context(), "Set template active error", "error", err, "template_id", id)
		InternalServerError("Errore aggiornando il modello").Write(w)
		return
	}

	NewHTMXResponse().Trigger("template:changed", struct{}{}).Write(w)
}

// handleDeleteTemplate deletes a template; its generated bills survive as
// one-off bills.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Modello mancante").Write(w)
		return
	}

	if err := s.bills.DeleteTemplate(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Delete template error", "error", err, "template_id", id)
		InternalServerError("Errore eliminando il modello").Write(w)
		return
	}

	s.invalidatePages()
	NewHTMXResponse().Trigger("template:changed", struct{}{}).Write(w)
}

func parseTemplateForm(r *http.Request) (services.TemplateInput, *HTMXResponseBuilder) {
	amount, err := ParseAmountField(r.Form, "amount")
	if err != nil {
		return services.TemplateInput{}, UnprocessableEntityError("Importo non valido")
	}
	dueDay, err := strconv.Atoi(r.Form.Get("due_day"))
	if err != nil {
		return services.TemplateInput{}, UnprocessableEntityError("Giorno di scadenza non valido")
	}

	return services.TemplateInput{
		Name:          sanitizeInput(r.Form.Get("name")),
		CategoryID:    sanitizeInput(r.Form.Get("category_id")),
		AmountDefault: amount,
		DueDayDefault: dueDay,
		BankAccount:   sanitizeInput(r.Form.Get("bank_account")),
	}, nil
}

func (s *Server) writeTemplateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("Il nome è obbligatorio").Write(w)
	case errors.Is(err, core.ErrMissingCategory):
		UnprocessableEntityError("Categoria non valida").Write(w)
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Importo non valido").Write(w)
	case errors.Is(err, core.ErrInvalidDueDay):
		UnprocessableEntityError("Giorno di scadenza non valido").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Template mutation error", "error", err, "url", r.URL.Path)
		InternalServerError("Errore nel salvataggio").Write(w)
	}
}
