package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bollette/internal/core"
)

type categoriesPageData struct {
	Categories []categoryOption
}

// handleCategoriesPage renders the category management page.
func (s *Server) handleCategoriesPage(w http.ResponseWriter, r *http.Request) {
	categories, err := s.bills.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", "error", err)
		InternalServerError("Errore caricando le categorie").Write(w)
		return
	}

	data := categoriesPageData{}
	for _, c := range categories {
		data.Categories = append(data.Categories, categoryOption{ID: c.ID, Name: c.Name, Color: c.Color})
	}

	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "categories.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Categories template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	color := sanitizeInput(r.Form.Get("color"))

	if _, err := s.bills.CreateCategory(r.Context(), name, color); err != nil {
		if errors.Is(err, core.ErrEmptyName) {
			UnprocessableEntityError("Il nome è obbligatorio").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Create category error", "error", err)
		InternalServerError("Errore creando la categoria").Write(w)
		return
	}

	s.invalidatePages()
	NewHTMXResponse().
		Trigger("category:changed", struct{}{}).
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Categoria mancante").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	color := sanitizeInput(r.Form.Get("color"))

	if err := s.bills.UpdateCategory(r.Context(), id, name, color); err != nil {
		if errors.Is(err, core.ErrEmptyName) {
			UnprocessableEntityError("Il nome è obbligatorio").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Update category error", "error", err, "category_id", id)
		InternalServerError("Errore aggiornando la categoria").Write(w)
		return
	}

	s.invalidatePages()
	NewHTMXResponse().Trigger("category:changed", struct{}{}).Write(w)
}

// handleDeleteCategory refuses deletion while the category is referenced.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequestError("Categoria mancante").Write(w)
		return
	}

	if err := s.bills.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrCategoryInUse) {
			ConflictError("Categoria in uso da bollette o modelli").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Delete category error", "error", err, "category_id", id)
		InternalServerError("Errore eliminando la categoria").Write(w)
		return
	}

	s.invalidatePages()
	NewHTMXResponse().Trigger("category:changed", struct{}{}).Write(w)
}
