package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bollette/internal/core"
)

type billRow struct {
	ID            string
	Name          string
	Category      string
	CategoryColor string
	Amount        string
	DueDate       string
	IsPaid        bool
	IsRecurring   bool
	CarriedOver   bool
	Overdue       bool
}

type categoryOption struct {
	ID    string
	Name  string
	Color string
}

type monthPageData struct {
	Month      string
	Title      string
	PrevMonth  string
	NextMonth  string
	TotalDue   string
	TotalPaid  string
	TotalOpen  string
	PaidCount  int
	OpenCount  int
	DueSoon    string
	Bills      []billRow
	Categories []categoryOption
	Today      string
}

// handleIndex redirects to the current month's page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	month := core.ToMonthKey(time.Now())
	http.Redirect(w, r, "/months/"+string(month), http.StatusSeeOther)
}

// handleMonthPage materializes the month on demand and renders it. Visiting
// a month is what triggers generation; reloading is always safe.
func (s *Server) handleMonthPage(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r)
	if err != nil {
		BadRequestError("Mese non valido").Write(w)
		return
	}

	data, err := s.monthPage(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month page error", "error", err, "month", string(month))
		InternalServerError("Errore caricando il mese").Write(w)
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "month.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Month template execution failed", "error", err, "month", string(month))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) monthPage(ctx context.Context, month core.MonthKey) (monthPageData, error) {
	if data, found := s.pageCache.Get(string(month)); found {
		slog.DebugContext(ctx, "Month page cache hit", "month", string(month))
		return data, nil
	}

	result, err := s.generator.EnsureMonthGenerated(ctx, month)
	if err != nil {
		return monthPageData{}, fmt.Errorf("generate month %s: %w", month, err)
	}
	if result.TemplateBills > 0 || result.CarriedBills > 0 {
		// The month just changed under us; drop anything cached.
		s.invalidatePages()
	}

	bills, summary, err := s.bills.MonthBills(ctx, month)
	if err != nil {
		return monthPageData{}, err
	}
	categories, err := s.bills.ListCategories(ctx)
	if err != nil {
		return monthPageData{}, err
	}
	dueSoon, err := s.bills.DueSoonTotal(ctx, time.Now(), 7)
	if err != nil {
		return monthPageData{}, err
	}

	categoryNames := make(map[string]categoryOption, len(categories))
	data := monthPageData{
		Month:     string(month),
		Title:     core.FormatMonthKeyMMYYYY(month),
		PrevMonth: string(core.PrevMonthKey(month)),
		NextMonth: string(core.NextMonthKey(month)),
		TotalDue:  formatAmount(summary.TotalDue),
		TotalPaid: formatAmount(summary.TotalPaid),
		TotalOpen: formatAmount(summary.TotalOpen),
		PaidCount: summary.PaidCount,
		OpenCount: summary.OpenCount,
		DueSoon:   formatAmount(dueSoon),
		Today:     time.Now().Format(dueDateLayout),
	}
	for _, c := range categories {
		opt := categoryOption{ID: c.ID, Name: c.Name, Color: c.Color}
		categoryNames[c.ID] = opt
		data.Categories = append(data.Categories, opt)
	}

	today := time.Now()
	for _, b := range bills {
		row := billRow{
			ID:          b.ID,
			Name:        b.Name,
			Amount:      formatAmount(b.AmountDue),
			DueDate:     b.DueDate.Format(dueDateLayout),
			IsPaid:      b.IsPaid,
			IsRecurring: b.IsRecurring,
			CarriedOver: b.CarriedOver,
			Overdue:     !b.IsPaid && core.DiffDays(b.DueDate, today) > 0,
		}
		if opt, ok := categoryNames[b.CategoryID]; ok {
			row.Category = opt.Name
			row.CategoryColor = opt.Color
		}
		data.Bills = append(data.Bills, row)
	}

	s.pageCache.Set(string(month), data)
	return data, nil
}
