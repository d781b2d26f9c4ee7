// Package services provides business logic and orchestration on top of the
// storage layer: month materialization and bill mutations.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/core"
	"bollette/internal/storage"

	"github.com/google/uuid"
)

// MonthGenerator materializes the bill set of a calendar month: one instance
// per active template due that month, plus one carried copy per still-unpaid
// one-off bill from earlier months.
type MonthGenerator struct {
	storage *storage.SQLiteRepository
}

// GenerationResult reports what a single EnsureMonthGenerated call did.
// Created is informational: it means this call observed an empty month.
type GenerationResult struct {
	Month         core.MonthKey
	Created       bool
	TemplateBills int
	CarriedBills  int
}

func NewMonthGenerator(storage *storage.SQLiteRepository) *MonthGenerator {
	return &MonthGenerator{storage: storage}
}

// EnsureMonthGenerated converges the store toward the invariant bill set for
// the target month. It is safe to call on every page load, repeatedly and
// concurrently: candidate rows are computed as pure data and written with
// insert-or-skip semantics, so the store's uniqueness enforcement, not the
// pre-check below, is what prevents duplicates.
func (g *MonthGenerator) EnsureMonthGenerated(ctx context.Context, month core.MonthKey) (GenerationResult, error) {
	year, monthNum, err := core.ParseMonthKey(month)
	if err != nil {
		return GenerationResult{}, err
	}
	result := GenerationResult{Month: month}

	// The exists pre-check only decides the Created flag. Under concurrent
	// requests it can be stale; correctness never depends on it.
	exists, err := g.storage.MonthHasBills(ctx, month)
	if err != nil {
		return result, fmt.Errorf("check month %s: %w", month, err)
	}

	templateRows, err := g.expandTemplates(ctx, year, monthNum, month)
	if err != nil {
		return result, err
	}
	carryRows, err := g.carryForward(ctx, year, monthNum, month)
	if err != nil {
		return result, err
	}

	insertedTemplates, err := g.storage.InsertBillsSkipConflicts(ctx, templateRows)
	if err != nil {
		return result, fmt.Errorf("insert template bills for %s: %w", month, err)
	}
	insertedCarried, err := g.storage.InsertBillsSkipConflicts(ctx, carryRows)
	if err != nil {
		return result, fmt.Errorf("insert carried bills for %s: %w", month, err)
	}

	result.Created = !exists
	result.TemplateBills = insertedTemplates
	result.CarriedBills = insertedCarried

	if insertedTemplates > 0 || insertedCarried > 0 {
		slog.InfoContext(ctx, "Month materialized",
			"month", string(month),
			"first_time", result.Created,
			"template_bills", insertedTemplates,
			"carried_bills", insertedCarried)
	}
	return result, nil
}

// expandTemplates builds one candidate bill per active template, due on the
// template's nominal day clamped to the target month's length.
func (g *MonthGenerator) expandTemplates(ctx context.Context, year, monthNum int, month core.MonthKey) ([]core.Bill, error) {
	templates, err := g.storage.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}

	rows := make([]core.Bill, 0, len(templates))
	for _, t := range templates {
		day := core.ClampDay(year, monthNum, t.DueDayDefault)
		rows = append(rows, core.Bill{
			ID:          uuid.NewString(),
			Name:        t.Name,
			CategoryID:  t.CategoryID,
			TemplateID:  t.ID,
			AmountDue:   t.AmountDefault,
			DueDate:     time.Date(year, time.Month(monthNum), day, 0, 0, 0, 0, time.Local),
			IsRecurring: true,
			Month:       month,
			BankAccount: t.BankAccountDefault,
		})
	}
	return rows, nil
}

// carryForward builds a re-dated candidate copy of every unpaid one-off bill
// from months before the target. Recurring bills are deliberately excluded:
// their next instance comes from the template expansion, and the unpaid older
// instance stays put in its own month. Sources are linked through
// CarriedOverFromID and never marked paid.
func (g *MonthGenerator) carryForward(ctx context.Context, year, monthNum int, month core.MonthKey) ([]core.Bill, error) {
	sources, err := g.storage.ListUnpaidOneOffsBefore(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list carry-forward sources: %w", err)
	}

	rows := make([]core.Bill, 0, len(sources))
	for _, src := range sources {
		day := core.ClampDay(year, monthNum, src.DueDate.Day())
		rows = append(rows, core.Bill{
			ID:                uuid.NewString(),
			Name:              src.Name,
			CategoryID:        src.CategoryID,
			AmountDue:         src.AmountDue,
			DueDate:           time.Date(year, time.Month(monthNum), day, 0, 0, 0, 0, time.Local),
			Month:             month,
			BankAccount:       src.BankAccount,
			CarriedOver:       true,
			CarriedOverFromID: src.ID,
		})
	}
	return rows, nil
}
