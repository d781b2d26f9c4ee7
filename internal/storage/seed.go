package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seed populates an empty database with a starter set of categories, two
// recurring templates and one one-off bill. A non-empty category table makes
// it a no-op, so calling it on every startup is safe.
func (r *SQLiteRepository) Seed(ctx context.Context) error {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(cats) > 0 {
		return nil
	}

	utilities := core.Category{ID: uuid.NewString(), Name: "Utilities", Color: "#93C5FD"}
	rent := core.Category{ID: uuid.NewString(), Name: "Rent", Color: "#FCA5A5"}
	subs := core.Category{ID: uuid.NewString(), Name: "Subscriptions", Color: "#86EFAC"}
	for _, c := range []core.Category{utilities, rent, subs} {
		if err := r.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}

	templates := []core.BillTemplate{
		{
			ID:            "rent-template",
			Name:          "Rent",
			CategoryID:    rent.ID,
			AmountDefault: decimal.NewFromInt(1800),
			DueDayDefault: 1,
			IsActive:      true,
		},
		{
			ID:            "power-template",
			Name:          "Power",
			CategoryID:    utilities.ID,
			AmountDefault: decimal.NewFromInt(120),
			DueDayDefault: 15,
			IsActive:      true,
		},
	}
	for _, t := range templates {
		if err := r.CreateTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.Name, err)
		}
	}

	now := time.Now()
	oneOff := core.Bill{
		ID:         uuid.NewString(),
		Name:       "Laptop Repair",
		CategoryID: subs.ID,
		AmountDue:  decimal.NewFromInt(250),
		DueDate:    now,
		Month:      core.ToMonthKey(now),
	}
	if err := r.CreateBill(ctx, oneOff); err != nil {
		return fmt.Errorf("seed one-off bill: %w", err)
	}

	slog.InfoContext(ctx, "Seeded empty database",
		"categories", 3, "templates", len(templates), "bills", 1)
	return nil
}
