package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bollette/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bollette.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestCategory(t *testing.T, repo *SQLiteRepository) core.Category {
	t.Helper()
	c := core.Category{ID: uuid.NewString(), Name: "Utilities " + uuid.NewString()[:8], Color: "#4a90d9"}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	return c
}

func makeBill(categoryID string, month core.MonthKey, day int) core.Bill {
	year, monthNum, _ := core.ParseMonthKey(month)
	return core.Bill{
		ID:         uuid.NewString(),
		Name:       "Power",
		CategoryID: categoryID,
		AmountDue:  decimal.RequireFromString("120.50"),
		DueDate:    time.Date(year, time.Month(monthNum), day, 0, 0, 0, 0, time.Local),
		Month:      month,
	}
}

func TestCategoryCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)

	got, err := repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Name, got.Name)
	require.Equal(t, "#4a90d9", got.Color)

	c.Name = "Casa"
	c.Color = ""
	require.NoError(t, repo.UpdateCategory(ctx, c))
	got, err = repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Casa", got.Name)
	require.Empty(t, got.Color)

	list, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteCategory(ctx, c.ID))
	_, err = repo.GetCategory(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCategoryInUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	require.NoError(t, repo.CreateBill(ctx, makeBill(c.ID, "2024-06", 15)))

	err := repo.DeleteCategory(ctx, c.ID)
	require.ErrorIs(t, err, core.ErrCategoryInUse)

	// Still present after the rejected delete.
	_, err = repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)

	err = repo.DeleteCategory(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTemplateUnlinksBills(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	tmpl := core.BillTemplate{
		ID:            uuid.NewString(),
		Name:          "Rent",
		CategoryID:    c.ID,
		AmountDefault: decimal.NewFromInt(1800),
		DueDayDefault: 1,
		IsActive:      true,
	}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	bill := makeBill(c.ID, "2024-06", 1)
	bill.TemplateID = tmpl.ID
	bill.IsRecurring = true
	require.NoError(t, repo.CreateBill(ctx, bill))

	require.NoError(t, repo.DeleteTemplateUnlinkingBills(ctx, tmpl.ID))

	_, err := repo.GetTemplate(ctx, tmpl.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Empty(t, got.TemplateID, "bill must survive template deletion unlinked")

	require.ErrorIs(t, repo.DeleteTemplateUnlinkingBills(ctx, tmpl.ID), ErrNotFound)
}

func TestInsertBillsSkipConflicts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	tmpl := core.BillTemplate{
		ID:            uuid.NewString(),
		Name:          "Rent",
		CategoryID:    c.ID,
		AmountDefault: decimal.NewFromInt(1800),
		DueDayDefault: 1,
		IsActive:      true,
	}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	fromTemplate := makeBill(c.ID, "2024-06", 1)
	fromTemplate.TemplateID = tmpl.ID
	fromTemplate.IsRecurring = true

	n, err := repo.InsertBillsSkipConflicts(ctx, []core.Bill{fromTemplate})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Same template and month under a fresh id is silently skipped.
	dup := fromTemplate
	dup.ID = uuid.NewString()
	n, err = repo.InsertBillsSkipConflicts(ctx, []core.Bill{dup})
	require.NoError(t, err)
	require.Zero(t, n)

	// Same template in a different month inserts.
	nextMonth := makeBill(c.ID, "2024-07", 1)
	nextMonth.TemplateID = tmpl.ID
	nextMonth.IsRecurring = true
	n, err = repo.InsertBillsSkipConflicts(ctx, []core.Bill{nextMonth})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Carried copies are unique per (source, month).
	source := makeBill(c.ID, "2024-05", 10)
	require.NoError(t, repo.CreateBill(ctx, source))

	carried := makeBill(c.ID, "2024-06", 10)
	carried.CarriedOver = true
	carried.CarriedOverFromID = source.ID
	carriedDup := makeBill(c.ID, "2024-06", 10)
	carriedDup.CarriedOver = true
	carriedDup.CarriedOverFromID = source.ID

	n, err = repo.InsertBillsSkipConflicts(ctx, []core.Bill{carried, carriedDup})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Plain one-offs carry no uniqueness constraint.
	n, err = repo.InsertBillsSkipConflicts(ctx, []core.Bill{makeBill(c.ID, "2024-06", 20), makeBill(c.ID, "2024-06", 20)})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.InsertBillsSkipConflicts(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListUnpaidOneOffsBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	tmpl := core.BillTemplate{
		ID:            uuid.NewString(),
		Name:          "Rent",
		CategoryID:    c.ID,
		AmountDefault: decimal.NewFromInt(1800),
		DueDayDefault: 1,
		IsActive:      true,
	}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	unpaidOld := makeBill(c.ID, "2024-04", 10)
	paidOld := makeBill(c.ID, "2024-05", 5)
	paidOld.IsPaid = true
	recurringOld := makeBill(c.ID, "2024-05", 1)
	recurringOld.TemplateID = tmpl.ID
	recurringOld.IsRecurring = true
	sameMonth := makeBill(c.ID, "2024-06", 3)
	future := makeBill(c.ID, "2024-07", 3)

	for _, b := range []core.Bill{unpaidOld, paidOld, recurringOld, sameMonth, future} {
		require.NoError(t, repo.CreateBill(ctx, b))
	}

	got, err := repo.ListUnpaidOneOffsBefore(ctx, "2024-06")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, unpaidOld.ID, got[0].ID)
}

func TestListUnpaidDueBetween(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	inWindow := makeBill(c.ID, "2024-06", 15)
	paidInWindow := makeBill(c.ID, "2024-06", 16)
	paidInWindow.IsPaid = true
	outside := makeBill(c.ID, "2024-06", 30)
	// Next month but inside the window: the lookahead ignores buckets.
	nextMonth := makeBill(c.ID, "2024-07", 1)

	for _, b := range []core.Bill{inWindow, paidInWindow, outside, nextMonth} {
		require.NoError(t, repo.CreateBill(ctx, b))
	}

	from := time.Date(2024, time.June, 14, 0, 0, 0, 0, time.Local)
	got, err := repo.ListUnpaidDueBetween(ctx, from, from.AddDate(0, 0, 18))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, inWindow.ID, got[0].ID)
	require.Equal(t, nextMonth.ID, got[1].ID)
}

func TestSetBillPaidExportFlow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	bill := makeBill(c.ID, "2024-06", 15)
	require.NoError(t, repo.CreateBill(ctx, bill))

	require.NoError(t, repo.SetBillPaid(ctx, bill.ID, true))
	pending, err := repo.ListPendingExportBills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.True(t, pending[0].IsPaid)

	require.NoError(t, repo.MarkBillExported(ctx, bill.ID))
	pending, err = repo.ListPendingExportBills(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	// Unmarking clears any pending export.
	require.NoError(t, repo.SetBillPaid(ctx, bill.ID, true))
	require.NoError(t, repo.SetBillPaid(ctx, bill.ID, false))
	pending, err = repo.ListPendingExportBills(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, repo.MarkBillExportError(ctx, bill.ID))
	got, err := repo.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.False(t, got.IsPaid)
}

func TestBillUpdateAndNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := newTestCategory(t, repo)
	bill := makeBill(c.ID, "2024-06", 15)
	require.NoError(t, repo.CreateBill(ctx, bill))

	bill.AmountDue = decimal.RequireFromString("99.99")
	bill.DueDate = time.Date(2024, time.July, 2, 0, 0, 0, 0, time.Local)
	bill.Month = "2024-07"
	require.NoError(t, repo.UpdateBill(ctx, bill))

	got, err := repo.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.True(t, got.AmountDue.Equal(decimal.RequireFromString("99.99")))
	require.Equal(t, core.MonthKey("2024-07"), got.Month)
	require.Equal(t, 2, got.DueDate.Day())

	missing := makeBill(c.ID, "2024-06", 15)
	require.ErrorIs(t, repo.UpdateBill(ctx, missing), ErrNotFound)
	require.ErrorIs(t, repo.SetBillPaid(ctx, "missing", true), ErrNotFound)
	require.ErrorIs(t, repo.DeleteBill(ctx, "missing"), ErrNotFound)
	_, err = repo.GetBill(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMonthHasBills(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	has, err := repo.MonthHasBills(ctx, "2024-06")
	require.NoError(t, err)
	require.False(t, has)

	c := newTestCategory(t, repo)
	require.NoError(t, repo.CreateBill(ctx, makeBill(c.ID, "2024-06", 15)))

	has, err = repo.MonthHasBills(ctx, "2024-06")
	require.NoError(t, err)
	require.True(t, has)
}

func TestSeedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)

	templates, err := repo.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	// A second seed leaves everything untouched.
	require.NoError(t, repo.Seed(ctx))
	cats, err = repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
}
