package services

import (
	"context"
	"testing"
	"time"

	"bollette/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestBillService(t *testing.T) (*BillService, *core.Category) {
	t.Helper()
	repo := newTestRepo(t)
	c := seedCategory(t, repo)
	return NewBillService(repo, nil), &c
}

func TestCreateOneOffBillDerivesMonth(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name:       "Dentist",
		CategoryID: c.ID,
		AmountDue:  decimal.RequireFromString("85.50"),
		DueDate:    time.Date(2024, time.June, 20, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)
	require.Equal(t, core.MonthKey("2024-06"), bill.Month)
	require.False(t, bill.IsPaid)
	require.False(t, bill.IsRecurring)
	require.NotEmpty(t, bill.ID)

	bills, summary, err := svc.MonthBills(ctx, "2024-06")
	require.NoError(t, err)
	require.Len(t, bills, 1)
	require.True(t, summary.TotalOpen.Equal(decimal.RequireFromString("85.50")))
}

func TestCreateOneOffBillValidation(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()
	due := time.Date(2024, time.June, 20, 0, 0, 0, 0, time.Local)

	_, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name: "", CategoryID: c.ID, AmountDue: decimal.NewFromInt(10), DueDate: due,
	})
	require.ErrorIs(t, err, core.ErrEmptyName)

	_, err = svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name: "Dentist", CategoryID: "no-such-category", AmountDue: decimal.NewFromInt(10), DueDate: due,
	})
	require.ErrorIs(t, err, core.ErrMissingCategory)

	_, err = svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name: "Dentist", CategoryID: c.ID, AmountDue: decimal.NewFromInt(-10), DueDate: due,
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestTogglePaid(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name:       "Water",
		CategoryID: c.ID,
		AmountDue:  decimal.NewFromInt(40),
		DueDate:    time.Date(2024, time.June, 5, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	require.NoError(t, svc.TogglePaid(ctx, bill.ID))
	bills, _, err := svc.MonthBills(ctx, "2024-06")
	require.NoError(t, err)
	require.True(t, bills[0].IsPaid)

	require.NoError(t, svc.TogglePaid(ctx, bill.ID))
	bills, _, err = svc.MonthBills(ctx, "2024-06")
	require.NoError(t, err)
	require.False(t, bills[0].IsPaid)

	// A concurrently deleted bill is not an error.
	require.NoError(t, svc.TogglePaid(ctx, "gone"))
}

func TestUpdateBillRederivesMonth(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name:       "Insurance",
		CategoryID: c.ID,
		AmountDue:  decimal.NewFromInt(300),
		DueDate:    time.Date(2024, time.June, 28, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	newDue := time.Date(2024, time.July, 2, 0, 0, 0, 0, time.Local)
	newAmount := decimal.RequireFromString("310.99")
	require.NoError(t, svc.UpdateBill(ctx, bill.ID, BillPatch{
		AmountDue: &newAmount,
		DueDate:   &newDue,
	}))

	juneBills, _, err := svc.MonthBills(ctx, "2024-06")
	require.NoError(t, err)
	require.Empty(t, juneBills)

	julyBills, _, err := svc.MonthBills(ctx, "2024-07")
	require.NoError(t, err)
	require.Len(t, julyBills, 1)
	require.Equal(t, core.MonthKey("2024-07"), julyBills[0].Month)
	require.True(t, julyBills[0].AmountDue.Equal(newAmount))

	require.NoError(t, svc.UpdateBill(ctx, "gone", BillPatch{AmountDue: &newAmount}))
}

func TestDeleteBill(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name:       "Gym",
		CategoryID: c.ID,
		AmountDue:  decimal.NewFromInt(50),
		DueDate:    time.Date(2024, time.June, 10, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBill(ctx, bill.ID))
	bills, _, err := svc.MonthBills(ctx, "2024-06")
	require.NoError(t, err)
	require.Empty(t, bills)

	// Double delete is idempotent.
	require.NoError(t, svc.DeleteBill(ctx, bill.ID))
}

func TestDueSoonTotalCrossesMonths(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	mk := func(day int, month time.Month, paid bool) {
		b, err := svc.CreateOneOffBill(ctx, OneOffBillInput{
			Name:       "Bill",
			CategoryID: c.ID,
			AmountDue:  decimal.NewFromInt(100),
			DueDate:    time.Date(2024, month, day, 0, 0, 0, 0, time.Local),
		})
		require.NoError(t, err)
		if paid {
			require.NoError(t, svc.TogglePaid(ctx, b.ID))
		}
	}

	mk(29, time.June, false) // in window
	mk(2, time.July, false)  // in window, next month
	mk(2, time.July, true)   // paid, excluded
	mk(15, time.July, false) // past the window

	now := time.Date(2024, time.June, 28, 12, 0, 0, 0, time.Local)
	total, err := svc.DueSoonTotal(ctx, now, 7)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(200)), "got %s", total)
}

func TestCategoryLifecycle(t *testing.T) {
	svc, _ := newTestBillService(t)
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, "Salute", "#ff0000")
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, " ", "")
	require.ErrorIs(t, err, core.ErrEmptyName)

	require.NoError(t, svc.UpdateCategory(ctx, created.ID, "Salute e benessere", "#00ff00"))
	require.NoError(t, svc.UpdateCategory(ctx, "gone", "Whatever", ""))

	_, err = svc.CreateOneOffBill(ctx, OneOffBillInput{
		Name:       "Dentist",
		CategoryID: created.ID,
		AmountDue:  decimal.NewFromInt(85),
		DueDate:    time.Date(2024, time.June, 20, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteCategory(ctx, created.ID), core.ErrCategoryInUse)
	require.NoError(t, svc.DeleteCategory(ctx, "gone"))
}

func TestTemplateLifecycle(t *testing.T) {
	svc, c := newTestBillService(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, TemplateInput{
		Name:          "Internet",
		CategoryID:    c.ID,
		AmountDefault: decimal.RequireFromString("29.90"),
		DueDayDefault: 27,
	})
	require.NoError(t, err)
	require.True(t, tmpl.IsActive)

	_, err = svc.CreateTemplate(ctx, TemplateInput{
		Name:          "Internet",
		CategoryID:    "no-such-category",
		AmountDefault: decimal.NewFromInt(30),
		DueDayDefault: 27,
	})
	require.ErrorIs(t, err, core.ErrMissingCategory)

	_, err = svc.CreateTemplate(ctx, TemplateInput{
		Name:          "Internet",
		CategoryID:    c.ID,
		AmountDefault: decimal.NewFromInt(30),
		DueDayDefault: 0,
	})
	require.ErrorIs(t, err, core.ErrInvalidDueDay)

	require.NoError(t, svc.SetTemplateActive(ctx, tmpl.ID, false))
	templates, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.False(t, templates[0].IsActive)
	require.NoError(t, svc.SetTemplateActive(ctx, "gone", true))

	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
	templates, err = svc.ListTemplates(ctx)
	require.NoError(t, err)
	require.Empty(t, templates)
	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
}
