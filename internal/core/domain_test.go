package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validBill() Bill {
	due := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.Local)
	return Bill{
		ID:         "b1",
		Name:       "Power",
		CategoryID: "c1",
		AmountDue:  decimal.NewFromInt(120),
		DueDate:    due,
		Month:      ToMonthKey(due),
	}
}

func TestBillValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Bill)
		wantErr error
	}{
		{"valid", func(b *Bill) {}, nil},
		{"empty name", func(b *Bill) { b.Name = "  " }, ErrEmptyName},
		{"missing category", func(b *Bill) { b.CategoryID = "" }, ErrMissingCategory},
		{"negative amount", func(b *Bill) { b.AmountDue = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"zero amount ok", func(b *Bill) { b.AmountDue = decimal.Zero }, nil},
		{"zero due date", func(b *Bill) { b.DueDate = time.Time{} }, ErrInvalidDate},
		{"month mismatch", func(b *Bill) { b.Month = "2024-07" }, ErrMonthMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBill()
			tc.mutate(&b)
			err := b.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBillValidateNameTooLong(t *testing.T) {
	b := validBill()
	b.Name = strings.Repeat("x", 201)
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for 201-char name")
	}
}

func TestTemplateValidate(t *testing.T) {
	valid := BillTemplate{
		ID:            "t1",
		Name:          "Rent",
		CategoryID:    "c1",
		AmountDefault: decimal.NewFromInt(1800),
		DueDayDefault: 1,
		IsActive:      true,
	}

	cases := []struct {
		name    string
		mutate  func(*BillTemplate)
		wantErr error
	}{
		{"valid", func(t *BillTemplate) {}, nil},
		{"due day 31 ok", func(t *BillTemplate) { t.DueDayDefault = 31 }, nil},
		{"empty name", func(t *BillTemplate) { t.Name = "" }, ErrEmptyName},
		{"missing category", func(t *BillTemplate) { t.CategoryID = "" }, ErrMissingCategory},
		{"negative amount", func(t *BillTemplate) { t.AmountDefault = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"due day zero", func(t *BillTemplate) { t.DueDayDefault = 0 }, ErrInvalidDueDay},
		{"due day 32", func(t *BillTemplate) { t.DueDayDefault = 32 }, ErrInvalidDueDay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := valid
			tc.mutate(&tmpl)
			err := tmpl.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{ID: "c1", Name: "Utilities"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Category{ID: "c1", Name: " "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Category{ID: "c1", Name: strings.Repeat("x", 101)}).Validate(); err == nil {
		t.Fatal("expected error for 101-char name")
	}
}

func TestSummarizeMonth(t *testing.T) {
	bills := []Bill{
		{AmountDue: decimal.RequireFromString("100.50"), IsPaid: true},
		{AmountDue: decimal.RequireFromString("20.25")},
		{AmountDue: decimal.RequireFromString("0.25")},
	}
	s := SummarizeMonth("2024-06", bills)
	if !s.TotalDue.Equal(decimal.RequireFromString("121.00")) {
		t.Fatalf("TotalDue = %s", s.TotalDue)
	}
	if !s.TotalPaid.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("TotalPaid = %s", s.TotalPaid)
	}
	if !s.TotalOpen.Equal(decimal.RequireFromString("20.50")) {
		t.Fatalf("TotalOpen = %s", s.TotalOpen)
	}
	if s.PaidCount != 1 || s.OpenCount != 2 {
		t.Fatalf("counts = %d paid, %d open", s.PaidCount, s.OpenCount)
	}

	empty := SummarizeMonth("2024-06", nil)
	if !empty.TotalDue.IsZero() || empty.PaidCount != 0 || empty.OpenCount != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}
