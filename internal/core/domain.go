package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyName       = errors.New("name is required")
	ErrMissingCategory = errors.New("category is required")
	ErrInvalidAmount   = errors.New("amount must be a non-negative number")
	ErrInvalidDueDay   = errors.New("due day must be between 1 and 31")
	ErrInvalidDate     = errors.New("invalid date")
	ErrCategoryInUse   = errors.New("category is referenced by bills or templates")
	ErrMonthMismatch   = errors.New("month does not match due date")
)

type (
	// Category groups bills for display. Name is unique; Color is an
	// optional display hint.
	Category struct {
		ID    string
		Name  string
		Color string
	}

	// BillTemplate is a recurring-bill definition used to stamp out one
	// bill instance per month. Templates are the source of truth for
	// recurring bills; editing a template never changes instances that
	// were already generated from it.
	BillTemplate struct {
		ID                 string
		Name               string
		CategoryID         string
		AmountDefault      decimal.Decimal
		DueDayDefault      int
		BankAccountDefault string
		IsActive           bool
	}

	// Bill is one concrete instance, bucketed into exactly one month.
	// TemplateID is empty for one-off bills. CarriedOverFromID links a
	// carried copy back to its source, forming a forward chain.
	Bill struct {
		ID                string
		Name              string
		CategoryID        string
		TemplateID        string
		AmountDue         decimal.Decimal
		DueDate           time.Time
		IsRecurring       bool
		IsPaid            bool
		Month             MonthKey
		BankAccount       string
		CarriedOver       bool
		CarriedOverFromID string
	}
)

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (t BillTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	if t.AmountDefault.IsNegative() {
		return ErrInvalidAmount
	}
	if t.DueDayDefault < 1 || t.DueDayDefault > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrMissingCategory
	}
	if b.AmountDue.IsNegative() {
		return ErrInvalidAmount
	}
	if b.DueDate.IsZero() {
		return ErrInvalidDate
	}
	// Month is derived from DueDate in one place; a mismatch means a
	// caller set the fields independently.
	if b.Month != ToMonthKey(b.DueDate) {
		return ErrMonthMismatch
	}
	return nil
}
