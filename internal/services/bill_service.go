package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillService orchestrates user-triggered mutations: one-off bills, paid
// toggles, inline edits, category and template management. Every write goes
// to SQLite first; bill events are published best-effort afterwards.
type BillService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewBillService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *BillService {
	return &BillService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// OneOffBillInput carries the validated-typed fields of a new one-off bill.
type OneOffBillInput struct {
	Name        string
	CategoryID  string
	AmountDue   decimal.Decimal
	DueDate     time.Time
	BankAccount string
}

// BillPatch updates a subset of a bill's mutable fields. Nil means "leave
// unchanged".
type BillPatch struct {
	AmountDue   *decimal.Decimal
	DueDate     *time.Time
	BankAccount *string
}

// CreateOneOffBill validates and stores a non-recurring bill. The month
// bucket is always derived from the due date here, never supplied by the
// caller.
func (s *BillService) CreateOneOffBill(ctx context.Context, in OneOffBillInput) (core.Bill, error) {
	bill := core.Bill{
		ID:          uuid.NewString(),
		Name:        in.Name,
		CategoryID:  in.CategoryID,
		AmountDue:   in.AmountDue,
		DueDate:     in.DueDate,
		Month:       core.ToMonthKey(in.DueDate),
		BankAccount: in.BankAccount,
	}
	if err := bill.Validate(); err != nil {
		return core.Bill{}, err
	}
	if _, err := s.storage.GetCategory(ctx, bill.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Bill{}, core.ErrMissingCategory
		}
		return core.Bill{}, fmt.Errorf("check category: %w", err)
	}
	if err := s.storage.CreateBill(ctx, bill); err != nil {
		return core.Bill{}, fmt.Errorf("create one-off bill: %w", err)
	}

	s.publishEvent(ctx, amqp.EventBillCreated, bill.ID, bill.Month)
	slog.InfoContext(ctx, "One-off bill created",
		"bill_id", bill.ID, "name", bill.Name, "month", string(bill.Month))
	return bill, nil
}

// TogglePaid flips a bill's paid flag. A missing bill is a no-op: concurrent
// deletion is expected and the toggle is idempotent either way.
func (s *BillService) TogglePaid(ctx context.Context, id string) error {
	bill, err := s.storage.GetBill(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Toggle paid on missing bill", "bill_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("toggle paid: %w", err)
	}

	paid := !bill.IsPaid
	if err := s.storage.SetBillPaid(ctx, id, paid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("toggle paid: %w", err)
	}

	if paid {
		s.publishEvent(ctx, amqp.EventBillPaid, id, bill.Month)
	}
	return nil
}

// UpdateBill applies an inline edit. A due-date change re-derives the month
// bucket so the two can never drift apart; a missing bill is a no-op.
func (s *BillService) UpdateBill(ctx context.Context, id string, patch BillPatch) error {
	bill, err := s.storage.GetBill(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Update on missing bill", "bill_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}

	if patch.AmountDue != nil {
		bill.AmountDue = *patch.AmountDue
	}
	if patch.DueDate != nil {
		bill.DueDate = *patch.DueDate
		bill.Month = core.ToMonthKey(*patch.DueDate)
	}
	if patch.BankAccount != nil {
		bill.BankAccount = *patch.BankAccount
	}
	if err := bill.Validate(); err != nil {
		return err
	}

	if err := s.storage.UpdateBill(ctx, bill); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("update bill: %w", err)
	}
	return nil
}

// DeleteBill removes a bill; deleting an already-deleted bill succeeds.
func (s *BillService) DeleteBill(ctx context.Context, id string) error {
	bill, err := s.storage.GetBill(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}

	if err := s.storage.DeleteBill(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete bill: %w", err)
	}

	s.publishEvent(ctx, amqp.EventBillDeleted, id, bill.Month)
	return nil
}

// MonthBills returns a month's bills with their summary totals.
func (s *BillService) MonthBills(ctx context.Context, month core.MonthKey) ([]core.Bill, core.MonthSummary, error) {
	bills, err := s.storage.ListBillsByMonth(ctx, month)
	if err != nil {
		return nil, core.MonthSummary{}, fmt.Errorf("month bills: %w", err)
	}
	return bills, core.SummarizeMonth(month, bills), nil
}

// DueSoonTotal sums the unpaid bills due within the next `days` days,
// crossing month boundaries if the window does.
func (s *BillService) DueSoonTotal(ctx context.Context, now time.Time, days int) (decimal.Decimal, error) {
	bills, err := s.storage.ListUnpaidDueBetween(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return decimal.Zero, fmt.Errorf("due soon total: %w", err)
	}
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.AmountDue)
	}
	return total, nil
}

// ---- categories ----

func (s *BillService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

func (s *BillService) CreateCategory(ctx context.Context, name, color string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Name: name, Color: color}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.storage.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (s *BillService) UpdateCategory(ctx context.Context, id, name, color string) error {
	c := core.Category{ID: id, Name: name, Color: color}
	if err := c.Validate(); err != nil {
		return err
	}
	err := s.storage.UpdateCategory(ctx, c)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteCategory rejects deletion while bills or templates reference the
// category; a missing category is a no-op.
func (s *BillService) DeleteCategory(ctx context.Context, id string) error {
	err := s.storage.DeleteCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// ---- templates ----

type TemplateInput struct {
	Name          string
	CategoryID    string
	AmountDefault decimal.Decimal
	DueDayDefault int
	BankAccount   string
}

func (s *BillService) ListTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	return s.storage.ListTemplates(ctx)
}

func (s *BillService) CreateTemplate(ctx context.Context, in TemplateInput) (core.BillTemplate, error) {
	t := core.BillTemplate{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		CategoryID:         in.CategoryID,
		AmountDefault:      in.AmountDefault,
		DueDayDefault:      in.DueDayDefault,
		BankAccountDefault: in.BankAccount,
		IsActive:           true,
	}
	if err := t.Validate(); err != nil {
		return core.BillTemplate{}, err
	}
	if _, err := s.storage.GetCategory(ctx, t.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.BillTemplate{}, core.ErrMissingCategory
		}
		return core.BillTemplate{}, fmt.Errorf("check category: %w", err)
	}
	if err := s.storage.CreateTemplate(ctx, t); err != nil {
		return core.BillTemplate{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

func (s *BillService) UpdateTemplate(ctx context.Context, t core.BillTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	err := s.storage.UpdateTemplate(ctx, t)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// SetTemplateActive pauses or resumes a template. Already-generated
// instances are never retracted.
func (s *BillService) SetTemplateActive(ctx context.Context, id string, active bool) error {
	err := s.storage.SetTemplateActive(ctx, id, active)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteTemplate unlinks dependent bills and deletes the template in one
// transaction, so no bill is ever left pointing at a nonexistent template.
func (s *BillService) DeleteTemplate(ctx context.Context, id string) error {
	err := s.storage.DeleteTemplateUnlinkingBills(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// ---- events ----

func (s *BillService) publishEvent(ctx context.Context, eventType, billID string, month core.MonthKey) {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not configured, skipping bill event",
			"type", eventType, "bill_id", billID)
		return
	}
	if err := s.amqpClient.PublishBillEvent(ctx, amqp.NewBillEvent(eventType, billID, month)); err != nil {
		// Events are best-effort; the periodic export scan recovers.
		slog.ErrorContext(ctx, "Failed to publish bill event",
			"type", eventType, "bill_id", billID, "error", err)
	}
}

// Close closes storage and the AMQP connection.
func (s *BillService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close bill service: %v", errs)
	}
	return nil
}
