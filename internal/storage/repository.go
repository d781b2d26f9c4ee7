// Package storage persists categories, bill templates and bill instances in
// SQLite. It is the only shared mutable resource in the system: the
// generation engine delegates all uniqueness enforcement to the partial
// unique indexes declared in the migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bollette/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id matches no row. Callers that
// mutate (toggle, delete) treat it as a no-op because concurrent deletion is
// expected.
var ErrNotFound = errors.New("record not found")

const dateLayout = "2006-01-02"

// Export states for the payment-ledger worker.
const (
	ExportNone    = "none"
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single writer connection plus a busy timeout keeps concurrent
	// request handlers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ---- categories ----

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, color) VALUES (?, ?, ?)`,
		c.ID, c.Name, nullable(c.Color))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, color FROM categories WHERE id = ?`, id)
	var c core.Category
	var color sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &color); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, ErrNotFound
		}
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Color = color.String
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var color sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Color = color.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ?`,
		c.Name, nullable(c.Color), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res)
}

// DeleteCategory removes a category unless bills or templates still reference
// it; referential integrity is checked here, not cascaded.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	var refs int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM bills WHERE category_id = ?1)
		      + (SELECT COUNT(*) FROM bill_templates WHERE category_id = ?1)`,
		id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("delete category %s: %w", id, core.ErrCategoryInUse)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- templates ----

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.BillTemplate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bill_templates
		   (id, name, category_id, amount_default, due_day_default, bank_account_default, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.CategoryID, t.AmountDefault.String(), t.DueDayDefault,
		nullable(t.BankAccountDefault), t.IsActive)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.BillTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, category_id, amount_default, due_day_default, bank_account_default, is_active
		   FROM bill_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.BillTemplate{}, ErrNotFound
		}
		return core.BillTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	return r.listTemplates(ctx,
		`SELECT id, name, category_id, amount_default, due_day_default, bank_account_default, is_active
		   FROM bill_templates ORDER BY name`)
}

// ListActiveTemplates returns the templates that still generate new monthly
// instances. Deactivated templates stop generating but keep their history.
func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	return r.listTemplates(ctx,
		`SELECT id, name, category_id, amount_default, due_day_default, bank_account_default, is_active
		   FROM bill_templates WHERE is_active = 1 ORDER BY name`)
}

func (r *SQLiteRepository) listTemplates(ctx context.Context, query string) ([]core.BillTemplate, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []core.BillTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.BillTemplate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_templates
		    SET name = ?, category_id = ?, amount_default = ?, due_day_default = ?,
		        bank_account_default = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		t.Name, t.CategoryID, t.AmountDefault.String(), t.DueDayDefault,
		nullable(t.BankAccountDefault), t.IsActive, t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_templates SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	return requireRow(res)
}

// DeleteTemplateUnlinkingBills nulls the template reference on every bill the
// template spawned and deletes the template, as one transaction. Bills own
// their data once generated and must survive their template.
func (r *SQLiteRepository) DeleteTemplateUnlinkingBills(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete template: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE bills SET template_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE template_id = ?`,
		id); err != nil {
		return fmt.Errorf("unlink template bills: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM bill_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete template: %w", err)
	}
	slog.InfoContext(ctx, "Template deleted, dependent bills unlinked", "template_id", id)
	return nil
}

// ---- bills ----

const billColumns = `id, name, category_id, template_id, amount_due, due_date,
	is_recurring, is_paid, month, bank_account, carried_over, carried_over_from_id`

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		billArgs(b)...)
	if err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	return nil
}

// InsertBillsSkipConflicts inserts candidate rows, silently dropping any row
// that would violate the (template_id, month) or (carried_over_from_id,
// month) uniqueness. This is the compare-and-swap the generation engine
// leans on: repeated or concurrent batches converge instead of erroring.
func (r *SQLiteRepository) InsertBillsSkipConflicts(ctx context.Context, bills []core.Bill) (int, error) {
	if len(bills) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert bills: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert bills: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range bills {
		res, err := stmt.ExecContext(ctx, billArgs(b)...)
		if err != nil {
			return 0, fmt.Errorf("insert bill %q: %w", b.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert bills: %w", err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) GetBill(ctx context.Context, id string) (core.Bill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Bill{}, ErrNotFound
		}
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) MonthHasBills(ctx context.Context, month core.MonthKey) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bills WHERE month = ? LIMIT 1`, string(month)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("month has bills: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) ListBillsByMonth(ctx context.Context, month core.MonthKey) ([]core.Bill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE month = ? ORDER BY due_date, name`,
		string(month))
}

// ListUnpaidOneOffsBefore selects the carry-forward candidates for a target
// month: unpaid bills with no template linkage from strictly earlier months.
// Month keys sort lexicographically, so plain string comparison works.
func (r *SQLiteRepository) ListUnpaidOneOffsBefore(ctx context.Context, month core.MonthKey) ([]core.Bill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM bills
		  WHERE is_paid = 0 AND template_id IS NULL AND month < ?
		  ORDER BY month, due_date`,
		string(month))
}

// ListUnpaidDueBetween returns unpaid bills with a due date in [from, to],
// regardless of month bucket. Used for the dashboard lookahead total.
func (r *SQLiteRepository) ListUnpaidDueBetween(ctx context.Context, from, to time.Time) ([]core.Bill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM bills
		  WHERE is_paid = 0 AND due_date >= ? AND due_date <= ?
		  ORDER BY due_date`,
		from.Format(dateLayout), to.Format(dateLayout))
}

func (r *SQLiteRepository) listBills(ctx context.Context, query string, args ...any) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBill persists the mutable fields of a bill. Month is stored as given;
// the service layer derives it from the due date before calling.
func (r *SQLiteRepository) UpdateBill(ctx context.Context, b core.Bill) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bills
		    SET name = ?, category_id = ?, amount_due = ?, due_date = ?, month = ?,
		        bank_account = ?, is_paid = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		b.Name, b.CategoryID, b.AmountDue.String(), b.DueDate.Format(dateLayout),
		string(b.Month), nullable(b.BankAccount), b.IsPaid, b.ID)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	return requireRow(res)
}

// SetBillPaid flips the paid flag. Marking paid queues the bill for ledger
// export; unmarking clears the queue entry (an already exported row stays in
// the ledger, the export is append-only).
func (r *SQLiteRepository) SetBillPaid(ctx context.Context, id string, paid bool) error {
	status := ExportNone
	if paid {
		status = ExportPending
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE bills SET is_paid = ?, export_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		paid, status, id)
	if err != nil {
		return fmt.Errorf("set bill paid: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteBill(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	return requireRow(res)
}

// ---- export bookkeeping ----

func (r *SQLiteRepository) ListPendingExportBills(ctx context.Context, limit int) ([]core.Bill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM bills
		  WHERE is_paid = 1 AND export_status = ? ORDER BY updated_at LIMIT ?`,
		ExportPending, limit)
}

func (r *SQLiteRepository) MarkBillExported(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bills SET export_status = ?, exported_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ExportDone, id)
	if err != nil {
		return fmt.Errorf("mark bill exported: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) MarkBillExportError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bills SET export_status = ? WHERE id = ?`,
		ExportError, id)
	if err != nil {
		return fmt.Errorf("mark bill export error: %w", err)
	}
	return requireRow(res)
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (core.BillTemplate, error) {
	var t core.BillTemplate
	var amount string
	var bank sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.CategoryID, &amount, &t.DueDayDefault, &bank, &t.IsActive); err != nil {
		return core.BillTemplate{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	t.AmountDefault = d
	t.BankAccountDefault = bank.String
	return t, nil
}

func scanBill(row rowScanner) (core.Bill, error) {
	var b core.Bill
	var amount, due, month string
	var templateID, bank, carriedFrom sql.NullString
	err := row.Scan(&b.ID, &b.Name, &b.CategoryID, &templateID, &amount, &due,
		&b.IsRecurring, &b.IsPaid, &month, &bank, &b.CarriedOver, &carriedFrom)
	if err != nil {
		return core.Bill{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Bill{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	dueDate, err := time.ParseInLocation(dateLayout, due, time.Local)
	if err != nil {
		return core.Bill{}, fmt.Errorf("parse stored due date %q: %w", due, err)
	}
	b.TemplateID = templateID.String
	b.AmountDue = d
	b.DueDate = dueDate
	b.Month = core.MonthKey(month)
	b.BankAccount = bank.String
	b.CarriedOverFromID = carriedFrom.String
	return b, nil
}

func billArgs(b core.Bill) []any {
	return []any{
		b.ID, b.Name, b.CategoryID, nullable(b.TemplateID), b.AmountDue.String(),
		b.DueDate.Format(dateLayout), b.IsRecurring, b.IsPaid, string(b.Month),
		nullable(b.BankAccount), b.CarriedOver, nullable(b.CarriedOverFromID),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
