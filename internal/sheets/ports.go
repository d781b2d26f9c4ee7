package sheets

import "context"

// LedgerEntry is one row of the paid-bill ledger.
type LedgerEntry struct {
	Month       string
	DueDate     string
	Name        string
	Amount      string
	Category    string
	BankAccount string
	PaidAt      string
}

// Ports for outbound adapters.
type (
	// LedgerWriter appends a paid bill to the external ledger.
	LedgerWriter interface {
		Append(ctx context.Context, entry LedgerEntry) (rowRef string, err error)
	}
)
