// Package memory holds an in-process ledger, used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bollette/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	entries []sheets.LedgerEntry
	failAll bool
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailAppends makes every Append return an error, for exercising error paths.
func (s *Store) FailAppends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, entry sheets.LedgerEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", fmt.Errorf("append rejected")
	}
	s.entries = append(s.entries, entry)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerEntry(nil), s.entries...)
}
