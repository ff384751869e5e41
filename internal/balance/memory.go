package balance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fkhayef/tally/internal/money"
)

// MemoryStore is an in-memory Store used by unit tests and as staging space
// for recompute. Semantics match PostgresStore exactly, including the
// no-zero-rows rule. It additionally panics when a mutation would create
// mutual debt, since that means the ledger algebra has a bug.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[pairKey]*Entry
}

type pairKey struct {
	scope    string
	debtor   string
	creditor string
}

// NewMemoryStore creates an empty in-memory balance store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[pairKey]*Entry)}
}

// GetPair returns a copy of the entry for one directed pair, or nil when absent
func (s *MemoryStore) GetPair(_ context.Context, scope, debtor, creditor string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[pairKey{scope, debtor, creditor}]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

// Increment adds amount to the pair, creating the row if needed
func (s *MemoryStore) Increment(_ context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	if debtor == creditor {
		return ErrSamePair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reverse, ok := s.entries[pairKey{scope, creditor, debtor}]; ok && reverse.Amount > 0 {
		panic(fmt.Sprintf("mutual debt: %s/%s<->%s", scope, debtor, creditor))
	}

	key := pairKey{scope, debtor, creditor}
	entry, ok := s.entries[key]
	if !ok {
		entry = &Entry{Scope: scope, Debtor: debtor, Creditor: creditor}
		s.entries[key] = entry
	}
	entry.Amount += amount
	entry.UpdatedAt = time.Now()
	if expenseID != "" {
		id := expenseID
		entry.LastExpenseID = &id
	}
	return nil
}

// Decrement subtracts amount from the pair, deleting the row at zero
func (s *MemoryStore) Decrement(_ context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{scope, debtor, creditor}
	entry, ok := s.entries[key]
	if !ok || entry.Amount < amount {
		return ErrInsufficientBalance
	}

	entry.Amount -= amount
	entry.UpdatedAt = time.Now()
	if expenseID != "" {
		id := expenseID
		entry.LastExpenseID = &id
	}
	if entry.Amount == 0 {
		delete(s.entries, key)
	}
	return nil
}

// Set forces the pair to amount; zero deletes the row
func (s *MemoryStore) Set(_ context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{scope, debtor, creditor}
	if amount == 0 {
		delete(s.entries, key)
		return nil
	}

	entry := &Entry{Scope: scope, Debtor: debtor, Creditor: creditor, Amount: amount, UpdatedAt: time.Now()}
	if expenseID != "" {
		id := expenseID
		entry.LastExpenseID = &id
	}
	s.entries[key] = entry
	return nil
}

// Delete removes the pair if present
func (s *MemoryStore) Delete(_ context.Context, scope, debtor, creditor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, pairKey{scope, debtor, creditor})
	return nil
}

// ScanByDebtor returns every entry where userID owes, across all scopes
func (s *MemoryStore) ScanByDebtor(_ context.Context, userID string) ([]*Entry, error) {
	return s.collect(func(e *Entry) bool { return e.Debtor == userID }), nil
}

// ScanByCreditor returns every entry where userID is owed, across all scopes
func (s *MemoryStore) ScanByCreditor(_ context.Context, userID string) ([]*Entry, error) {
	return s.collect(func(e *Entry) bool { return e.Creditor == userID }), nil
}

// ScanByScope returns every entry in one scope
func (s *MemoryStore) ScanByScope(_ context.Context, scope string) ([]*Entry, error) {
	return s.collect(func(e *Entry) bool { return e.Scope == scope }), nil
}

// BulkReplace swaps out all entries for a scope
func (s *MemoryStore) BulkReplace(_ context.Context, scope string, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if key.scope == scope {
			delete(s.entries, key)
		}
	}
	for _, e := range entries {
		if e.Amount == 0 {
			continue
		}
		clone := *e
		clone.Scope = scope
		clone.UpdatedAt = time.Now()
		s.entries[pairKey{scope, e.Debtor, e.Creditor}] = &clone
	}
	return nil
}

func (s *MemoryStore) collect(match func(*Entry) bool) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*Entry
	for _, e := range s.entries {
		if match(e) {
			clone := *e
			entries = append(entries, &clone)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		if a.Debtor != b.Debtor {
			return a.Debtor < b.Debtor
		}
		return a.Creditor < b.Creditor
	})
	return entries
}
