package balance

import (
	"context"

	"github.com/fkhayef/tally/internal/money"
)

// Store is the authoritative pairwise ledger, keyed by (scope, debtor,
// creditor). Every mutation is atomic per key. Implementations never return
// or keep rows with amount = 0.
type Store interface {
	// GetPair returns the entry for (scope, debtor, creditor), or nil when
	// no debt exists in that direction.
	GetPair(ctx context.Context, scope, debtor, creditor string) (*Entry, error)

	// Increment adds amount to the pair, creating the row if needed.
	Increment(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error

	// Decrement subtracts amount from the pair, deleting the row when it
	// reaches zero. Returns ErrInsufficientBalance if the row is absent or
	// holds less than amount.
	Decrement(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error

	// Set forces the pair to amount; zero deletes the row.
	Set(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error

	// Delete removes the pair if present.
	Delete(ctx context.Context, scope, debtor, creditor string) error

	// ScanByDebtor returns every entry, across all scopes, where userID owes.
	ScanByDebtor(ctx context.Context, userID string) ([]*Entry, error)

	// ScanByCreditor returns every entry, across all scopes, where userID is owed.
	ScanByCreditor(ctx context.Context, userID string) ([]*Entry, error)

	// ScanByScope returns every entry in one scope.
	ScanByScope(ctx context.Context, scope string) ([]*Entry, error)

	// BulkReplace swaps out all entries for a scope. Used only by recompute.
	BulkReplace(ctx context.Context, scope string, entries []*Entry) error
}
