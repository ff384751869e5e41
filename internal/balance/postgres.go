package balance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fkhayef/tally/internal/money"
)

// PostgresStore persists balance entries in the balances table. The table
// carries CHECK (amount > 0), so a zero row can never exist even mid-write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-backed balance store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `scope, debtor, creditor, amount, last_expense_id, updated_at`

// GetPair returns the entry for one directed pair, or nil when absent
func (s *PostgresStore) GetPair(ctx context.Context, scope, debtor, creditor string) (*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM balances
		WHERE scope = $1 AND debtor = $2 AND creditor = $3
	`

	entry := &Entry{}
	err := s.db.QueryRowContext(ctx, query, scope, debtor, creditor).Scan(
		&entry.Scope,
		&entry.Debtor,
		&entry.Creditor,
		&entry.Amount,
		&entry.LastExpenseID,
		&entry.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance pair: %w", err)
	}

	return entry, nil
}

// Increment adds amount to the pair with an upsert
func (s *PostgresStore) Increment(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	if debtor == creditor {
		return ErrSamePair
	}
	query := `
		INSERT INTO balances (scope, debtor, creditor, amount, last_expense_id, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		ON CONFLICT (scope, debtor, creditor) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount,
		    last_expense_id = COALESCE(EXCLUDED.last_expense_id, balances.last_expense_id),
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, scope, debtor, creditor, amount.Cents(), expenseID); err != nil {
		return fmt.Errorf("failed to increment balance: %w", err)
	}
	return nil
}

// Decrement subtracts amount from the pair. A decrement that lands exactly on
// zero is executed as a delete so the amount > 0 constraint always holds.
func (s *PostgresStore) Decrement(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	update := `
		UPDATE balances
		SET amount = amount - $4,
		    last_expense_id = COALESCE(NULLIF($5, ''), last_expense_id),
		    updated_at = NOW()
		WHERE scope = $1 AND debtor = $2 AND creditor = $3 AND amount > $4
	`

	result, err := s.db.ExecContext(ctx, update, scope, debtor, creditor, amount.Cents(), expenseID)
	if err != nil {
		return fmt.Errorf("failed to decrement balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	// Either the row holds exactly amount (delete it) or the balance is short.
	del := `
		DELETE FROM balances
		WHERE scope = $1 AND debtor = $2 AND creditor = $3 AND amount = $4
	`
	result, err = s.db.ExecContext(ctx, del, scope, debtor, creditor, amount.Cents())
	if err != nil {
		return fmt.Errorf("failed to close out balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Set forces the pair to amount; zero deletes the row
func (s *PostgresStore) Set(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	if amount == 0 {
		return s.Delete(ctx, scope, debtor, creditor)
	}
	query := `
		INSERT INTO balances (scope, debtor, creditor, amount, last_expense_id, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		ON CONFLICT (scope, debtor, creditor) DO UPDATE
		SET amount = EXCLUDED.amount,
		    last_expense_id = COALESCE(EXCLUDED.last_expense_id, balances.last_expense_id),
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, scope, debtor, creditor, amount.Cents(), expenseID); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// Delete removes the pair if present
func (s *PostgresStore) Delete(ctx context.Context, scope, debtor, creditor string) error {
	query := `DELETE FROM balances WHERE scope = $1 AND debtor = $2 AND creditor = $3`
	if _, err := s.db.ExecContext(ctx, query, scope, debtor, creditor); err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}

// ScanByDebtor returns every entry where userID owes, across all scopes
func (s *PostgresStore) ScanByDebtor(ctx context.Context, userID string) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM balances
		WHERE debtor = $1
		ORDER BY scope, creditor
	`
	return s.scan(ctx, query, userID)
}

// ScanByCreditor returns every entry where userID is owed, across all scopes
func (s *PostgresStore) ScanByCreditor(ctx context.Context, userID string) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM balances
		WHERE creditor = $1
		ORDER BY scope, debtor
	`
	return s.scan(ctx, query, userID)
}

// ScanByScope returns every entry in one scope
func (s *PostgresStore) ScanByScope(ctx context.Context, scope string) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM balances
		WHERE scope = $1
		ORDER BY debtor, creditor
	`
	return s.scan(ctx, query, scope)
}

// BulkReplace swaps out all entries for a scope in one transaction
func (s *PostgresStore) BulkReplace(ctx context.Context, scope string, entries []*Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bulk replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances WHERE scope = $1`, scope); err != nil {
		return fmt.Errorf("failed to clear scope balances: %w", err)
	}

	insert := `
		INSERT INTO balances (scope, debtor, creditor, amount, last_expense_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	for _, e := range entries {
		if e.Amount == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, scope, e.Debtor, e.Creditor, e.Amount.Cents(), e.LastExpenseID); err != nil {
			return fmt.Errorf("failed to insert balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk replace: %w", err)
	}
	return nil
}

func (s *PostgresStore) scan(ctx context.Context, query string, arg string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to scan balances: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		if err := rows.Scan(
			&entry.Scope,
			&entry.Debtor,
			&entry.Creditor,
			&entry.Amount,
			&entry.LastExpenseID,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan balances: %w", err)
	}

	return entries, nil
}
