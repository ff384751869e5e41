package settlement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fkhayef/tally/internal/ledger"
	"github.com/fkhayef/tally/internal/money"
)

// Repository persists settlements in Postgres. It implements
// ledger.SettlementLog.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create appends a settlement
func (r *Repository) Create(ctx context.Context, s *ledger.Settlement) error {
	query := `
		INSERT INTO settlements (id, scope, debtor_id, creditor_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.Scope, s.DebtorID, s.CreditorID, s.Amount.Cents(), s.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// ListByScopeAsc returns the scope's settlements in createdAt order
func (r *Repository) ListByScopeAsc(ctx context.Context, scope string) ([]*ledger.Settlement, error) {
	query := `
		SELECT id, scope, debtor_id, creditor_id, amount, created_at
		FROM settlements
		WHERE scope = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*ledger.Settlement
	for rows.Next() {
		s := &ledger.Settlement{}
		var amount int64
		if err := rows.Scan(&s.ID, &s.Scope, &s.DebtorID, &s.CreditorID, &amount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		s.Amount = money.Money(amount)
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}
