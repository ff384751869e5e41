package expense

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/fkhayef/tally/internal/money"
	"github.com/fkhayef/tally/pkg/pagination"
)

// Registry stores immutable expenses. ListByScopeAsc feeds recompute and
// must return the full log in createdAt order.
type Registry interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, id string) (*Expense, error)
	ListByScope(ctx context.Context, scope string, limit int, after *pagination.Cursor) ([]*Expense, error)
	ListByScopeAsc(ctx context.Context, scope string) ([]*Expense, error)
}

// Repository handles expense persistence in Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the expense and its derived splits in one transaction
func (r *Repository) Create(ctx context.Context, e *Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin expense insert: %w", err)
	}
	defer tx.Rollback()

	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	insert := `
		INSERT INTO expenses (id, scope, payer_id, description, amount, split_mode, participants, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.ExecContext(ctx, insert,
		e.ID, e.Scope, e.PayerID, e.Description, e.Amount.Cents(), e.SplitMode, participants, e.Date, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	splitInsert := `
		INSERT INTO expense_splits (expense_id, user_id, amount)
		VALUES ($1, $2, $3)
	`
	for _, s := range e.Splits {
		if _, err := tx.ExecContext(ctx, splitInsert, e.ID, s.UserID, s.Amount.Cents()); err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expense insert: %w", err)
	}
	return nil
}

const expenseColumns = `id, scope, payer_id, description, amount, split_mode, participants, date, created_at`

// GetByID retrieves an expense with its splits, or nil when absent
func (r *Repository) GetByID(ctx context.Context, id string) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	e, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := r.attachSplits(ctx, []*Expense{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListByScope returns a page of expenses, newest first, from the cursor
// onward. Fetches limit+1 rows so the caller can tell whether more remain.
func (r *Repository) ListByScope(ctx context.Context, scope string, limit int, after *pagination.Cursor) ([]*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE scope = $1`
	args := []interface{}{scope}

	if after != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, after.SortValue)
		if err != nil {
			return nil, fmt.Errorf("%w: bad sort value", pagination.ErrInvalidCursor)
		}
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, createdAt, after.ID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	expenses, err := r.scanMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// ListByScopeAsc returns the scope's full expense log in createdAt order
func (r *Repository) ListByScopeAsc(ctx context.Context, scope string) ([]*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE scope = $1 ORDER BY created_at ASC, id ASC`

	expenses, err := r.scanMany(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	if err := r.attachSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanOne(row rowScanner) (*Expense, error) {
	e := &Expense{}
	var participants []byte
	var amount int64
	if err := row.Scan(
		&e.ID, &e.Scope, &e.PayerID, &e.Description, &amount, &e.SplitMode, &participants, &e.Date, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Amount = money.Money(amount)
	if err := json.Unmarshal(participants, &e.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	return e, nil
}

func (r *Repository) scanMany(ctx context.Context, query string, args ...interface{}) ([]*Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		e, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (r *Repository) attachSplits(ctx context.Context, expenses []*Expense) error {
	byID := make(map[string]*Expense, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
	}
	if len(byID) == 0 {
		return nil
	}

	query := `
		SELECT expense_id, user_id, amount
		FROM expense_splits
		WHERE expense_id = ANY($1)
		ORDER BY user_id
	`
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load expense splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID, userID string
		var amount int64
		if err := rows.Scan(&expenseID, &userID, &amount); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		if e, ok := byID[expenseID]; ok {
			e.Splits = append(e.Splits, Split{UserID: userID, Amount: money.Money(amount)})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load expense splits: %w", err)
	}
	return nil
}

// MemoryRegistry is the in-memory Registry used by unit tests.
type MemoryRegistry struct {
	mu       sync.RWMutex
	expenses map[string]*Expense
	order    []string
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{expenses: make(map[string]*Expense)}
}

// Create stores the expense
func (m *MemoryRegistry) Create(_ context.Context, e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.expenses[e.ID] = &clone
	m.order = append(m.order, e.ID)
	return nil
}

// GetByID retrieves an expense, or nil when absent
func (m *MemoryRegistry) GetByID(_ context.Context, id string) (*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

// ListByScope returns a page of expenses, newest first
func (m *MemoryRegistry) ListByScope(_ context.Context, scope string, limit int, _ *pagination.Cursor) ([]*Expense, error) {
	all := m.byScopeAsc(scope)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit+1 {
		all = all[:limit+1]
	}
	return all, nil
}

// ListByScopeAsc returns the scope's full expense log in createdAt order
func (m *MemoryRegistry) ListByScopeAsc(_ context.Context, scope string) ([]*Expense, error) {
	return m.byScopeAsc(scope), nil
}

func (m *MemoryRegistry) byScopeAsc(scope string) []*Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Expense
	for _, id := range m.order {
		if e := m.expenses[id]; e.Scope == scope {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out
}
