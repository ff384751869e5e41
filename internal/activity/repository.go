package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/fkhayef/tally/pkg/pagination"
)

// Store persists activity events. Insert must be idempotent on the natural
// key because the job runner delivers at-least-once.
type Store interface {
	Insert(ctx context.Context, event *Event) error
	ListByUser(ctx context.Context, userID string, limit int, after *pagination.Cursor) ([]*Event, error)
	ListByScope(ctx context.Context, scope string, limit int, after *pagination.Cursor) ([]*Event, error)
}

// Repository handles activity event persistence in Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new activity repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an event; a duplicate of the natural key is silently dropped
func (r *Repository) Insert(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	query := `
		INSERT INTO activity_events (id, type, user_id, scope, expense_id, entity_id, payload, created_at, created_at_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (type, entity_id, created_at_ns) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.UserID,
		event.Scope,
		event.ExpenseID,
		event.EntityID,
		event.Payload,
		event.CreatedAt,
		event.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// ListByUser returns the user's feed, newest first, from the cursor onward.
// It fetches limit+1 rows so the caller can tell whether more remain.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int, after *pagination.Cursor) ([]*Event, error) {
	return r.list(ctx, `user_id = $1`, userID, limit, after)
}

// ListByScope returns a scope's feed, newest first, from the cursor onward
func (r *Repository) ListByScope(ctx context.Context, scope string, limit int, after *pagination.Cursor) ([]*Event, error) {
	return r.list(ctx, `scope = $1`, scope, limit, after)
}

func (r *Repository) list(ctx context.Context, where, arg string, limit int, after *pagination.Cursor) ([]*Event, error) {
	query := `
		SELECT id, type, user_id, scope, expense_id, entity_id, payload, created_at, created_at_ns
		FROM activity_events
		WHERE ` + where + `
	`
	args := []interface{}{arg}

	if after != nil {
		ns, err := strconv.ParseInt(after.SortValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad sort value", pagination.ErrInvalidCursor)
		}
		query += ` AND (created_at_ns, id) < ($2, $3)`
		args = append(args, ns, after.ID)
	}

	query += fmt.Sprintf(` ORDER BY created_at_ns DESC, id DESC LIMIT %d`, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.UserID,
			&event.Scope,
			&event.ExpenseID,
			&event.EntityID,
			&event.Payload,
			&event.CreatedAt,
			&event.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}

	return events, nil
}

// MemoryStore is the in-memory event store used by unit tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []*Event
	seen   map[string]struct{}
}

// NewMemoryStore creates an empty in-memory event store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// Insert appends an event, deduplicating on the natural key
func (s *MemoryStore) Insert(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(event.Type) + "|" + event.EntityID + "|" + strconv.FormatInt(event.CreatedAtNs, 10)
	if _, ok := s.seen[key]; ok {
		return nil
	}
	s.seen[key] = struct{}{}

	clone := *event
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	s.events = append(s.events, &clone)
	return nil
}

// ListByUser returns the user's events, newest first
func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int, _ *pagination.Cursor) ([]*Event, error) {
	return s.collect(limit, func(e *Event) bool { return e.UserID == userID }), nil
}

// ListByScope returns a scope's events, newest first
func (s *MemoryStore) ListByScope(_ context.Context, scope string, limit int, _ *pagination.Cursor) ([]*Event, error) {
	return s.collect(limit, func(e *Event) bool { return e.Scope != nil && *e.Scope == scope }), nil
}

// All returns every stored event in insertion order. Test hook.
func (s *MemoryStore) All() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemoryStore) collect(limit int, match func(*Event) bool) []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit+1; i-- {
		if match(s.events[i]) {
			clone := *s.events[i]
			out = append(out, &clone)
		}
	}
	return out
}
