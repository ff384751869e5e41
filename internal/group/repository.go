package group

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists groups and memberships. Soft-deleted groups stay readable
// through GetByID for history rendering but drop out of listings and
// membership checks.
type Store interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	ListByUser(ctx context.Context, userID string) ([]*Group, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, groupID, userID string) (*Member, error)
	GetMembers(ctx context.Context, groupID string) ([]*Member, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// Repository handles group persistence in Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new group
func (r *Repository) Create(ctx context.Context, g *Group) error {
	query := `
		INSERT INTO groups (id, name, description, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.Description, g.CreatorID, g.CreatedAt); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetByID retrieves a group, deleted or not, or nil when absent
func (r *Repository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `
		SELECT id, name, description, creator_id, created_at, deleted_at
		FROM groups
		WHERE id = $1
	`

	g := &Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.CreatedAt, &g.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListByUser retrieves the user's live groups, newest first
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.creator_id, g.created_at, g.deleted_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND g.deleted_at IS NULL
		ORDER BY g.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g := &Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.CreatedAt, &g.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// SoftDelete marks the group deleted; its expense log stays intact
func (r *Repository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE groups SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddMember adds a user to a group
func (r *Repository) AddMember(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO group_members (group_id, user_id, added_by, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, m.GroupID, m.UserID, m.AddedBy, m.JoinedAt); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetMember retrieves one membership, or nil when absent
func (r *Repository) GetMember(ctx context.Context, groupID, userID string) (*Member, error) {
	query := `
		SELECT group_id, user_id, added_by, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`

	m := &Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.AddedBy, &m.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetMembers retrieves all members of a group in join order
func (r *Repository) GetMembers(ctx context.Context, groupID string) ([]*Member, error) {
	query := `
		SELECT group_id, user_id, added_by, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at, user_id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.AddedBy, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// RemoveMember removes a user from a group
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// MemoryStore is the in-memory group store used by unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	groups  map[string]*Group
	members map[string]map[string]*Member
}

// NewMemoryStore creates an empty in-memory group store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:  make(map[string]*Group),
		members: make(map[string]map[string]*Member),
	}
}

// Create stores a group
func (s *MemoryStore) Create(_ context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *g
	s.groups[g.ID] = &clone
	return nil
}

// GetByID retrieves a group, or nil when absent
func (s *MemoryStore) GetByID(_ context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	clone := *g
	return &clone, nil
}

// ListByUser retrieves the user's live groups
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []*Group
	for id, g := range s.groups {
		if g.DeletedAt != nil {
			continue
		}
		if _, ok := s.members[id][userID]; ok {
			clone := *g
			groups = append(groups, &clone)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.After(groups[j].CreatedAt) })
	return groups, nil
}

// SoftDelete marks the group deleted
func (s *MemoryStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok || g.DeletedAt != nil {
		return ErrGroupNotFound
	}
	g.DeletedAt = &at
	return nil
}

// AddMember adds a user to a group
func (s *MemoryStore) AddMember(_ context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.GroupID]; !ok {
		s.members[m.GroupID] = make(map[string]*Member)
	}
	clone := *m
	s.members[m.GroupID][m.UserID] = &clone
	return nil
}

// GetMember retrieves one membership, or nil when absent
func (s *MemoryStore) GetMember(_ context.Context, groupID, userID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

// GetMembers retrieves all members of a group
func (s *MemoryStore) GetMembers(_ context.Context, groupID string) ([]*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []*Member
	for _, m := range s.members[groupID] {
		clone := *m
		members = append(members, &clone)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

// RemoveMember removes a user from a group
func (s *MemoryStore) RemoveMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[groupID][userID]; !ok {
		return ErrMemberNotFound
	}
	delete(s.members[groupID], userID)
	return nil
}
