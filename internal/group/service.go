package group

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/tally/internal/activity"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupDeleted        = errors.New("group has been deleted")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrNameRequired        = errors.New("group name is required")
)

// EventEmitter records group lifecycle events.
type EventEmitter interface {
	Emit(eventType activity.EventType, userID, entityID string, scope, expenseID *string, payload interface{})
}

// Service handles group business logic. It also answers the ledger's
// membership checks: only live-group members may post to a group scope.
type Service struct {
	store   Store
	emitter EventEmitter
}

// NewService creates a new group service
func NewService(store Store, emitter EventEmitter) *Service {
	return &Service{store: store, emitter: emitter}
}

// Create creates a new group with the creator as its first member
func (s *Service) Create(ctx context.Context, creatorID string, req *CreateGroupRequest) (*Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now()
	g := &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		CreatorID:   creatorID,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, g); err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, &Member{
		GroupID:  g.ID,
		UserID:   creatorID,
		AddedBy:  creatorID,
		JoinedAt: now,
	}); err != nil {
		return nil, err
	}

	s.emitter.Emit(activity.EventGroupCreated, creatorID, g.ID, &g.ID, nil, g)
	return g, nil
}

// GetWithMembers retrieves a group with its member list
func (s *Service) GetWithMembers(ctx context.Context, id string) (*GroupWithMembers, error) {
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}

	members, err := s.store.GetMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GroupWithMembers{Group: *g, Members: members}, nil
}

// ListForUser retrieves the user's live groups
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Group, error) {
	return s.store.ListByUser(ctx, userID)
}

// Delete soft-deletes a group. Only the creator may delete; the expense log
// and balances survive for history and recompute.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	g, err := s.liveGroup(ctx, id)
	if err != nil {
		return err
	}
	if g.CreatorID != callerID {
		return ErrNotAuthorized
	}

	if err := s.store.SoftDelete(ctx, id, time.Now()); err != nil {
		return err
	}
	s.emitter.Emit(activity.EventGroupDeleted, callerID, id, &id, nil, nil)
	return nil
}

// AddMember adds a user to a group. Any current member may add.
func (s *Service) AddMember(ctx context.Context, groupID, callerID string, req *AddMemberRequest) (*Member, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetMember(ctx, groupID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	m := &Member{
		GroupID:  groupID,
		UserID:   req.UserID,
		AddedBy:  callerID,
		JoinedAt: time.Now(),
	}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.emitter.Emit(activity.EventMemberAdded, callerID, groupID+":"+req.UserID, &groupID, nil, m)
	return m, nil
}

// RemoveMember removes a user from a group. Members may leave; the creator
// may remove anyone.
func (s *Service) RemoveMember(ctx context.Context, groupID, callerID, userID string) error {
	g, err := s.liveGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if callerID != userID && callerID != g.CreatorID {
		return ErrNotAuthorized
	}
	return s.store.RemoveMember(ctx, groupID, userID)
}

// IsMember reports whether the user belongs to a live group. Implements the
// ledger's membership check.
func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	g, err := s.store.GetByID(ctx, groupID)
	if err != nil {
		return false, err
	}
	if g == nil || g.DeletedAt != nil {
		return false, nil
	}

	m, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (s *Service) liveGroup(ctx context.Context, id string) (*Group, error) {
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	if g.DeletedAt != nil {
		return nil, ErrGroupDeleted
	}
	return g, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID string) error {
	m, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotAuthorized
	}
	return nil
}
