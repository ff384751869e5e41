package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/money"
)

// UserAmount is one counterparty and the amount owed in a single direction.
type UserAmount struct {
	UserID string      `json:"userId"`
	Amount money.Money `json:"amount"`
}

// UserView is a user's aggregated balance position. Owes lists who the
// viewer owes, Owed lists who owes the viewer; both are summed across
// scopes and sorted by userId.
type UserView struct {
	UserID     string       `json:"userId"`
	TotalOwes  money.Money  `json:"totalOwes"`
	TotalOwed  money.Money  `json:"totalOwed"`
	NetBalance money.Money  `json:"netBalance"`
	Owes       []UserAmount `json:"owes"`
	Owed       []UserAmount `json:"owed"`
	ComputedAt time.Time    `json:"computedAt"`
}

// ScopeMatrix is every live pairwise debt inside one scope.
type ScopeMatrix struct {
	Scope      string    `json:"scope"`
	Entries    []*Entry  `json:"entries"`
	ComputedAt time.Time `json:"computedAt"`
}

// Service serves aggregated balance reads. Results are cached with a TTL;
// writers enqueue invalidations, so a cached view is at most one failed
// invalidation plus one TTL stale.
type Service struct {
	store  Store
	caches *cache.Layer
	ttl    time.Duration
}

// NewService creates a new balance aggregation service
func NewService(store Store, caches *cache.Layer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, caches: caches, ttl: ttl}
}

// GetUserView returns the user's aggregated position. fresh bypasses the
// cache, reads the store directly, and refreshes the cached copy.
func (s *Service) GetUserView(ctx context.Context, userID string, fresh bool) (*UserView, error) {
	key := cache.UserViewKey(userID)

	if fresh {
		view, err := s.buildUserView(ctx, userID)
		if err != nil {
			return nil, err
		}
		if body, err := json.Marshal(view); err == nil {
			s.caches.Set(ctx, key, body, s.ttl)
		}
		return view, nil
	}

	body, err := s.caches.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		view, err := s.buildUserView(ctx, userID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(view)
	})
	if err != nil {
		return nil, err
	}

	view := &UserView{}
	if err := json.Unmarshal(body, view); err != nil {
		return nil, fmt.Errorf("failed to decode cached user view: %w", err)
	}
	return view, nil
}

// GetScopeMatrix returns every live pairwise debt in one scope.
func (s *Service) GetScopeMatrix(ctx context.Context, scope string, fresh bool) (*ScopeMatrix, error) {
	key := cache.ScopeMatrixKey(scope)

	if fresh {
		matrix, err := s.buildScopeMatrix(ctx, scope)
		if err != nil {
			return nil, err
		}
		if body, err := json.Marshal(matrix); err == nil {
			s.caches.Set(ctx, key, body, s.ttl)
		}
		return matrix, nil
	}

	body, err := s.caches.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		matrix, err := s.buildScopeMatrix(ctx, scope)
		if err != nil {
			return nil, err
		}
		return json.Marshal(matrix)
	})
	if err != nil {
		return nil, err
	}

	matrix := &ScopeMatrix{}
	if err := json.Unmarshal(body, matrix); err != nil {
		return nil, fmt.Errorf("failed to decode cached scope matrix: %w", err)
	}
	return matrix, nil
}

func (s *Service) buildUserView(ctx context.Context, userID string) (*UserView, error) {
	owes, err := s.store.ScanByDebtor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan debts: %w", err)
	}
	owed, err := s.store.ScanByCreditor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan credits: %w", err)
	}

	owesBy := make(map[string]money.Money)
	owedBy := make(map[string]money.Money)

	view := &UserView{UserID: userID, ComputedAt: time.Now()}
	for _, e := range owes {
		owesBy[e.Creditor] += e.Amount
		view.TotalOwes += e.Amount
	}
	for _, e := range owed {
		owedBy[e.Debtor] += e.Amount
		view.TotalOwed += e.Amount
	}
	view.NetBalance = view.TotalOwed - view.TotalOwes
	view.Owes = sortedAmounts(owesBy)
	view.Owed = sortedAmounts(owedBy)
	return view, nil
}

func sortedAmounts(byUser map[string]money.Money) []UserAmount {
	out := make([]UserAmount, 0, len(byUser))
	for id, amount := range byUser {
		out = append(out, UserAmount{UserID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Service) buildScopeMatrix(ctx context.Context, scope string) (*ScopeMatrix, error) {
	entries, err := s.store.ScanByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scope: %w", err)
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return &ScopeMatrix{Scope: scope, Entries: entries, ComputedAt: time.Now()}, nil
}
