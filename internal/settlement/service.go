package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/money"
)

// PlanResult is a computed settlement plan plus its totals.
type PlanResult struct {
	Scope      *string     `json:"scope,omitempty"`
	UserID     *string     `json:"userId,omitempty"`
	Transfers  []Transfer  `json:"transfers"`
	Total      money.Money `json:"total"`
	ComputedAt time.Time   `json:"computedAt"`
}

// Service computes settlement plans over the live balance store. Plans are
// cached like balance views and invalidated by the same jobs.
type Service struct {
	store  balance.Store
	caches *cache.Layer
	ttl    time.Duration
}

// NewService creates a new settlement planning service
func NewService(store balance.Store, caches *cache.Layer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, caches: caches, ttl: ttl}
}

// PlanForScope suggests the minimal transfers settling one scope.
func (s *Service) PlanForScope(ctx context.Context, scope string, fresh bool) (*PlanResult, error) {
	return s.plan(ctx, cache.ScopePlanKey(scope), fresh, func(ctx context.Context) (*PlanResult, error) {
		entries, err := s.store.ScanByScope(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		result := newPlanResult(entries)
		result.Scope = &scope
		return result, nil
	})
}

// PlanForUser suggests the minimal transfers settling everything the user
// participates in, across all scopes.
func (s *Service) PlanForUser(ctx context.Context, userID string, fresh bool) (*PlanResult, error) {
	return s.plan(ctx, cache.UserPlanKey(userID), fresh, func(ctx context.Context) (*PlanResult, error) {
		owes, err := s.store.ScanByDebtor(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debts: %w", err)
		}
		owed, err := s.store.ScanByCreditor(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credits: %w", err)
		}
		result := newPlanResult(append(owes, owed...))
		result.UserID = &userID
		return result, nil
	})
}

func newPlanResult(entries []*balance.Entry) *PlanResult {
	transfers := Plan(entries)
	result := &PlanResult{Transfers: transfers, ComputedAt: time.Now()}
	for _, t := range transfers {
		result.Total += t.Amount
	}
	return result
}

func (s *Service) plan(ctx context.Context, key string, fresh bool, build func(context.Context) (*PlanResult, error)) (*PlanResult, error) {
	if fresh {
		result, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if body, err := json.Marshal(result); err == nil {
			s.caches.Set(ctx, key, body, s.ttl)
		}
		return result, nil
	}

	body, err := s.caches.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		result, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, err
	}

	result := &PlanResult{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("failed to decode cached plan: %w", err)
	}
	return result, nil
}
