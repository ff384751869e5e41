package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/activity"
	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/expense"
	"github.com/fkhayef/tally/internal/expense/split"
	"github.com/fkhayef/tally/internal/jobs"
	"github.com/fkhayef/tally/internal/lock"
	"github.com/fkhayef/tally/internal/money"
	"github.com/fkhayef/tally/pkg/pagination"
)

// Common errors
var (
	ErrNotMember         = errors.New("user is not a member of the group")
	ErrInvalidSettlement = errors.New("invalid settlement")
	ErrScopeRequired     = errors.New("scope is required")
)

// JobTypeInvalidate is the job type for background cache invalidation.
const JobTypeInvalidate = "cache.invalidate"

// MembershipChecker answers whether a user belongs to a group scope.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// EventEmitter records domain events after authoritative writes.
type EventEmitter interface {
	Emit(eventType activity.EventType, userID, entityID string, scope, expenseID *string, payload interface{})
}

// ServiceConfig tunes the ledger service's locking behavior.
type ServiceConfig struct {
	// LockTTL is the lease TTL on scope locks. Default 10s.
	LockTTL time.Duration
	// LockWait bounds how long a mutation waits for a contended lock.
	// Default 5s.
	LockWait time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 5 * time.Second
	}
	return c
}

// Service orchestrates ledger mutations. Every write path takes the scope's
// lock, applies the debt algebra against the balance store, verifies the
// lease is still held before finishing, and defers cache invalidation and
// event emission to background jobs.
type Service struct {
	registry    expense.Registry
	settlements SettlementLog
	store       balance.Store
	locks       lock.Service
	caches      *cache.Layer
	runner      *jobs.Runner
	emitter     EventEmitter
	memberships MembershipChecker
	splits      *split.Factory
	cfg         ServiceConfig
	log         *zap.Logger
}

// NewService creates the ledger service and registers its cache-invalidation
// job handler on the runner.
func NewService(
	registry expense.Registry,
	settlements SettlementLog,
	store balance.Store,
	locks lock.Service,
	caches *cache.Layer,
	runner *jobs.Runner,
	emitter EventEmitter,
	memberships MembershipChecker,
	cfg ServiceConfig,
	log *zap.Logger,
) *Service {
	s := &Service{
		registry:    registry,
		settlements: settlements,
		store:       store,
		locks:       locks,
		caches:      caches,
		runner:      runner,
		emitter:     emitter,
		memberships: memberships,
		splits:      split.NewFactory(),
		cfg:         cfg.withDefaults(),
		log:         log,
	}
	runner.Register(JobTypeInvalidate, s.invalidateJob)
	return s
}

// PostExpenseInput is everything needed to post one expense.
type PostExpenseInput struct {
	Scope        string
	PayerID      string
	Description  string
	Amount       money.Money
	SplitMode    string
	Participants []split.Input
	Date         time.Time
}

// PostExpense validates, splits, persists, and applies one expense to the
// pairwise ledger under the scope's lock.
func (s *Service) PostExpense(ctx context.Context, in PostExpenseInput) (*expense.Expense, error) {
	if in.Scope == "" {
		return nil, ErrScopeRequired
	}

	strategy, err := s.splits.CreateFromString(in.SplitMode)
	if err != nil {
		return nil, err
	}
	outputs, err := strategy.Calculate(in.Amount, in.PayerID, in.Participants)
	if err != nil {
		return nil, err
	}

	if in.Scope == balance.ScopeDirect {
		if len(outputs) == 0 {
			return nil, fmt.Errorf("%w: direct expense needs a counterparty", split.ErrInvalidSplit)
		}
	} else {
		if err := s.requireMember(ctx, in.Scope, in.PayerID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	exp := &expense.Expense{
		ID:           uuid.NewString(),
		Scope:        in.Scope,
		PayerID:      in.PayerID,
		Description:  in.Description,
		Amount:       in.Amount,
		SplitMode:    strategy.Mode(),
		Participants: in.Participants,
		Date:         date,
		CreatedAt:    now,
	}
	for _, out := range outputs {
		exp.Splits = append(exp.Splits, expense.Split{UserID: out.UserID, Amount: out.Amount})
	}

	if err := s.registry.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to persist expense: %w", err)
	}

	lease, err := s.acquire(ctx, in.Scope, in.PayerID)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	for _, sp := range exp.Splits {
		if err := s.checkLease(ctx, lease); err != nil {
			return nil, err
		}
		if err := s.applyDebt(ctx, in.Scope, sp.UserID, in.PayerID, sp.Amount, exp.ID); err != nil {
			return nil, err
		}
	}

	users := make([]string, 0, len(exp.Splits)+1)
	users = append(users, in.PayerID)
	for _, sp := range exp.Splits {
		users = append(users, sp.UserID)
	}
	s.invalidate(in.Scope, users...)

	scope := exp.Scope
	expenseID := exp.ID
	s.emitter.Emit(activity.EventExpenseAdded, in.PayerID, exp.ID, &scope, &expenseID, exp)

	return exp, nil
}

// Settle records that debtor repaid creditor amount within scope. The pair
// must currently hold at least amount; settlements never flip a debt around.
func (s *Service) Settle(ctx context.Context, scope, debtorID, creditorID string, amount money.Money) (*Settlement, error) {
	if scope == "" {
		return nil, ErrScopeRequired
	}
	if debtorID == creditorID {
		return nil, fmt.Errorf("%w: debtor and creditor must differ", ErrInvalidSettlement)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSettlement)
	}
	if scope != balance.ScopeDirect {
		if err := s.requireMember(ctx, scope, debtorID); err != nil {
			return nil, err
		}
	}

	lease, err := s.acquire(ctx, scope, debtorID)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	entry, err := s.store.GetPair(ctx, scope, debtorID, creditorID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if entry == nil || entry.Amount < amount {
		return nil, fmt.Errorf("%w: debt is smaller than the settlement", ErrInvalidSettlement)
	}

	settlement := &Settlement{
		ID:         uuid.NewString(),
		Scope:      scope,
		DebtorID:   debtorID,
		CreditorID: creditorID,
		Amount:     amount,
		CreatedAt:  time.Now(),
	}
	if err := s.settlements.Create(ctx, settlement); err != nil {
		return nil, fmt.Errorf("failed to persist settlement: %w", err)
	}

	if err := s.checkLease(ctx, lease); err != nil {
		return nil, err
	}
	if err := s.store.Decrement(ctx, scope, debtorID, creditorID, amount, settlement.ID); err != nil {
		if errors.Is(err, balance.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: debt is smaller than the settlement", ErrInvalidSettlement)
		}
		return nil, fmt.Errorf("failed to apply settlement: %w", err)
	}

	s.invalidate(scope, debtorID, creditorID)
	s.emitter.Emit(activity.EventSettlement, debtorID, settlement.ID, &settlement.Scope, nil, settlement)

	return settlement, nil
}

// Recompute rebuilds a scope's balances from its expense and settlement logs.
// It holds the scope lock for the duration and swaps the result in atomically,
// so a recompute of a quiet scope is a no-op.
func (s *Service) Recompute(ctx context.Context, scope string) error {
	if scope == "" {
		return ErrScopeRequired
	}

	lease, err := s.locks.Acquire(ctx, lock.ScopeLockName(scope), s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		return err
	}
	defer s.release(ctx, lease)

	expenses, err := s.registry.ListByScopeAsc(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to load expense log: %w", err)
	}
	settlements, err := s.settlements.ListByScopeAsc(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to load settlement log: %w", err)
	}

	core := NewCore()
	users := make(map[string]struct{})
	replay(core, expenses, settlements, func(op string, err error) {
		s.log.Warn("skipping inconsistent log entry during recompute",
			zap.String("scope", scope),
			zap.String("op", op),
			zap.Error(err))
	})
	for _, e := range expenses {
		users[e.PayerID] = struct{}{}
		for _, sp := range e.Splits {
			users[sp.UserID] = struct{}{}
		}
	}

	entries := make([]*balance.Entry, 0)
	for _, p := range core.Pairs() {
		entries = append(entries, &balance.Entry{
			Scope:    scope,
			Debtor:   p.Debtor,
			Creditor: p.Creditor,
			Amount:   p.Amount,
		})
	}

	if err := s.checkLease(ctx, lease); err != nil {
		return err
	}
	if err := s.store.BulkReplace(ctx, scope, entries); err != nil {
		return fmt.Errorf("failed to replace balances: %w", err)
	}

	userIDs := make([]string, 0, len(users))
	for id := range users {
		userIDs = append(userIDs, id)
	}
	s.invalidate(scope, userIDs...)
	return nil
}

// replay folds the merged expense and settlement logs, ordered by creation
// time, into the core. Entries the algebra rejects are reported and skipped
// rather than aborting the rebuild.
func replay(core *Core, expenses []*expense.Expense, settlements []*Settlement, onSkip func(op string, err error)) {
	i, j := 0, 0
	for i < len(expenses) || j < len(settlements) {
		if j >= len(settlements) || (i < len(expenses) && !expenses[i].CreatedAt.After(settlements[j].CreatedAt)) {
			e := expenses[i]
			i++
			for _, sp := range e.Splits {
				if err := core.AddDebt(sp.UserID, e.PayerID, sp.Amount); err != nil {
					onSkip("expense "+e.ID, err)
				}
			}
			continue
		}
		st := settlements[j]
		j++
		if err := core.SettleDebt(st.DebtorID, st.CreditorID, st.Amount); err != nil {
			onSkip("settlement "+st.ID, err)
		}
	}
}

// RetryAfterSeconds is the retry hint handlers attach to lock timeouts.
func (s *Service) RetryAfterSeconds() int {
	secs := int(s.cfg.LockWait.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// GetExpense returns one expense, or nil when absent.
func (s *Service) GetExpense(ctx context.Context, id string) (*expense.Expense, error) {
	return s.registry.GetByID(ctx, id)
}

// ListExpenses returns a page of a scope's expenses, newest first. The
// returned slice holds up to limit+1 entries so callers can detect more pages.
func (s *Service) ListExpenses(ctx context.Context, scope string, limit int, after *pagination.Cursor) ([]*expense.Expense, error) {
	return s.registry.ListByScope(ctx, scope, limit, after)
}

// applyDebt applies one split to the store, folding against any reverse debt
// first so a pair and its reverse never both carry an amount.
func (s *Service) applyDebt(ctx context.Context, scope, debtor, creditor string, amount money.Money, expenseID string) error {
	reverse, err := s.store.GetPair(ctx, scope, creditor, debtor)
	if err != nil {
		return fmt.Errorf("failed to read reverse balance: %w", err)
	}

	if reverse != nil {
		if reverse.Amount >= amount {
			if err := s.store.Decrement(ctx, scope, creditor, debtor, amount, expenseID); err != nil {
				return fmt.Errorf("failed to reduce reverse balance: %w", err)
			}
			return nil
		}
		if err := s.store.Delete(ctx, scope, creditor, debtor); err != nil {
			return fmt.Errorf("failed to clear reverse balance: %w", err)
		}
		amount -= reverse.Amount
	}

	if err := s.store.Increment(ctx, scope, debtor, creditor, amount, expenseID); err != nil {
		return fmt.Errorf("failed to increment balance: %w", err)
	}
	return nil
}

// acquire takes the lock serializing this mutation: the scope lock for group
// scopes, the payer's direct lock otherwise.
func (s *Service) acquire(ctx context.Context, scope, payerID string) (*lock.Lease, error) {
	name := lock.ScopeLockName(scope)
	if scope == balance.ScopeDirect {
		name = lock.DirectLockName(payerID)
	}
	return s.locks.Acquire(ctx, name, s.cfg.LockTTL, s.cfg.LockWait)
}

func (s *Service) release(ctx context.Context, lease *lock.Lease) {
	if err := s.locks.Release(ctx, lease); err != nil {
		s.log.Warn("failed to release lock", zap.String("name", lease.Name), zap.Error(err))
	}
}

// checkLease verifies the lease survived; writes after the TTL expired would
// race the next holder and must be rejected.
func (s *Service) checkLease(ctx context.Context, lease *lock.Lease) error {
	held, err := s.locks.Held(ctx, lease)
	if err != nil {
		return fmt.Errorf("failed to verify lock lease: %w", err)
	}
	if !held {
		return lock.ErrLeaseLost
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := s.memberships.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// invalidatePayload is the cache-invalidation job body.
type invalidatePayload struct {
	Keys []string `json:"keys"`
}

// invalidate enqueues the cache invalidations a balance change requires:
// each touched user's view and plan, plus the scope's matrix and plan.
// Failures are logged and dropped; stale entries age out via TTL.
func (s *Service) invalidate(scope string, users ...string) {
	keys := []string{
		cache.ScopeMatrixKey(scope),
		cache.ScopePlanKey(scope),
	}
	seen := make(map[string]struct{}, len(users))
	for _, id := range users {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, cache.UserViewKey(id), cache.UserPlanKey(id))
	}

	if err := s.runner.Enqueue(JobTypeInvalidate, invalidatePayload{Keys: keys}, jobs.Options{}); err != nil {
		s.log.Warn("failed to enqueue cache invalidation", zap.Error(err))
	}
}

func (s *Service) invalidateJob(ctx context.Context, payload []byte) error {
	var p invalidatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	return s.caches.Del(ctx, p.Keys...)
}
