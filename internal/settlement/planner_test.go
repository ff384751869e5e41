package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/money"
)

func entry(scope, debtor, creditor string, amount money.Money) *balance.Entry {
	return &balance.Entry{Scope: scope, Debtor: debtor, Creditor: creditor, Amount: amount}
}

func TestPlanEmpty(t *testing.T) {
	assert.Empty(t, Plan(nil))
}

func TestPlanSinglePair(t *testing.T) {
	transfers := Plan([]*balance.Entry{entry("trip", "bob", "alice", 3000)})
	require.Len(t, transfers, 1)
	assert.Equal(t, Transfer{From: "bob", To: "alice", Amount: 3000}, transfers[0])
}

func TestPlanNetsOutCycle(t *testing.T) {
	// a->b->c->a with equal amounts nets everyone to zero.
	transfers := Plan([]*balance.Entry{
		entry("trip", "a", "b", 1000),
		entry("trip", "b", "c", 1000),
		entry("trip", "c", "a", 1000),
	})
	assert.Empty(t, transfers)
}

func TestPlanChainCollapses(t *testing.T) {
	// a owes b, b owes c the same amount: one transfer a->c suffices.
	transfers := Plan([]*balance.Entry{
		entry("trip", "a", "b", 2000),
		entry("trip", "b", "c", 2000),
	})
	require.Len(t, transfers, 1)
	assert.Equal(t, Transfer{From: "a", To: "c", Amount: 2000}, transfers[0])
}

func TestPlanGreedyMatching(t *testing.T) {
	// alice is owed 5000, dave 1000; bob owes 4000, carol 2000.
	transfers := Plan([]*balance.Entry{
		entry("trip", "bob", "alice", 4000),
		entry("trip", "carol", "alice", 1000),
		entry("trip", "carol", "dave", 1000),
	})
	require.Len(t, transfers, 3)
	assert.Equal(t, Transfer{From: "bob", To: "alice", Amount: 4000}, transfers[0])
	assert.Equal(t, Transfer{From: "carol", To: "alice", Amount: 1000}, transfers[1])
	assert.Equal(t, Transfer{From: "carol", To: "dave", Amount: 1000}, transfers[2])
}

func TestPlanDeterministicTieBreak(t *testing.T) {
	entries := []*balance.Entry{
		entry("trip", "zed", "alice", 1000),
		entry("trip", "bob", "carol", 1000),
	}
	first := Plan(entries)

	// Same balances presented in a different order yield the same plan.
	reversed := []*balance.Entry{entries[1], entries[0]}
	second := Plan(reversed)

	require.Equal(t, first, second)
	require.Len(t, first, 2)
	// Equal credits tie-break on userId: alice before carol.
	assert.Equal(t, "alice", first[0].To)
	assert.Equal(t, "carol", first[1].To)
}

func TestPlanConservesTotals(t *testing.T) {
	entries := []*balance.Entry{
		entry("trip", "a", "b", 3100),
		entry("trip", "c", "b", 450),
		entry("trip", "b", "d", 2000),
		entry("trip", "d", "a", 999),
	}

	net := make(map[string]money.Money)
	for _, e := range entries {
		net[e.Debtor] -= e.Amount
		net[e.Creditor] += e.Amount
	}

	after := make(map[string]money.Money)
	for id, amount := range net {
		after[id] = amount
	}
	for _, tr := range Plan(entries) {
		require.Positive(t, tr.Amount)
		after[tr.From] += tr.Amount
		after[tr.To] -= tr.Amount
	}
	for id, remaining := range after {
		assert.Zerof(t, remaining, "user %s not settled", id)
	}
}

func TestPlanForScopeCachesResult(t *testing.T) {
	store := balance.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Increment(ctx, "trip", "bob", "alice", 3000, "e1"))

	layer := cache.NewLayer(cache.NewMemory(time.Minute), zap.NewNop())
	service := NewService(store, layer, time.Minute)

	first, err := service.PlanForScope(ctx, "trip", false)
	require.NoError(t, err)
	require.Len(t, first.Transfers, 1)
	assert.EqualValues(t, 3000, first.Total)

	// A store change without invalidation keeps serving the cached plan.
	require.NoError(t, store.Increment(ctx, "trip", "carol", "alice", 500, "e2"))
	cached, err := service.PlanForScope(ctx, "trip", false)
	require.NoError(t, err)
	assert.Len(t, cached.Transfers, 1)

	fresh, err := service.PlanForScope(ctx, "trip", true)
	require.NoError(t, err)
	assert.Len(t, fresh.Transfers, 2)
}

func TestPlanForUserSpansScopes(t *testing.T) {
	store := balance.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Increment(ctx, "trip", "bob", "alice", 3000, "e1"))
	require.NoError(t, store.Increment(ctx, "rent", "alice", "bob", 1000, "e2"))

	layer := cache.NewLayer(cache.NewNoop(), zap.NewNop())
	service := NewService(store, layer, time.Minute)

	plan, err := service.PlanForUser(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, plan.Transfers, 1)
	assert.Equal(t, Transfer{From: "bob", To: "alice", Amount: 2000}, plan.Transfers[0])
}
