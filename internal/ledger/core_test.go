package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tally/internal/money"
)

func TestAddDebtBasic(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("b", "a", 3000))
	require.NoError(t, c.AddDebt("c", "a", 3000))

	assert.Equal(t, money.Money(3000), c.Owes("b", "a"))
	assert.Equal(t, money.Money(3000), c.Owes("c", "a"))
	assert.Equal(t, money.Money(6000), c.NetBalance("a"))
	assert.Equal(t, money.Money(-3000), c.NetBalance("b"))
}

func TestAddDebtRejectsBadInput(t *testing.T) {
	c := NewCore()
	assert.ErrorIs(t, c.AddDebt("a", "a", 100), ErrSelfDebt)
	assert.ErrorIs(t, c.AddDebt("a", "b", 0), ErrNonPositiveDebt)
	assert.ErrorIs(t, c.AddDebt("a", "b", -5), ErrNonPositiveDebt)
}

func TestAddDebtSimplifiesMutualDebt(t *testing.T) {
	c := NewCore()
	// B owes A 2000, then A incurs 1000 toward B: reverse absorbs it.
	require.NoError(t, c.AddDebt("b", "a", 2000))
	require.NoError(t, c.AddDebt("a", "b", 1000))

	assert.Equal(t, money.Money(1000), c.Owes("b", "a"))
	assert.Equal(t, money.Money(0), c.Owes("a", "b"))
}

func TestAddDebtFlipsDirectionPastReverse(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("b", "a", 500))
	require.NoError(t, c.AddDebt("a", "b", 800))

	assert.Equal(t, money.Money(0), c.Owes("b", "a"))
	assert.Equal(t, money.Money(300), c.Owes("a", "b"))
}

func TestAddDebtOppositeEqualIsNoOp(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("a", "b", 700))
	require.NoError(t, c.AddDebt("b", "a", 700))

	assert.Empty(t, c.Pairs())
	assert.Equal(t, money.Money(0), c.NetBalance("a"))
}

func TestNoMutualDebtEver(t *testing.T) {
	c := NewCore()
	ops := []struct {
		debtor, creditor string
		amount           money.Money
	}{
		{"b", "a", 2000}, {"c", "a", 2000},
		{"a", "b", 1000}, {"c", "b", 1000},
		{"a", "c", 3000}, {"b", "c", 50},
	}
	for _, op := range ops {
		require.NoError(t, c.AddDebt(op.debtor, op.creditor, op.amount))
		for _, p := range c.Pairs() {
			assert.Greater(t, p.Amount, money.Money(0))
			assert.Zero(t, c.Owes(p.Creditor, p.Debtor), "mutual debt %s<->%s", p.Debtor, p.Creditor)
		}
	}
}

func TestSettleDebt(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("b", "a", 500))

	require.NoError(t, c.SettleDebt("b", "a", 200))
	assert.Equal(t, money.Money(300), c.Owes("b", "a"))

	// Settling the rest deletes the row entirely.
	require.NoError(t, c.SettleDebt("b", "a", 300))
	assert.Empty(t, c.Pairs())
}

func TestSettleDebtInsufficient(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("b", "a", 500))

	assert.ErrorIs(t, c.SettleDebt("b", "a", 600), ErrInsufficientDebt)
	assert.ErrorIs(t, c.SettleDebt("c", "a", 1), ErrInsufficientDebt)
	assert.ErrorIs(t, c.SettleDebt("b", "a", 0), ErrNonPositiveDebt)
}

func TestUserOwesAndOwed(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("b", "a", 1000))
	require.NoError(t, c.AddDebt("c", "a", 2000))
	require.NoError(t, c.AddDebt("a", "d", 300))

	assert.Equal(t, map[string]money.Money{"b": 1000, "c": 2000}, c.UserOwed("a"))
	assert.Equal(t, map[string]money.Money{"d": 300}, c.UserOwes("a"))
	assert.Equal(t, money.Money(2700), c.NetBalance("a"))
}

func TestPairsDeterministicOrder(t *testing.T) {
	c := NewCore()
	require.NoError(t, c.AddDebt("c", "b", 100))
	require.NoError(t, c.AddDebt("b", "a", 100))
	require.NoError(t, c.AddDebt("c", "a", 100))

	pairs := c.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, Pair{"b", "a", 100}, pairs[0])
	assert.Equal(t, Pair{"c", "a", 100}, pairs[1])
	assert.Equal(t, Pair{"c", "b", 100}, pairs[2])
}
