package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tally/internal/money"
)

func cents(v int64) money.Money { return money.Money(v) }

func moneyPtr(v int64) *money.Money {
	m := money.Money(v)
	return &m
}

func bpPtr(v int64) *int64 { return &v }

func equalInputs(ids ...string) []Input {
	in := make([]Input, len(ids))
	for i, id := range ids {
		in[i] = Input{UserID: id}
	}
	return in
}

func sumOutputs(outputs []Output) int64 {
	var total int64
	for _, o := range outputs {
		total += o.Amount.Cents()
	}
	return total
}

func TestFactoryCreate(t *testing.T) {
	f := NewFactory()

	for _, mode := range []SplitMode{ModeEqual, ModeExact, ModePercentage} {
		s, err := f.Create(mode)
		require.NoError(t, err)
		assert.Equal(t, mode, s.Mode())
	}

	_, err := f.CreateFromString("weighted")
	assert.ErrorIs(t, err, ErrInvalidSplit)
}

func TestEqualThreeWay(t *testing.T) {
	s := &EqualStrategy{}

	outputs, err := s.Calculate(cents(9000), "a", equalInputs("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []Output{
		{UserID: "b", Amount: cents(3000)},
		{UserID: "c", Amount: cents(3000)},
	}, outputs)
}

func TestEqualRemainderGoesToFirstByUserID(t *testing.T) {
	s := &EqualStrategy{}

	// 10.00 among 3: base 333, the single remainder cent to the first by userId.
	outputs, err := s.Calculate(cents(1000), "c", equalInputs("b", "c", "a"))
	require.NoError(t, err)

	assert.Equal(t, []Output{
		{UserID: "a", Amount: cents(334)},
		{UserID: "b", Amount: cents(333)},
	}, outputs)
	// Payer c keeps 333: total emitted = amount - payer share.
	assert.Equal(t, int64(1000-333), sumOutputs(outputs))
}

func TestEqualRemainderCentOnPayerStaysWithPayer(t *testing.T) {
	s := &EqualStrategy{}

	// 10.00 among 3 with payer "a" first in userId order: the remainder cent
	// for "a" is not emitted, so "a"'s share is 334 and debtors owe 333 each.
	outputs, err := s.Calculate(cents(1000), "a", equalInputs("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []Output{
		{UserID: "b", Amount: cents(333)},
		{UserID: "c", Amount: cents(333)},
	}, outputs)
	assert.Equal(t, int64(1000-334), sumOutputs(outputs))
}

func TestEqualPayerOnly(t *testing.T) {
	s := &EqualStrategy{}

	outputs, err := s.Calculate(cents(500), "a", equalInputs("a"))
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestEqualDropsZeroShares(t *testing.T) {
	s := &EqualStrategy{}

	// 1 cent among three: only the first participant owes anything.
	outputs, err := s.Calculate(cents(1), "c", equalInputs("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []Output{{UserID: "a", Amount: cents(1)}}, outputs)
}

func TestEqualInvalid(t *testing.T) {
	s := &EqualStrategy{}

	_, err := s.Calculate(cents(100), "a", nil)
	assert.ErrorIs(t, err, ErrNoParticipants)

	_, err = s.Calculate(cents(0), "a", equalInputs("a", "b"))
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = s.Calculate(cents(100), "a", equalInputs("b", "b"))
	assert.ErrorIs(t, err, ErrDuplicateParticipant)
}

func TestExact(t *testing.T) {
	s := &ExactStrategy{}

	outputs, err := s.Calculate(cents(1000), "a", []Input{
		{UserID: "b", ExactAmount: moneyPtr(300)},
		{UserID: "c", ExactAmount: moneyPtr(200)},
		{UserID: "a"}, // payer, share is the residual 500
	})
	require.NoError(t, err)

	assert.Equal(t, []Output{
		{UserID: "b", Amount: cents(300)},
		{UserID: "c", Amount: cents(200)},
	}, outputs)
}

func TestExactFullAmount(t *testing.T) {
	s := &ExactStrategy{}

	outputs, err := s.Calculate(cents(500), "a", []Input{
		{UserID: "b", ExactAmount: moneyPtr(500)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), sumOutputs(outputs))
}

func TestExactInvalid(t *testing.T) {
	s := &ExactStrategy{}

	_, err := s.Calculate(cents(100), "a", []Input{
		{UserID: "b", ExactAmount: moneyPtr(200)},
	})
	assert.ErrorIs(t, err, ErrExactExceedsTotal)

	_, err = s.Calculate(cents(100), "a", []Input{
		{UserID: "b", ExactAmount: moneyPtr(0)},
	})
	assert.ErrorIs(t, err, ErrExactNotPositive)

	_, err = s.Calculate(cents(100), "a", []Input{
		{UserID: "b"},
	})
	assert.ErrorIs(t, err, ErrMissingExactAmount)

	// Only the payer listed: nobody owes anything, which is not a split.
	_, err = s.Calculate(cents(100), "a", []Input{{UserID: "a"}})
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestPercentageEvenSplit(t *testing.T) {
	s := &PercentageStrategy{}

	outputs, err := s.Calculate(cents(9000), "a", []Input{
		{UserID: "a", PercentBp: bpPtr(3334)},
		{UserID: "b", PercentBp: bpPtr(3333)},
		{UserID: "c", PercentBp: bpPtr(3333)},
	})
	require.NoError(t, err)

	// Shares sum to the full amount; payer keeps theirs.
	assert.Len(t, outputs, 2)
	var payerShare = int64(9000) - sumOutputs(outputs)
	assert.Equal(t, int64(3001), payerShare)
}

func TestPercentageFullCoverageIndivisible(t *testing.T) {
	s := &PercentageStrategy{}

	// 100.01 split 50/50: floors lose a cent, redistributed to the first
	// participant by userId ascending.
	outputs, err := s.Calculate(cents(10001), "c", []Input{
		{UserID: "b", PercentBp: bpPtr(5000)},
		{UserID: "a", PercentBp: bpPtr(5000)},
	})
	require.NoError(t, err)

	assert.Equal(t, []Output{
		{UserID: "a", Amount: cents(5001)},
		{UserID: "b", Amount: cents(5000)},
	}, outputs)
	assert.Equal(t, int64(10001), sumOutputs(outputs))
}

func TestPercentagePayerAbsorbsResidual(t *testing.T) {
	s := &PercentageStrategy{}

	// Only 60% allocated: the unallocated 40% stays with the payer.
	outputs, err := s.Calculate(cents(1000), "a", []Input{
		{UserID: "b", PercentBp: bpPtr(6000)},
	})
	require.NoError(t, err)
	assert.Equal(t, []Output{{UserID: "b", Amount: cents(600)}}, outputs)
}

func TestPercentageInvalid(t *testing.T) {
	s := &PercentageStrategy{}

	_, err := s.Calculate(cents(100), "a", []Input{
		{UserID: "b", PercentBp: bpPtr(10001)},
	})
	assert.ErrorIs(t, err, ErrPercentageOutOfRange)

	_, err = s.Calculate(cents(100), "a", []Input{
		{UserID: "b", PercentBp: bpPtr(6000)},
		{UserID: "c", PercentBp: bpPtr(6000)},
	})
	assert.ErrorIs(t, err, ErrPercentagesExceed)

	_, err = s.Calculate(cents(100), "a", []Input{{UserID: "b"}})
	assert.ErrorIs(t, err, ErrMissingPercentage)

	_, err = s.Calculate(cents(100), "a", []Input{
		{UserID: "b", PercentBp: bpPtr(-1)},
	})
	assert.ErrorIs(t, err, ErrPercentageOutOfRange)
}

func TestCalculateIsDeterministic(t *testing.T) {
	s := &EqualStrategy{}
	in := equalInputs("d", "b", "a", "c")

	first, err := s.Calculate(cents(777), "d", in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Calculate(cents(777), "d", in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
