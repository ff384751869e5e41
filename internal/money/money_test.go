package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"30.00", 3000},
		{"0.01", 1},
		{"90", 9000},
		{"12.34", 1234},
		// Half-to-even at the cent boundary.
		{"0.125", 12},
		{"0.135", 14},
		{"0.115", 12},
		{"-1.005", -100},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("abc")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "30.00", Money(3000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-12.34", Money(-1234).String())
}

func TestFromDecimalRoundTrip(t *testing.T) {
	m := Money(1999)
	assert.Equal(t, m, FromDecimal(m.Decimal()))
}

func TestFromDecimalBankersRounding(t *testing.T) {
	// 2.5 cents rounds down to 2, 3.5 cents rounds up to 4.
	assert.Equal(t, Money(2), FromDecimal(decimal.RequireFromString("0.025")))
	assert.Equal(t, Money(4), FromDecimal(decimal.RequireFromString("0.035")))
}

func TestValidatePositive(t *testing.T) {
	assert.NoError(t, Money(1).ValidatePositive())
	assert.ErrorIs(t, Money(0).ValidatePositive(), ErrNotPositive)
	assert.ErrorIs(t, Money(-5).ValidatePositive(), ErrNotPositive)
}
