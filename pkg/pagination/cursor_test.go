package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := Cursor{SortValue: "2026-08-24T12:00:00.000000Z", ID: "3f1a"}

	decoded, err := Decode(Encode(c))
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("!!!not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// Valid base64 but not a cursor document.
	_, err = Decode("bm90LWpzb24")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-5))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 42, ClampLimit(42))
	assert.Equal(t, MaxLimit, ClampLimit(100))
	assert.Equal(t, MaxLimit, ClampLimit(5000))
}
