// Package pagination implements opaque cursor pagination for expense and
// activity lists. A cursor encodes the sort value and id of the boundary row.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Limits applied to every paginated list.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks a position in a sorted listing.
type Cursor struct {
	SortValue string `json:"s"`
	ID        string `json:"id"`
}

// Encode serializes the cursor to an opaque URL-safe string
func Encode(c Cursor) string {
	body, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(body)
}

// Decode parses an opaque cursor string
func Decode(s string) (Cursor, error) {
	body, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(body, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return c, nil
}

// ClampLimit normalizes a requested page size into [1, MaxLimit], applying
// the default when unset.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
