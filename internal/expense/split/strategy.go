package split

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/tally/internal/money"
)

// SplitMode defines the type of split strategy
type SplitMode string

const (
	ModeEqual      SplitMode = "equal"
	ModeExact      SplitMode = "exact"
	ModePercentage SplitMode = "percentage"
)

// BasisPointTotal is the whole expense expressed in basis points.
const BasisPointTotal = 10000

// Input represents a participant in a split with optional values
type Input struct {
	UserID      string       `json:"userId"`
	ExactAmount *money.Money `json:"exactAmount,omitempty"` // For exact split
	PercentBp   *int64       `json:"percentBp,omitempty"`   // For percentage split, basis points
}

// Output represents the calculated share for a single debtor.
// The payer never appears in outputs and zero shares are dropped.
type Output struct {
	UserID string      `json:"userId"`
	Amount money.Money `json:"amount"`
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate computes the per-debtor owed amounts. The sum of outputs
	// never exceeds totalAmount; the difference is the payer's own share.
	Calculate(totalAmount money.Money, payerID string, participants []Input) ([]Output, error)

	// Mode returns the mode identifier for this strategy
	Mode() SplitMode

	// Validate checks if the inputs are valid for this strategy
	Validate(totalAmount money.Money, participants []Input) error
}

// Factory creates split strategies based on the requested mode
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns the appropriate strategy implementation based on the mode
func (f *Factory) Create(mode SplitMode) (Strategy, error) {
	switch mode {
	case ModeEqual:
		return &EqualStrategy{}, nil
	case ModeExact:
		return &ExactStrategy{}, nil
	case ModePercentage:
		return &PercentageStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split mode %q", ErrInvalidSplit, mode)
	}
}

// CreateFromString creates a strategy from a string mode (useful for API requests)
func (f *Factory) CreateFromString(mode string) (Strategy, error) {
	return f.Create(SplitMode(mode))
}

// ErrInvalidSplit is the base error for all split validation failures.
// Handlers map anything wrapping it to the invalid_split slug.
var ErrInvalidSplit = errors.New("invalid split")

var (
	ErrNoParticipants       = fmt.Errorf("%w: at least one participant is required", ErrInvalidSplit)
	ErrAmountNotPositive    = fmt.Errorf("%w: amount must be positive", ErrInvalidSplit)
	ErrExactExceedsTotal    = fmt.Errorf("%w: exact amounts exceed the total", ErrInvalidSplit)
	ErrExactNotPositive     = fmt.Errorf("%w: exact amounts must be positive", ErrInvalidSplit)
	ErrMissingExactAmount   = fmt.Errorf("%w: exact amount required for all participants", ErrInvalidSplit)
	ErrMissingPercentage    = fmt.Errorf("%w: percentage required for all participants", ErrInvalidSplit)
	ErrPercentageOutOfRange = fmt.Errorf("%w: percentage must be between 0 and 10000 basis points", ErrInvalidSplit)
	ErrPercentagesExceed    = fmt.Errorf("%w: percentages exceed 10000 basis points", ErrInvalidSplit)
	ErrDuplicateParticipant = fmt.Errorf("%w: duplicate participant", ErrInvalidSplit)
)

// sortByUserID orders participants by userId ascending. Remainder cents are
// always handed out in this order, which makes every split deterministic.
func sortByUserID(participants []Input) []Input {
	sorted := make([]Input, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}

// checkDuplicates rejects participant lists naming the same user twice.
func checkDuplicates(participants []Input) error {
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if _, ok := seen[p.UserID]; ok {
			return ErrDuplicateParticipant
		}
		seen[p.UserID] = struct{}{}
	}
	return nil
}
