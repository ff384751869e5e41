package split

import "github.com/fkhayef/tally/internal/money"

// ExactStrategy assigns each non-payer participant a caller-specified amount.
// The amounts may sum to less than the total; the payer absorbs the difference
// as their own share.
type ExactStrategy struct{}

// Mode returns the split mode identifier
func (s *ExactStrategy) Mode() SplitMode {
	return ModeExact
}

// Validate checks if the inputs are valid for an exact split.
// The payer may appear in the list without an amount; everyone else needs a
// positive one, and the sum must not exceed the total.
func (s *ExactStrategy) Validate(totalAmount money.Money, participants []Input) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount <= 0 {
		return ErrAmountNotPositive
	}
	return checkDuplicates(participants)
}

// Calculate returns the exact amounts specified for each non-payer participant.
func (s *ExactStrategy) Calculate(totalAmount money.Money, payerID string, participants []Input) ([]Output, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	ordered := sortByUserID(participants)
	outputs := make([]Output, 0, len(ordered))
	var total int64
	for _, p := range ordered {
		if p.UserID == payerID {
			continue
		}
		if p.ExactAmount == nil {
			return nil, ErrMissingExactAmount
		}
		if *p.ExactAmount <= 0 {
			return nil, ErrExactNotPositive
		}
		total += p.ExactAmount.Cents()
		outputs = append(outputs, Output{UserID: p.UserID, Amount: *p.ExactAmount})
	}
	if len(outputs) == 0 {
		return nil, ErrNoParticipants
	}
	if total > totalAmount.Cents() {
		return nil, ErrExactExceedsTotal
	}

	return outputs, nil
}
