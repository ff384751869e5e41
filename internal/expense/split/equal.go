package split

import "github.com/fkhayef/tally/internal/money"

// EqualStrategy divides the expense evenly among all participants,
// payer included in the denominator.
type EqualStrategy struct{}

// Mode returns the split mode identifier
func (s *EqualStrategy) Mode() SplitMode {
	return ModeEqual
}

// Validate checks if the inputs are valid for an equal split
func (s *EqualStrategy) Validate(totalAmount money.Money, participants []Input) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount <= 0 {
		return ErrAmountNotPositive
	}
	return checkDuplicates(participants)
}

// Calculate assigns floor(amount/n) cents to every participant and hands the
// remaining amount%n cents out one each, in userId ascending order. A cent
// landing on the payer stays with the payer; the payer never owes themselves.
func (s *EqualStrategy) Calculate(totalAmount money.Money, payerID string, participants []Input) ([]Output, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	ordered := sortByUserID(participants)
	n := int64(len(ordered))
	base := totalAmount.Cents() / n
	remainder := totalAmount.Cents() % n

	outputs := make([]Output, 0, len(ordered))
	for i, p := range ordered {
		share := base
		if int64(i) < remainder {
			share++
		}
		if p.UserID == payerID || share == 0 {
			continue
		}
		outputs = append(outputs, Output{UserID: p.UserID, Amount: money.Money(share)})
	}

	return outputs, nil
}
