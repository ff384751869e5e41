package split

import "github.com/fkhayef/tally/internal/money"

// PercentageStrategy divides the expense by integer basis points (1% = 100bp)
// so no floating point ever touches the amounts. Percentages may sum to less
// than 10000bp; the payer absorbs the residual as their own share.
type PercentageStrategy struct{}

// Mode returns the split mode identifier
func (s *PercentageStrategy) Mode() SplitMode {
	return ModePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(totalAmount money.Money, participants []Input) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount <= 0 {
		return ErrAmountNotPositive
	}
	if err := checkDuplicates(participants); err != nil {
		return err
	}

	var totalBp int64
	for _, p := range participants {
		if p.PercentBp == nil {
			return ErrMissingPercentage
		}
		if *p.PercentBp < 0 || *p.PercentBp > BasisPointTotal {
			return ErrPercentageOutOfRange
		}
		totalBp += *p.PercentBp
	}
	if totalBp > BasisPointTotal {
		return ErrPercentagesExceed
	}

	return nil
}

// Calculate gives every participant floor(amount*bp/10000) cents, then hands
// the cents lost to flooring out one each in userId ascending order, exactly
// like the equal strategy. With percentages summing to 10000bp the shares sum
// to the full amount.
func (s *PercentageStrategy) Calculate(totalAmount money.Money, payerID string, participants []Input) ([]Output, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	ordered := sortByUserID(participants)

	var totalBp int64
	for _, p := range ordered {
		totalBp += *p.PercentBp
	}

	// Allocated total is the whole covered portion of the amount; the floor
	// per participant loses up to len-1 cents which we redistribute.
	allocated := totalAmount.Cents() * totalBp / BasisPointTotal

	shares := make([]int64, len(ordered))
	var floored int64
	for i, p := range ordered {
		shares[i] = totalAmount.Cents() * (*p.PercentBp) / BasisPointTotal
		floored += shares[i]
	}

	remainder := allocated - floored
	for i := range ordered {
		if remainder == 0 {
			break
		}
		shares[i]++
		remainder--
	}

	outputs := make([]Output, 0, len(ordered))
	for i, p := range ordered {
		if p.UserID == payerID || shares[i] == 0 {
			continue
		}
		outputs = append(outputs, Output{UserID: p.UserID, Amount: money.Money(shares[i])})
	}

	return outputs, nil
}
