package ledger

import (
	"time"

	"github.com/fkhayef/tally/internal/expense/split"
	"github.com/fkhayef/tally/internal/money"
)

// CreateExpenseRequest is the body of POST /expenses. The payer is the
// authenticated caller. Amounts are integer cents; percentages are basis
// points.
type CreateExpenseRequest struct {
	Scope        string        `json:"scope"`
	Description  string        `json:"description"`
	Amount       money.Money   `json:"amount"`
	SplitMode    string        `json:"splitMode"`
	Participants []split.Input `json:"participants"`
	Date         *time.Time    `json:"date,omitempty"`
}

// RecomputeResponse is the body of a successful recompute.
type RecomputeResponse struct {
	Scope      string `json:"scope"`
	Recomputed bool   `json:"recomputed"`
}
