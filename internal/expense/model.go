package expense

import (
	"time"

	"github.com/fkhayef/tally/internal/expense/split"
	"github.com/fkhayef/tally/internal/money"
)

// Expense is an immutable expense record. Splits are derived once at
// creation by the split strategy and never change; corrections happen by
// posting new expenses, not by editing old ones.
type Expense struct {
	ID           string          `json:"id"`
	Scope        string          `json:"scope"` // group id or "direct"
	PayerID      string          `json:"payerId"`
	Description  string          `json:"description,omitempty"`
	Amount       money.Money     `json:"amount"`
	SplitMode    split.SplitMode `json:"splitMode"`
	Participants []split.Input   `json:"participants"`
	Splits       []Split         `json:"splits"`
	Date         time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Split is one derived debt from an expense: UserID owes the payer Amount.
type Split struct {
	UserID string      `json:"userId"`
	Amount money.Money `json:"amount"`
}

// SplitTotal returns the sum of all derived splits. The payer's own share is
// Amount minus this total.
func (e *Expense) SplitTotal() money.Money {
	var total money.Money
	for _, s := range e.Splits {
		total += s.Amount
	}
	return total
}
