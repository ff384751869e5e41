package balance

import (
	"errors"
	"time"

	"github.com/fkhayef/tally/internal/money"
)

// ScopeDirect is the reserved scope for user-to-user balances that are not
// tied to any group. Group scopes use the group id.
const ScopeDirect = "direct"

// Common errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSamePair            = errors.New("debtor and creditor must differ")
)

// Entry is one row of the pairwise debt ledger: within scope, debtor owes
// creditor amount. Rows only exist while amount > 0; a pair and its reverse
// never both exist (no mutual debt).
type Entry struct {
	Scope         string      `json:"scope"`
	Debtor        string      `json:"debtor"`
	Creditor      string      `json:"creditor"`
	Amount        money.Money `json:"amount"`
	LastExpenseID *string     `json:"lastExpenseId,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
