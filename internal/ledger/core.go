package ledger

import (
	"errors"
	"sort"

	"github.com/fkhayef/tally/internal/money"
)

// Common errors
var (
	ErrSelfDebt         = errors.New("debtor and creditor must differ")
	ErrNonPositiveDebt  = errors.New("debt amount must be positive")
	ErrInsufficientDebt = errors.New("insufficient balance to settle")
)

// Core is the pure in-memory pairwise debt algebra: debtor -> creditor ->
// amount, all positive integer cents. AddDebt folds new debt against any
// reverse debt first, so a pair and its reverse never both carry an amount
// and rows at zero are removed immediately.
type Core struct {
	balances map[string]map[string]money.Money
}

// NewCore creates an empty ledger
func NewCore() *Core {
	return &Core{balances: make(map[string]map[string]money.Money)}
}

// AddDebt records that debtor owes creditor delta more cents, simplifying
// against the reverse direction first.
func (c *Core) AddDebt(debtor, creditor string, delta money.Money) error {
	if debtor == creditor {
		return ErrSelfDebt
	}
	if delta <= 0 {
		return ErrNonPositiveDebt
	}

	reverse := c.balances[creditor][debtor]
	switch {
	case reverse >= delta:
		c.set(creditor, debtor, reverse-delta)
	default:
		c.set(creditor, debtor, 0)
		c.set(debtor, creditor, c.balances[debtor][creditor]+(delta-reverse))
	}
	return nil
}

// SettleDebt reduces an existing debt. The pair must currently hold at least
// delta; settlements never flip a debt around.
func (c *Core) SettleDebt(debtor, creditor string, delta money.Money) error {
	if delta <= 0 {
		return ErrNonPositiveDebt
	}
	current := c.balances[debtor][creditor]
	if current < delta {
		return ErrInsufficientDebt
	}
	c.set(debtor, creditor, current-delta)
	return nil
}

// Owes returns how much debtor currently owes creditor.
func (c *Core) Owes(debtor, creditor string) money.Money {
	return c.balances[debtor][creditor]
}

// UserOwes returns every debt the user carries, keyed by creditor.
func (c *Core) UserOwes(userID string) map[string]money.Money {
	out := make(map[string]money.Money, len(c.balances[userID]))
	for creditor, amount := range c.balances[userID] {
		out[creditor] = amount
	}
	return out
}

// UserOwed returns every debt owed to the user, keyed by debtor.
func (c *Core) UserOwed(userID string) map[string]money.Money {
	out := make(map[string]money.Money)
	for debtor, row := range c.balances {
		if amount, ok := row[userID]; ok {
			out[debtor] = amount
		}
	}
	return out
}

// NetBalance returns total owed to the user minus total the user owes.
func (c *Core) NetBalance(userID string) money.Money {
	var net money.Money
	for _, amount := range c.UserOwed(userID) {
		net += amount
	}
	for _, amount := range c.UserOwes(userID) {
		net -= amount
	}
	return net
}

// Pairs returns all current debts as (debtor, creditor, amount) triples,
// ordered by debtor then creditor.
func (c *Core) Pairs() []Pair {
	var pairs []Pair
	for debtor, row := range c.balances {
		for creditor, amount := range row {
			pairs = append(pairs, Pair{Debtor: debtor, Creditor: creditor, Amount: amount})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Debtor != pairs[j].Debtor {
			return pairs[i].Debtor < pairs[j].Debtor
		}
		return pairs[i].Creditor < pairs[j].Creditor
	})
	return pairs
}

// Pair is one directed debt inside a single scope.
type Pair struct {
	Debtor   string      `json:"debtor"`
	Creditor string      `json:"creditor"`
	Amount   money.Money `json:"amount"`
}

// set writes a balance, dropping zero rows and empty maps.
func (c *Core) set(debtor, creditor string, amount money.Money) {
	if amount == 0 {
		if row, ok := c.balances[debtor]; ok {
			delete(row, creditor)
			if len(row) == 0 {
				delete(c.balances, debtor)
			}
		}
		return
	}
	row, ok := c.balances[debtor]
	if !ok {
		row = make(map[string]money.Money)
		c.balances[debtor] = row
	}
	row[creditor] = amount
}
