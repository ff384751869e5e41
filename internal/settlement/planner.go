package settlement

import (
	"sort"

	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/money"
)

// Transfer is one suggested repayment: From pays To Amount.
type Transfer struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Money `json:"amount"`
}

type position struct {
	userID string
	amount money.Money
}

// Plan reduces a set of pairwise debts to a minimal transfer list: net each
// user, then greedily match the largest creditor with the largest debtor.
// Ties break on userId ascending, so the same balances always produce the
// same plan. The suggested transfers are advice only; nothing is written.
func Plan(entries []*balance.Entry) []Transfer {
	net := make(map[string]money.Money)
	for _, e := range entries {
		net[e.Debtor] -= e.Amount
		net[e.Creditor] += e.Amount
	}

	var creditors, debtors []position
	for userID, amount := range net {
		switch {
		case amount > 0:
			creditors = append(creditors, position{userID, amount})
		case amount < 0:
			debtors = append(debtors, position{userID, -amount})
		}
	}
	sortPositions(creditors)
	sortPositions(debtors)

	transfers := []Transfer{}
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := creditors[i].amount
		if debtors[j].amount < amount {
			amount = debtors[j].amount
		}
		transfers = append(transfers, Transfer{
			From:   debtors[j].userID,
			To:     creditors[i].userID,
			Amount: amount,
		})

		creditors[i].amount -= amount
		debtors[j].amount -= amount
		if creditors[i].amount == 0 {
			i++
		}
		if debtors[j].amount == 0 {
			j++
		}
	}
	return transfers
}

// sortPositions orders by amount descending, then userId ascending.
func sortPositions(positions []position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].amount != positions[j].amount {
			return positions[i].amount > positions[j].amount
		}
		return positions[i].userID < positions[j].userID
	})
}
