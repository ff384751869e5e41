package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/fkhayef/tally/internal/money"
)

// Settlement is one recorded repayment: within scope, debtor paid creditor
// amount. Settlements are part of the replay log so recompute reproduces
// exactly what the incremental writes built.
type Settlement struct {
	ID         string      `json:"id"`
	Scope      string      `json:"scope"`
	DebtorID   string      `json:"debtorId"`
	CreditorID string      `json:"creditorId"`
	Amount     money.Money `json:"amount"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// SettlementLog stores settlements, append-only.
type SettlementLog interface {
	Create(ctx context.Context, s *Settlement) error
	ListByScopeAsc(ctx context.Context, scope string) ([]*Settlement, error)
}

// MemorySettlementLog is the in-memory SettlementLog used by unit tests.
type MemorySettlementLog struct {
	mu          sync.RWMutex
	settlements []*Settlement
}

// NewMemorySettlementLog creates an empty in-memory settlement log
func NewMemorySettlementLog() *MemorySettlementLog {
	return &MemorySettlementLog{}
}

// Create appends a settlement
func (m *MemorySettlementLog) Create(_ context.Context, s *Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.settlements = append(m.settlements, &clone)
	return nil
}

// ListByScopeAsc returns the scope's settlements in createdAt order
func (m *MemorySettlementLog) ListByScopeAsc(_ context.Context, scope string) ([]*Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Settlement
	for _, s := range m.settlements {
		if s.Scope == scope {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}
