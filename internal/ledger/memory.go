package ledger

import (
	"context"
	"sync"

	"influnest/internal/models"
)

// MemoryLedger keeps balances in process memory. It backs the memory driver
// and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[models.Identity]uint64
	journal  []Transfer
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[models.Identity]uint64),
	}
}

// Credit adds value to an account out of band (deposits, seeding)
func (l *MemoryLedger) Credit(account models.Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.balances[account]
	if current+amount < current {
		return ErrBalanceOverflow
	}
	l.balances[account] = current + amount
	return nil
}

// Transfer implements ValueTransfer
func (l *MemoryLedger) Transfer(ctx context.Context, t Transfer) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.balances[t.From]
	if from < t.Amount {
		return ErrInsufficientFunds
	}
	to := l.balances[t.To]
	if to+t.Amount < to {
		return ErrBalanceOverflow
	}

	l.balances[t.From] = from - t.Amount
	l.balances[t.To] = to + t.Amount
	l.journal = append(l.journal, t)
	return nil
}

// Balance implements BalanceReader
func (l *MemoryLedger) Balance(_ context.Context, account models.Identity) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Journal returns a copy of all successful transfers in order
func (l *MemoryLedger) Journal() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.journal))
	copy(out, l.journal)
	return out
}
