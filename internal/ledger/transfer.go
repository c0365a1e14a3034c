package ledger

import (
	"context"
	"errors"

	"influnest/internal/models"
)

var (
	ErrInvalidAmount     = errors.New("transfer amount must be positive")
	ErrSameAccount       = errors.New("transfer source and destination are the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorizedDebit = errors.New("authority is not allowed to debit the source account")
	ErrBalanceOverflow   = errors.New("destination balance overflow")
)

// Transfer moves Amount from one custodial balance to another. Authority is
// the identity that authorized the debit and must own the source balance.
type Transfer struct {
	From      models.Identity
	To        models.Identity
	Amount    uint64
	Authority models.Identity
	Reference string // free-form correlation, usually the campaign key
}

// Validate checks the transfer shape before any balance is touched
func (t Transfer) Validate() error {
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.From == t.To {
		return ErrSameAccount
	}
	if t.Authority.IsUnset() || t.Authority != t.From {
		return ErrUnauthorizedDebit
	}
	return nil
}

// ValueTransfer is the capability the engine uses to move value. Implementations
// are atomic with respect to the caller and fail closed: on error no balance
// has changed.
type ValueTransfer interface {
	Transfer(ctx context.Context, t Transfer) error
}

// BalanceReader exposes balances for queries and tests
type BalanceReader interface {
	Balance(ctx context.Context, account models.Identity) (uint64, error)
}
