package ledger

import (
	"context"
	"errors"
	"fmt"

	"influnest/internal/models"
	"influnest/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checkViolation = "23514"

// PostgresLedger keeps balances and a transfer journal in PostgreSQL. Each
// transfer runs in a single database transaction, or in a savepoint of the
// caller's transaction when the context carries one (see storage.WithTx).
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a ledger on an existing pool. The tables are
// created by storage.PostgresRepository.Migrate.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Credit adds value to an account out of band (deposits, seeding)
func (l *PostgresLedger) Credit(ctx context.Context, account models.Identity, amount uint64) error {
	query := `
		INSERT INTO ledger_balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = ledger_balances.amount + EXCLUDED.amount
	`
	if _, err := l.pool.Exec(ctx, query, string(account), storage.NumericFromUint64(amount)); err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

// Transfer implements ValueTransfer
func (l *PostgresLedger) Transfer(ctx context.Context, t Transfer) error {
	if err := t.Validate(); err != nil {
		return err
	}

	var tx pgx.Tx
	var err error
	if outer, ok := storage.TxFromContext(ctx); ok {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = l.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	amount := storage.NumericFromUint64(t.Amount)

	tag, err := tx.Exec(ctx, `
		UPDATE ledger_balances SET amount = amount - $2
		WHERE account = $1 AND amount >= $2
	`, string(t.From), amount)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = ledger_balances.amount + EXCLUDED.amount
	`, string(t.To), amount)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return ErrBalanceOverflow
	}
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_transfers (from_account, to_account, amount, authority, reference)
		VALUES ($1, $2, $3, $4, $5)
	`, string(t.From), string(t.To), amount, string(t.Authority), t.Reference)
	if err != nil {
		return fmt.Errorf("failed to journal transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	return nil
}

// Balance implements BalanceReader
func (l *PostgresLedger) Balance(ctx context.Context, account models.Identity) (uint64, error) {
	var amount storage.Numeric
	err := storage.QuerierFrom(ctx, l.pool).QueryRow(ctx, `SELECT amount FROM ledger_balances WHERE account = $1`, string(account)).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount.Uint64()
}
