// Package postgres implements the ledger on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Ryno2390/Co-Lab/internal/ledger"
)

// maxTxAttempts bounds retries on serialization conflicts before the
// failure surfaces to the caller.
const maxTxAttempts = 3

// DB is the subset of pgxpool.Pool the ledger needs. pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Ledger implements ledger.Ledger backed by the accounts and
// rewarded_content tables.
type Ledger struct {
	db DB
}

// New creates a new PostgreSQL-backed ledger.
func New(db DB) *Ledger {
	return &Ledger{db: db}
}

// GetBalance returns the current balance for an account.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE requester_id = $1`,
		accountID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ledger.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta atomically adjusts an account balance. The read-check-write is
// wrapped in a transaction holding a row-level exclusive lock, so concurrent
// callers targeting the same account serialize while other accounts proceed
// independently. Serialization conflicts are retried up to maxTxAttempts.
func (l *Ledger) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = l.applyDeltaTx(ctx, accountID, delta)
		if err == nil || errors.Is(err, ledger.ErrInsufficientFunds) {
			return err
		}
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("ledger transaction retries exhausted: %w", err)
}

func (l *Ledger) applyDeltaTx(ctx context.Context, accountID string, delta decimal.Decimal) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE requester_id = $1 FOR UPDATE`,
		accountID,
	).Scan(&balance)

	if errors.Is(err, pgx.ErrNoRows) {
		// Only a positive initial delta may create an account.
		if delta.Sign() <= 0 {
			return ledger.ErrInsufficientFunds
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO accounts (requester_id, balance, updated_at) VALUES ($1, $2, now())`,
			accountID, delta.Round(ledger.Precision),
		)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	newBalance := balance.Add(delta).Round(ledger.Precision)
	if newBalance.IsNegative() {
		return ledger.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = now() WHERE requester_id = $1`,
		accountID, newBalance,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Charge debits amount from the account.
func (l *Ledger) Charge(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("charge amount must be positive, got %s", amount)
	}
	return l.ApplyDelta(ctx, accountID, amount.Neg())
}

// Reward credits amount to the account.
func (l *Ledger) Reward(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("reward amount must be positive, got %s", amount)
	}
	return l.ApplyDelta(ctx, accountID, amount)
}

// IsRewarded reports whether a reward was already paid for contentKey.
func (l *Ledger) IsRewarded(ctx context.Context, contentKey string) (bool, error) {
	var rewarded bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rewarded_content WHERE content_key = $1)`,
		contentKey,
	).Scan(&rewarded)
	if err != nil {
		return false, fmt.Errorf("failed to check rewarded status: %w", err)
	}
	return rewarded, nil
}

// MarkRewarded records contentKey as rewarded via insert-if-absent. Under
// concurrent writers racing on the same key exactly one call returns true.
func (l *Ledger) MarkRewarded(ctx context.Context, contentKey string) (bool, error) {
	tag, err := l.db.Exec(ctx,
		`INSERT INTO rewarded_content (content_key, rewarded_at) VALUES ($1, now())
		 ON CONFLICT (content_key) DO NOTHING`,
		contentKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark rewarded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// isRetryable reports whether err is a transient serialization or deadlock
// failure (SQLSTATE 40001, 40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// Ensure Ledger implements the interface.
var _ ledger.Ledger = (*Ledger)(nil)
