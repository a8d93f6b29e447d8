// Package ledger defines the account balance and reward tracking contract.
// All balance mutations in the system go through a Ledger; nothing else may
// write balances.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Precision is the fixed number of decimal places carried by balances and
// amounts.
const Precision = 8

var (
	// ErrNotFound is returned when the requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a debit would drive the balance
	// negative. It is a first-class outcome, not a transport failure.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Account is a per-requester balance row. Balance never goes negative;
// debits that would cross zero are rejected, not clamped.
type Account struct {
	RequesterID string
	Balance     decimal.Decimal
	UpdatedAt   time.Time
}

// Ledger is the contract for atomic balance mutation and exactly-once
// reward accounting.
type Ledger interface {
	// GetBalance returns the current balance, or ErrNotFound.
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// ApplyDelta atomically adds delta (negative for debits) to the account
	// balance. A positive delta against a missing account creates it; a
	// non-positive delta against a missing account, or any delta that would
	// leave the balance negative, returns ErrInsufficientFunds and leaves
	// state unchanged.
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) error

	// Charge debits amount (> 0) from the account.
	Charge(ctx context.Context, accountID string, amount decimal.Decimal) error

	// Reward credits amount (> 0) to the account.
	Reward(ctx context.Context, accountID string, amount decimal.Decimal) error

	// IsRewarded reports whether a reward was already paid for contentKey.
	IsRewarded(ctx context.Context, contentKey string) (bool, error)

	// MarkRewarded records contentKey as rewarded. It returns true when this
	// call created the record and false when the key was already marked;
	// re-marking is never an error. Callers must treat a false return as
	// "reward already paid" so concurrent uploads of the same content pay
	// at most once.
	MarkRewarded(ctx context.Context, contentKey string) (bool, error)
}
