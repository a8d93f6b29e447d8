package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ryno2390/Co-Lab/internal/ledger"
)

func newMockLedger(t *testing.T) (*Ledger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetBalance(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(dec("100")))

	balance, err := l.GetBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100")), "expected 100, got %s", balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_NotFound(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := l.GetBalance(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_Debit(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(dec("100")))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs("u1", dec("100").Add(dec("-23.5")).Round(ledger.Precision)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := l.ApplyDelta(context.Background(), "u1", dec("-23.5"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_InsufficientFunds(t *testing.T) {
	l, mock := newMockLedger(t)

	// Balance 10, debit 23.5: the transaction aborts without touching the row.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(dec("10")))
	mock.ExpectRollback()

	err := l.ApplyDelta(context.Background(), "u1", dec("-23.5"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_CreatesAccountOnCredit(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("new-user").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("new-user", dec("50").Round(ledger.Precision)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := l.ApplyDelta(context.Background(), "new-user", dec("50"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_DebitMissingAccount(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := l.ApplyDelta(context.Background(), "ghost", dec("-1"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_RetriesSerializationFailure(t *testing.T) {
	l, mock := newMockLedger(t)

	// First attempt hits a serialization failure; the second succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("u1").
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(dec("5")))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs("u1", dec("5").Add(dec("-5")).Round(ledger.Precision)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := l.ApplyDelta(context.Background(), "u1", dec("-5"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharge_RejectsNonPositiveAmount(t *testing.T) {
	l, _ := newMockLedger(t)

	err := l.Charge(context.Background(), "u1", dec("0"))
	assert.Error(t, err)

	err = l.Charge(context.Background(), "u1", dec("-5"))
	assert.Error(t, err)
}

func TestReward_RejectsNonPositiveAmount(t *testing.T) {
	l, _ := newMockLedger(t)

	err := l.Reward(context.Background(), "u1", dec("0"))
	assert.Error(t, err)
}

func TestMarkRewarded(t *testing.T) {
	l, mock := newMockLedger(t)

	// Fresh key inserts a row.
	mock.ExpectExec("INSERT INTO rewarded_content").
		WithArgs("QmAbc").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := l.MarkRewarded(context.Background(), "QmAbc")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same key again: ON CONFLICT DO NOTHING, zero rows, silent no-op.
	mock.ExpectExec("INSERT INTO rewarded_content").
		WithArgs("QmAbc").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err = l.MarkRewarded(context.Background(), "QmAbc")
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRewarded(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("QmAbc").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	rewarded, err := l.IsRewarded(context.Background(), "QmAbc")
	require.NoError(t, err)
	assert.True(t, rewarded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
