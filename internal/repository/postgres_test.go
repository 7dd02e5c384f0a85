package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(db), mock
}

func accountRow(id, owner int64, balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "balance", "status", "created_at"}).
		AddRow(id, owner, balance, string(models.AccountActive), time.Now())
}

func TestLockAccountsInAscendingIDOrder(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, owner_id FROM lending.accounts WHERE owner_id = ANY($1)`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow(7, 20).AddRow(3, 10))
	lockQuery := regexp.QuoteMeta(`FROM lending.accounts WHERE id = $1 FOR UPDATE`)
	mock.ExpectQuery(lockQuery).WithArgs(3).WillReturnRows(accountRow(3, 10, "50.00"))
	mock.ExpectQuery(lockQuery).WithArgs(7).WillReturnRows(accountRow(7, 20, "125.40"))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		// the caller names the owner of the higher account id first
		accounts, err := tx.LockAccounts(ctx, 20, 10)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, int64(7), accounts[20].ID)
		assert.Equal(t, "125.40", accounts[20].Balance.StringFixed(2))
		assert.Equal(t, int64(3), accounts[10].ID)
		assert.Equal(t, models.AccountActive, accounts[10].Status)
		return nil
	})
	require.NoError(t, err)
}

func TestLockAccountsUnknownOwner(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE owner_id = ANY($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow(3, 10))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.LockAccounts(ctx, 10, 99)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "user 99")
}

func TestNextPendingInstallment(t *testing.T) {
	query := regexp.QuoteMeta(`WHERE loan_id = $1 AND status = 'PENDING'`) +
		`\s+ORDER BY installment_number\s+LIMIT 1\s+FOR UPDATE`

	t.Run("lowest pending", func(t *testing.T) {
		store, mock := newMockStore(t)
		ctx := context.Background()
		due := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(query).WithArgs(5).WillReturnRows(
			sqlmock.NewRows([]string{"id", "loan_id", "installment_number", "due_date", "amount", "status", "amount_paid", "paid_at"}).
				AddRow(41, 5, 2, due, "93.33", string(models.InstallmentPending), "0.00", nil))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx Tx) error {
			inst, err := tx.NextPendingInstallment(ctx, 5)
			require.NoError(t, err)
			assert.Equal(t, 2, inst.Number)
			assert.Equal(t, "93.33", inst.Amount.StringFixed(2))
			assert.True(t, due.Equal(inst.DueDate))
			assert.Nil(t, inst.PaidAt)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("none left", func(t *testing.T) {
		store, mock := newMockStore(t)
		ctx := context.Background()

		mock.ExpectBegin()
		mock.ExpectQuery(query).WithArgs(5).WillReturnRows(
			sqlmock.NewRows([]string{"id", "loan_id", "installment_number", "due_date", "amount", "status", "amount_paid", "paid_at"}))
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx Tx) error {
			_, err := tx.NextPendingInstallment(ctx, 5)
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestExecOneRequiresAffectedRow(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE lending.accounts SET balance = $2 WHERE id = $1`)).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND status = 'PENDING'`)).
		WithArgs(41, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.UpdateBalance(ctx, 3, decimal.RequireFromString("150.00")))
		return tx.MarkInstallmentPaid(ctx, 41, decimal.RequireFromString("93.33"), time.Now())
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "installment 41")
}

func TestCreateUserDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO lending.users`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateUser(ctx, &models.User{Email: "owner@example.com", KYCStatus: models.KYCPending, Role: models.RoleUser})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "owner@example.com")
}

func TestWithinTxCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := store.WithinTx(context.Background(), func(tx Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NotErrorIs(t, err, ErrNotFound)
}
