package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fundedLoan originates a 1000.00 / 12% / 12 month loan and leaves the
// borrower with borrowerBalance and the lender with nothing
func fundedLoan(t *testing.T, s *Service, borrowerBalance string) (lender, borrower models.Actor, loan *models.Loan) {
	t.Helper()
	ctx := context.Background()
	lender = newUser(t, s, "1000.00")
	borrower = newUser(t, s, "0")
	offer := newOffer(t, s, lender, "1000.00", "0.12", 12)

	loan, err := s.AcceptOffer(ctx, borrower, AcceptOfferRequest{OfferID: offer.ID, Amount: dec("1000.00")})
	require.NoError(t, err)

	current, want := dec("1000.00"), dec(borrowerBalance)
	switch {
	case want.LessThan(current):
		_, err = s.Withdraw(ctx, admin, borrower.UserID, current.Sub(want))
	case want.GreaterThan(current):
		_, err = s.Deposit(ctx, admin, borrower.UserID, want.Sub(current))
	}
	require.NoError(t, err)
	return lender, borrower, loan
}

func TestPayNextInstallment(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "200.00")

	paid, err := s.PayNextInstallment(ctx, borrower, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, paid.Number)
	assert.Equal(t, models.InstallmentPaid, paid.Status)
	assert.Equal(t, "93.33", paid.AmountPaid.StringFixed(2))
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "106.67", balanceOf(t, s, borrower))
	assert.Equal(t, "93.33", balanceOf(t, s, lender))

	rows := ledgerOf(t, s, lender, models.TxInstallmentPayment)
	require.Len(t, rows, 1)
	assert.Equal(t, installmentRef(paid.ID), rows[0].Reference)

	stored, err := s.GetLoan(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, stored.Status)
	assert.Equal(t, models.InstallmentPaid, stored.Installments[0].Status)
	assert.Equal(t, models.InstallmentPending, stored.Installments[1].Status)

	next, err := s.PayNextInstallment(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number, "each call settles the next installment")
}

func TestPayNextInstallmentInsufficientFunds(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "10.00")

	_, err := s.PayNextInstallment(ctx, borrower, loan.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NotContains(t, err.Error(), "10.00")

	assert.Equal(t, "10.00", balanceOf(t, s, borrower))
	assert.Equal(t, "0.00", balanceOf(t, s, lender))
	stored, err := s.GetLoan(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentPending, stored.Installments[0].Status)
	assert.Empty(t, ledgerOf(t, s, borrower, models.TxInstallmentPayment))
}

func TestPayOffLoan(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "1200.00")

	for i := 1; i <= 12; i++ {
		paid, err := s.PayNextInstallment(ctx, borrower, loan.ID)
		require.NoError(t, err)
		require.Equal(t, i, paid.Number)
	}

	stored, err := s.GetLoan(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, stored.Status)
	assert.Equal(t, "80.04", balanceOf(t, s, borrower))
	assert.Equal(t, "1119.96", balanceOf(t, s, lender))

	_, err = s.PayNextInstallment(ctx, borrower, loan.ID)
	assert.ErrorIs(t, err, ErrNothingToPay)
	assert.Equal(t, "80.04", balanceOf(t, s, borrower))
}

func TestPayNextInstallmentRejections(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, _, loan := fundedLoan(t, s, "500.00")

	_, err := s.PayNextInstallment(ctx, lender, loan.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.PayNextInstallment(ctx, lender, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentPaymentsSettleEachInstallmentOnce(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "1200.00")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		numbers  = map[int]bool{}
		drained  int
		payments int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paid, err := s.PayNextInstallment(ctx, borrower, loan.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				payments++
				numbers[paid.Number] = true
			case errors.Is(err, ErrNothingToPay):
				drained++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 12, payments)
	assert.Len(t, numbers, 12, "no installment is paid twice")
	for n := 1; n <= 12; n++ {
		assert.True(t, numbers[n], "installment %d", n)
	}
	assert.Equal(t, 8, drained)

	stored, err := s.GetLoan(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, stored.Status)
	assert.Equal(t, "80.04", balanceOf(t, s, borrower))
	assert.Equal(t, "1119.96", balanceOf(t, s, lender))
	assert.Len(t, ledgerOf(t, s, lender, models.TxInstallmentPayment), 12)
}

func TestPayNextInstallmentAtomicOnLedgerFailure(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(t, store)
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "200.00")

	broken := newTestService(t, failingStore{store})
	_, err := broken.PayNextInstallment(ctx, borrower, loan.ID)
	require.Error(t, err)
	assert.Equal(t, "internal", Outcome(err))

	assert.Equal(t, "200.00", balanceOf(t, s, borrower))
	assert.Equal(t, "0.00", balanceOf(t, s, lender))
	stored, err := s.GetLoan(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, stored.Status)
	assert.Equal(t, models.InstallmentPending, stored.Installments[0].Status)
	assert.Empty(t, ledgerOf(t, s, borrower, models.TxInstallmentPayment))

	paid, err := s.PayNextInstallment(ctx, borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, paid.Number)
}

func TestPayNextInstallmentRespectsBalanceLimit(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	ctx := context.Background()
	lender, borrower, loan := fundedLoan(t, s, "200.00")
	_, err := s.Deposit(ctx, admin, lender.UserID, MaxMoney)
	require.NoError(t, err)

	_, err = s.PayNextInstallment(ctx, borrower, loan.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "200.00", balanceOf(t, s, borrower))
	assert.Equal(t, MaxMoney.StringFixed(2), balanceOf(t, s, lender))
}
