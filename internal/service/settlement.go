package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
)

// PayNextInstallment settles the lowest-numbered pending installment of a
// loan from the borrower's account to the lender's. Each call pays at most one
// installment; retrying after success pays the next one.
func (s *Service) PayNextInstallment(ctx context.Context, payer models.Actor, loanID int64) (paid *models.Installment, err error) {
	start := time.Now()
	defer func() { s.observe("pay_installment", start, err) }()

	loan, err := s.store.FindLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.BorrowerID != payer.UserID {
		return nil, fmt.Errorf("%w: only the borrower can pay loan %d", ErrForbidden, loan.ID)
	}

	var loanPaid bool
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		accounts, err := tx.LockAccounts(ctx, loan.BorrowerID, loan.LenderID)
		if err != nil {
			return err
		}
		next, err := tx.NextPendingInstallment(ctx, loan.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: loan %d", ErrNothingToPay, loan.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to load next installment: %w", err)
		}

		borrowerAcc, lenderAcc := accounts[loan.BorrowerID], accounts[loan.LenderID]
		if err := ensureActive(borrowerAcc, lenderAcc); err != nil {
			return err
		}
		if borrowerAcc.Balance.LessThan(next.Amount) {
			return fmt.Errorf("%w: installment %d requires %s", ErrInsufficientFunds, next.Number, next.Amount.StringFixed(2))
		}
		if err := ensureCapacity(lenderAcc, next.Amount); err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, borrowerAcc.ID, borrowerAcc.Balance.Sub(next.Amount)); err != nil {
			return fmt.Errorf("failed to debit borrower: %w", err)
		}
		if err := tx.UpdateBalance(ctx, lenderAcc.ID, lenderAcc.Balance.Add(next.Amount)); err != nil {
			return fmt.Errorf("failed to credit lender: %w", err)
		}

		now := s.now().UTC()
		if err := tx.MarkInstallmentPaid(ctx, next.ID, next.Amount, now); err != nil {
			return fmt.Errorf("failed to mark installment paid: %w", err)
		}
		if _, err := s.recorder.Record(ctx, tx, Entry{
			Type:        models.TxInstallmentPayment,
			Value:       next.Amount,
			Origin:      ref(borrowerAcc.ID),
			Destination: ref(lenderAcc.ID),
			Reference:   installmentRef(next.ID),
		}); err != nil {
			return err
		}

		remaining, err := tx.CountPendingInstallments(ctx, loan.ID)
		if err != nil {
			return fmt.Errorf("failed to count pending installments: %w", err)
		}
		if remaining == 0 {
			if err := tx.SetLoanStatus(ctx, loan.ID, models.LoanPaid); err != nil {
				return fmt.Errorf("failed to close loan: %w", err)
			}
			loanPaid = true
		}

		settled := *next
		settled.Status = models.InstallmentPaid
		settled.AmountPaid = next.Amount
		settled.PaidAt = &now
		paid = &settled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddVolume(string(models.TxInstallmentPayment), volume(paid.Amount))
	s.log.Infof("Installment %d of loan %d paid: %s", paid.Number, loan.ID, paid.Amount.StringFixed(2))
	if loanPaid {
		s.log.Infof("Loan %d fully paid", loan.ID)
	}
	return paid, nil
}
