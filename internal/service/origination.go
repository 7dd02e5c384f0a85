package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AcceptOfferRequest is a borrower's request to draw on a credit offer
type AcceptOfferRequest struct {
	OfferID  int64
	Amount   decimal.Decimal
	SearchID *int64
}

// AcceptOffer converts an active offer into a loan. Offer commitment, loan and
// schedule creation, the balance move and both ledger rows commit together or
// not at all.
func (s *Service) AcceptOffer(ctx context.Context, borrower models.Actor, req AcceptOfferRequest) (loan *models.Loan, err error) {
	start := time.Now()
	defer func() { s.observe("accept_offer", start, err) }()

	if err := requireVerified(borrower, "accept offers"); err != nil {
		return nil, err
	}
	if err := validateMoney("amount", req.Amount); err != nil {
		return nil, err
	}

	offer, err := s.store.FindOffer(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if err := checkAcceptable(offer, borrower.UserID, req.Amount); err != nil {
		return nil, err
	}
	if req.SearchID != nil {
		search, err := s.store.FindSearch(ctx, *req.SearchID)
		if err != nil {
			return nil, err
		}
		if search.BorrowerID != borrower.UserID {
			return nil, fmt.Errorf("%w: credit search %d belongs to another user", ErrForbidden, search.ID)
		}
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		// Status may have changed while we waited for the row.
		locked, err := tx.LockOffer(ctx, req.OfferID)
		if err != nil {
			return err
		}
		if err := checkAcceptable(locked, borrower.UserID, req.Amount); err != nil {
			return err
		}

		accounts, err := tx.LockAccounts(ctx, locked.LenderID, borrower.UserID)
		if err != nil {
			return err
		}
		lenderAcc, borrowerAcc := accounts[locked.LenderID], accounts[borrower.UserID]
		if err := ensureActive(lenderAcc, borrowerAcc); err != nil {
			return err
		}
		if lenderAcc.Balance.LessThan(req.Amount) {
			return fmt.Errorf("%w: lender cannot fund the requested amount", ErrInsufficientFunds)
		}
		if err := ensureCapacity(borrowerAcc, req.Amount); err != nil {
			return err
		}

		if err := tx.SetOfferStatus(ctx, locked.ID, models.OfferCommitted); err != nil {
			return fmt.Errorf("failed to commit offer: %w", err)
		}

		now := s.now().UTC()
		loan = &models.Loan{
			BorrowerID:   borrower.UserID,
			LenderID:     locked.LenderID,
			OfferID:      locked.ID,
			SearchID:     req.SearchID,
			Amount:       req.Amount,
			InterestRate: locked.InterestRate,
			TermMonths:   locked.TermMonths,
			ContractDate: dateOf(now),
			Status:       models.LoanActive,
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: offer %d already has a loan", ErrConflict, locked.ID)
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		schedule := BuildSchedule(loan.ID, loan.Amount, loan.InterestRate, loan.TermMonths, now)
		if err := tx.CreateInstallments(ctx, schedule); err != nil {
			return fmt.Errorf("failed to create installments: %w", err)
		}
		loan.Installments = schedule

		if err := tx.UpdateBalance(ctx, lenderAcc.ID, lenderAcc.Balance.Sub(req.Amount)); err != nil {
			return fmt.Errorf("failed to debit lender: %w", err)
		}
		if err := tx.UpdateBalance(ctx, borrowerAcc.ID, borrowerAcc.Balance.Add(req.Amount)); err != nil {
			return fmt.Errorf("failed to credit borrower: %w", err)
		}

		for _, typ := range []models.TransactionType{models.TxLoanDisbursement, models.TxPeerCredit} {
			if _, err := s.recorder.Record(ctx, tx, Entry{
				Type:        typ,
				Value:       req.Amount,
				Origin:      ref(lenderAcc.ID),
				Destination: ref(borrowerAcc.ID),
				Reference:   loanRef(loan.ID),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddVolume(string(models.TxLoanDisbursement), volume(loan.Amount))
	s.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"offer_id":    loan.OfferID,
		"borrower_id": loan.BorrowerID,
		"lender_id":   loan.LenderID,
		"amount":      loan.Amount.StringFixed(2),
	}).Info("Loan created")
	return loan, nil
}

func checkAcceptable(offer *models.CreditOffer, borrowerID int64, amount decimal.Decimal) error {
	switch {
	case offer.Status != models.OfferActive:
		return fmt.Errorf("%w: offer %d is %s", ErrConflict, offer.ID, offer.Status)
	case offer.LenderID == borrowerID:
		return fmt.Errorf("%w: cannot accept your own offer", ErrConflict)
	case amount.GreaterThan(offer.MaxAmount):
		return fmt.Errorf("%w: amount exceeds offer maximum of %s", ErrConflict, offer.MaxAmount.StringFixed(2))
	}
	return nil
}
