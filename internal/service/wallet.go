package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
)

// Balance returns the actor's account
func (s *Service) Balance(ctx context.Context, actor models.Actor) (*models.Account, error) {
	return s.store.FindAccountByOwner(ctx, actor.UserID)
}

// History lists ledger rows touching the actor's account, newest first
func (s *Service) History(ctx context.Context, actor models.Actor) ([]models.Transaction, error) {
	account, err := s.store.FindAccountByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByAccount(ctx, account.ID)
}

// Deposit credits a user's account with external funds
func (s *Service) Deposit(ctx context.Context, admin models.Actor, userID int64, amount decimal.Decimal) (*models.Account, error) {
	return s.adjust(ctx, "deposit", admin, userID, amount, models.TxDeposit)
}

// Withdraw debits a user's account to an external destination
func (s *Service) Withdraw(ctx context.Context, admin models.Actor, userID int64, amount decimal.Decimal) (*models.Account, error) {
	return s.adjust(ctx, "withdraw", admin, userID, amount, models.TxWithdrawal)
}

func (s *Service) adjust(ctx context.Context, operation string, admin models.Actor, userID int64, amount decimal.Decimal, typ models.TransactionType) (account *models.Account, err error) {
	start := time.Now()
	defer func() { s.observe(operation, start, err) }()

	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if err := validateMoney("amount", amount); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		accounts, err := tx.LockAccounts(ctx, userID)
		if err != nil {
			return err
		}
		acc := accounts[userID]
		if err := ensureActive(acc); err != nil {
			return err
		}

		entry := Entry{Type: typ, Value: amount}
		balance := acc.Balance
		if typ == models.TxDeposit {
			if err := ensureCapacity(acc, amount); err != nil {
				return err
			}
			balance = balance.Add(amount)
			entry.Destination = ref(acc.ID)
		} else {
			if balance.LessThan(amount) {
				return ErrInsufficientFunds
			}
			balance = balance.Sub(amount)
			entry.Origin = ref(acc.ID)
		}

		if err := tx.UpdateBalance(ctx, acc.ID, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		if _, err := s.recorder.Record(ctx, tx, entry); err != nil {
			return err
		}
		updated := *acc
		updated.Balance = balance
		account = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddVolume(string(typ), volume(amount))
	s.log.Infof("%s of %s on account %d", typ, amount.StringFixed(2), account.ID)
	s.notify(ctx, userID, account, amount, typ)
	return account, nil
}

// notify tells the owner about a committed adjustment. Delivery failures are
// logged; the money has already moved.
func (s *Service) notify(ctx context.Context, userID int64, account *models.Account, amount decimal.Decimal, typ models.TransactionType) {
	if s.notifier == nil {
		return
	}
	owner, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Warnf("Failed to load owner of account %d for notification: %v", account.ID, err)
		return
	}
	if err := s.notifier.SendTransactionNotification(owner, account, amount, typ); err != nil {
		s.log.WithField("account_id", account.ID).Warnf("%s notification not delivered: %v", typ, err)
	}
}
