package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
)

// TransferRequest moves money to another user's account
type TransferRequest struct {
	DestinationUserID int64
	Amount            decimal.Decimal
}

// Transfer moves value between two users' accounts and records a single
// P2P_DEBIT ledger row for the movement.
func (s *Service) Transfer(ctx context.Context, source models.Actor, req TransferRequest) (entry *models.Transaction, err error) {
	start := time.Now()
	defer func() { s.observe("transfer", start, err) }()

	if err := validateMoney("amount", req.Amount); err != nil {
		return nil, err
	}
	if req.DestinationUserID == source.UserID {
		return nil, fmt.Errorf("%w: cannot transfer to your own account", ErrInvalidArgument)
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		accounts, err := tx.LockAccounts(ctx, source.UserID, req.DestinationUserID)
		if err != nil {
			return err
		}
		src, dst := accounts[source.UserID], accounts[req.DestinationUserID]
		if err := ensureActive(src, dst); err != nil {
			return err
		}
		if src.Balance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}
		if err := ensureCapacity(dst, req.Amount); err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, src.ID, src.Balance.Sub(req.Amount)); err != nil {
			return fmt.Errorf("failed to debit source: %w", err)
		}
		if err := tx.UpdateBalance(ctx, dst.ID, dst.Balance.Add(req.Amount)); err != nil {
			return fmt.Errorf("failed to credit destination: %w", err)
		}

		entry, err = s.recorder.Record(ctx, tx, Entry{
			Type:        models.TxPeerDebit,
			Value:       req.Amount,
			Origin:      ref(src.ID),
			Destination: ref(dst.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddVolume(string(models.TxPeerDebit), volume(req.Amount))
	s.log.Infof("Transfer of %s from user %d to user %d", req.Amount.StringFixed(2), source.UserID, req.DestinationUserID)
	return entry, nil
}
