package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
)

// Entry describes one value movement to append to the ledger
type Entry struct {
	Type        models.TransactionType
	Value       decimal.Decimal
	Origin      *int64
	Destination *int64
	Reference   string
}

// Recorder appends immutable ledger rows. It never updates or removes one.
type Recorder struct {
	now func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// Record inserts one ledger row inside tx with a server-assigned timestamp
func (r *Recorder) Record(ctx context.Context, tx repository.Tx, e Entry) (*models.Transaction, error) {
	if !e.Value.IsPositive() {
		return nil, fmt.Errorf("ledger value must be positive, got %s", e.Value)
	}
	if e.Origin == nil && e.Destination == nil {
		return nil, fmt.Errorf("ledger entry %s needs an origin or a destination", e.Type)
	}
	t := &models.Transaction{
		Timestamp:            r.now().UTC(),
		Type:                 e.Type,
		Value:                e.Value,
		OriginAccountID:      e.Origin,
		DestinationAccountID: e.Destination,
		Reference:            e.Reference,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", e.Type, err)
	}
	return t, nil
}

func loanRef(id int64) string        { return fmt.Sprintf("loan:%d", id) }
func installmentRef(id int64) string { return fmt.Sprintf("installment:%d", id) }

func ref(id int64) *int64 { return &id }
