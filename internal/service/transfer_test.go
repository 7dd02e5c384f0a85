package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	a := newUser(t, s, "100.00")
	b := newUser(t, s, "0")

	entry, err := s.Transfer(context.Background(), a, TransferRequest{DestinationUserID: b.UserID, Amount: dec("40.00")})
	require.NoError(t, err)

	assert.Equal(t, models.TxPeerDebit, entry.Type)
	assert.Equal(t, "40.00", entry.Value.StringFixed(2))
	assert.Equal(t, "60.00", balanceOf(t, s, a))
	assert.Equal(t, "40.00", balanceOf(t, s, b))

	// a single row describes the movement; there is no paired credit
	assert.Len(t, ledgerOf(t, s, a, models.TxPeerDebit), 1)
	assert.Empty(t, ledgerOf(t, s, b, models.TxPeerCredit))
	assert.Equal(t, float64(1), s.metrics.OperationCount("transfer", "ok"))
}

func TestTransferRejections(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	a := newUser(t, s, "50.00")
	b := newUser(t, s, "0")

	tests := []struct {
		name    string
		req     TransferRequest
		wantErr error
	}{
		{"insufficient funds", TransferRequest{DestinationUserID: b.UserID, Amount: dec("50.01")}, ErrInsufficientFunds},
		{"zero amount", TransferRequest{DestinationUserID: b.UserID, Amount: dec("0")}, ErrInvalidArgument},
		{"negative amount", TransferRequest{DestinationUserID: b.UserID, Amount: dec("-5")}, ErrInvalidArgument},
		{"sub-cent amount", TransferRequest{DestinationUserID: b.UserID, Amount: dec("1.001")}, ErrInvalidArgument},
		{"amount above column range", TransferRequest{DestinationUserID: b.UserID, Amount: dec("10000000000000.00")}, ErrInvalidArgument},
		{"self transfer", TransferRequest{DestinationUserID: a.UserID, Amount: dec("1.00")}, ErrInvalidArgument},
		{"unknown destination", TransferRequest{DestinationUserID: 9999, Amount: dec("1.00")}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Transfer(context.Background(), a, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, "50.00", balanceOf(t, s, a))
	assert.Equal(t, "0.00", balanceOf(t, s, b))
	assert.Empty(t, ledgerOf(t, s, a, models.TxPeerDebit))
}

func TestTransferRespectsBalanceLimit(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	a := newUser(t, s, "10.00")
	full := newUser(t, s, "9999999999999.99")

	_, err := s.Transfer(context.Background(), a, TransferRequest{DestinationUserID: full.UserID, Amount: dec("1.00")})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "10.00", balanceOf(t, s, a))
	assert.Equal(t, "9999999999999.99", balanceOf(t, s, full))
	assert.Empty(t, ledgerOf(t, s, a, models.TxPeerDebit))
}

func TestTransferAtomicOnLedgerFailure(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(t, store)
	a := newUser(t, s, "100.00")
	b := newUser(t, s, "5.00")

	broken := newTestService(t, failingStore{store})
	_, err := broken.Transfer(context.Background(), a, TransferRequest{DestinationUserID: b.UserID, Amount: dec("40.00")})
	require.Error(t, err)
	assert.Equal(t, "internal", Outcome(err))

	assert.Equal(t, "100.00", balanceOf(t, s, a))
	assert.Equal(t, "5.00", balanceOf(t, s, b))
	assert.Empty(t, ledgerOf(t, s, a, models.TxPeerDebit))
	assert.Empty(t, ledgerOf(t, s, b, models.TxPeerDebit))
}

func TestConcurrentTransfersConserveValue(t *testing.T) {
	s := newTestService(t, memory.NewStore())
	a := newUser(t, s, "1000.00")
	b := newUser(t, s, "1000.00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		src, dst := a, b
		if i%2 == 1 {
			src, dst = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transfer(context.Background(), src, TransferRequest{DestinationUserID: dst.UserID, Amount: dec("7.50")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := dec(balanceOf(t, s, a)).Add(dec(balanceOf(t, s, b)))
	assert.Equal(t, "2000.00", total.StringFixed(2))
	assert.Equal(t, "1000.00", balanceOf(t, s, a), "25 transfers each way cancel out")
	assert.Len(t, ledgerOf(t, s, a, models.TxPeerDebit), 50)
}
