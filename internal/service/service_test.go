package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/metrics"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	contractDay = time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
	admin       = models.Actor{UserID: -1, KYCStatus: models.KYCVerified, Role: models.RoleAdmin}
	userSeq     atomic.Int64
)

func newTestService(t *testing.T, store repository.Store) *Service {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg := &config.Config{
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		HMACSecret:  "test-hmac",
		AdminEmails: []string{"admin@example.com"},
		BcryptCost:  bcrypt.MinCost,
	}
	s := NewService(store, log, cfg, metrics.NewCollector(log), nil, nil)
	s.now = func() time.Time { return contractDay }
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newUser registers a KYC-verified individual and funds the account
func newUser(t *testing.T, s *Service, balance string) models.Actor {
	t.Helper()
	ctx := context.Background()
	user, err := s.Register(ctx, RegisterRequest{
		Email:       fmt.Sprintf("user%d@example.com", userSeq.Add(1)),
		Password:    "password123",
		EntityType:  models.EntityIndividual,
		FullName:    "Test User",
		Document:    "123.456.789-09",
		CreditScore: 700,
	})
	require.NoError(t, err)
	user, err = s.SetKYCStatus(ctx, admin, user.ID, models.KYCVerified)
	require.NoError(t, err)

	if b := dec(balance); b.IsPositive() {
		_, err = s.Deposit(ctx, admin, user.ID, b)
		require.NoError(t, err)
	}
	return models.ActorFor(user)
}

func newOffer(t *testing.T, s *Service, lender models.Actor, maxAmount, rate string, term int) *models.CreditOffer {
	t.Helper()
	offer, err := s.CreateOffer(context.Background(), lender, OfferRequest{
		MaxAmount:    dec(maxAmount),
		InterestRate: dec(rate),
		TermMonths:   term,
	})
	require.NoError(t, err)
	return offer
}

func balanceOf(t *testing.T, s *Service, actor models.Actor) string {
	t.Helper()
	acc, err := s.Balance(context.Background(), actor)
	require.NoError(t, err)
	return acc.Balance.StringFixed(2)
}

func ledgerOf(t *testing.T, s *Service, actor models.Actor, typ models.TransactionType) []models.Transaction {
	t.Helper()
	all, err := s.History(context.Background(), actor)
	require.NoError(t, err)
	var out []models.Transaction
	for _, tr := range all {
		if tr.Type == typ {
			out = append(out, tr)
		}
	}
	return out
}
