package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/metrics"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// RateProvider returns the current market reference rate in percent
type RateProvider interface {
	GetKeyRate(ctx context.Context) (decimal.Decimal, error)
}

// Notifier tells an account owner about a deposit or withdrawal
type Notifier interface {
	SendTransactionNotification(owner *models.User, account *models.Account, amount decimal.Decimal, txType models.TransactionType) error
}

// Service handles business logic
type Service struct {
	store    repository.Store
	log      *logrus.Logger
	config   *config.Config
	metrics  *metrics.Collector
	rates    RateProvider
	notifier Notifier
	recorder *Recorder

	now        func() time.Time
	bcryptCost int
}

// NewService initializes a new service. rates and notifier may be nil.
func NewService(store repository.Store, log *logrus.Logger, cfg *config.Config, m *metrics.Collector, rates RateProvider, notifier Notifier) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	s := &Service{
		store:      store,
		log:        log,
		config:     cfg,
		metrics:    m,
		rates:      rates,
		notifier:   notifier,
		now:        time.Now,
		bcryptCost: cost,
	}
	s.recorder = NewRecorder(func() time.Time { return s.now() })
	return s
}

// observe records an engine call; use with a named error return
func (s *Service) observe(operation string, start time.Time, err error) {
	s.metrics.ObserveOperation(operation, Outcome(err), time.Since(start))
	if err != nil && !IsExpected(err) {
		s.log.WithField("operation", operation).Errorf("Operation failed: %v", err)
	}
}

// ReferenceRate returns the market reference rate used to price offers
func (s *Service) ReferenceRate(ctx context.Context) (decimal.Decimal, error) {
	if s.rates == nil {
		return decimal.Zero, fmt.Errorf("reference rate provider is not configured")
	}
	return s.rates.GetKeyRate(ctx)
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func requireVerified(actor models.Actor, action string) error {
	if actor.KYCStatus != models.KYCVerified {
		return fmt.Errorf("%w: KYC verification required to %s", ErrForbidden, action)
	}
	return nil
}

// MaxMoney is the largest value a NUMERIC(15,2) column holds
var MaxMoney = decimal.RequireFromString("9999999999999.99")

// validateMoney accepts strictly positive amounts with at most two fraction
// digits that fit a balance column
func validateMoney(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidArgument, field)
	}
	if v.GreaterThan(MaxMoney) {
		return fmt.Errorf("%w: %s must not exceed %s", ErrInvalidArgument, field, MaxMoney.StringFixed(2))
	}
	if !v.Round(2).Equal(v) {
		return fmt.Errorf("%w: %s must have at most 2 decimal places", ErrInvalidArgument, field)
	}
	return nil
}

// ensureCapacity rejects a credit that would push the balance past MaxMoney
func ensureCapacity(account *models.Account, amount decimal.Decimal) error {
	if account.Balance.Add(amount).GreaterThan(MaxMoney) {
		return fmt.Errorf("%w: account %d would exceed the balance limit", ErrConflict, account.ID)
	}
	return nil
}

func ensureActive(accounts ...*models.Account) error {
	for _, a := range accounts {
		if a.Status != models.AccountActive {
			return fmt.Errorf("%w: account %d is blocked", ErrForbidden, a.ID)
		}
	}
	return nil
}

func volume(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}
