package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
)

// OfferRequest carries the terms of a new credit offer
type OfferRequest struct {
	MaxAmount      decimal.Decimal
	InterestRate   decimal.Decimal
	TermMonths     int
	MinCreditScore int
	EligibleSector string
	ExpiresAt      *time.Time
}

// SearchRequest carries the terms a borrower is looking for
type SearchRequest struct {
	DesiredAmount     decimal.Decimal
	MaxInterestRate   decimal.Decimal
	DesiredTermMonths int
	ExpiresAt         *time.Time
}

func validateRate(field string, rate decimal.Decimal) error {
	if !rate.IsPositive() || !rate.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s must be between 0 and 1", ErrInvalidArgument, field)
	}
	if !rate.Round(4).Equal(rate) {
		return fmt.Errorf("%w: %s must have at most 4 decimal places", ErrInvalidArgument, field)
	}
	return nil
}

func (s *Service) validateExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return fmt.Errorf("%w: expiry must be in the future", ErrInvalidArgument)
	}
	return nil
}

// CreateOffer publishes a lender's offer
func (s *Service) CreateOffer(ctx context.Context, lender models.Actor, req OfferRequest) (*models.CreditOffer, error) {
	if err := requireVerified(lender, "create offers"); err != nil {
		return nil, err
	}
	if err := validateMoney("max amount", req.MaxAmount); err != nil {
		return nil, err
	}
	if err := validateRate("interest rate", req.InterestRate); err != nil {
		return nil, err
	}
	if req.TermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be at least one month", ErrInvalidArgument)
	}
	if req.MinCreditScore < 0 || req.MinCreditScore > 1000 {
		return nil, fmt.Errorf("%w: minimum credit score must be between 0 and 1000", ErrInvalidArgument)
	}
	if err := s.validateExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	offer := &models.CreditOffer{
		LenderID:       lender.UserID,
		MaxAmount:      req.MaxAmount,
		InterestRate:   req.InterestRate,
		TermMonths:     req.TermMonths,
		MinCreditScore: req.MinCreditScore,
		EligibleSector: req.EligibleSector,
		ExpiresAt:      req.ExpiresAt,
		Status:         models.OfferActive,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.CreateOffer(ctx, offer)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.log.Infof("Offer %d published by user %d", offer.ID, lender.UserID)
	return offer, nil
}

// ListOffers returns active offers from other lenders
func (s *Service) ListOffers(ctx context.Context, actor models.Actor) ([]models.CreditOffer, error) {
	return s.store.ListActiveOffers(ctx, actor.UserID)
}

// CreateSearch publishes a borrower's credit search
func (s *Service) CreateSearch(ctx context.Context, borrower models.Actor, req SearchRequest) (*models.CreditSearch, error) {
	if err := requireVerified(borrower, "create credit searches"); err != nil {
		return nil, err
	}
	if err := validateMoney("desired amount", req.DesiredAmount); err != nil {
		return nil, err
	}
	if err := validateRate("max interest rate", req.MaxInterestRate); err != nil {
		return nil, err
	}
	if req.DesiredTermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be at least one month", ErrInvalidArgument)
	}
	if err := s.validateExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	search := &models.CreditSearch{
		BorrowerID:        borrower.UserID,
		DesiredAmount:     req.DesiredAmount,
		MaxInterestRate:   req.MaxInterestRate,
		DesiredTermMonths: req.DesiredTermMonths,
		Status:            models.SearchActive,
		ExpiresAt:         req.ExpiresAt,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.CreateSearch(ctx, search)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credit search: %w", err)
	}

	s.log.Infof("Credit search %d published by user %d", search.ID, borrower.UserID)
	return search, nil
}

// MatchingOffers lists active offers that satisfy a credit search. Only the
// search owner or an admin may ask; anyone else gets NotFound.
func (s *Service) MatchingOffers(ctx context.Context, actor models.Actor, searchID int64) ([]models.CreditOffer, error) {
	search, err := s.store.FindSearch(ctx, searchID)
	if err != nil {
		return nil, err
	}
	if search.BorrowerID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: credit search %d", ErrNotFound, searchID)
	}
	borrower, err := s.store.FindUserByID(ctx, search.BorrowerID)
	if err != nil {
		return nil, err
	}

	return s.store.ListMatchingOffers(ctx, repository.MatchCriteria{
		ExcludeLenderID: search.BorrowerID,
		MinAmount:       search.DesiredAmount,
		MaxRate:         search.MaxInterestRate,
		MaxTermMonths:   search.DesiredTermMonths,
		CreditScore:     borrower.CreditScore,
	})
}
