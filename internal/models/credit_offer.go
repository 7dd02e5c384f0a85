package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus is the lifecycle state of a credit offer
type OfferStatus string

const (
	OfferActive    OfferStatus = "ACTIVE"
	OfferPaused    OfferStatus = "PAUSED"
	OfferCommitted OfferStatus = "COMMITTED"
)

// CreditOffer is a lender's published willingness to lend
type CreditOffer struct {
	ID             int64           `json:"id"`
	LenderID       int64           `json:"lender_id"`
	MaxAmount      decimal.Decimal `json:"max_amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	TermMonths     int             `json:"term_months"`
	MinCreditScore int             `json:"min_credit_score"`
	EligibleSector string          `json:"eligible_sector,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	Status         OfferStatus     `json:"status"`
}
