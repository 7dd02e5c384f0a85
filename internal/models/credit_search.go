package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SearchStatus is the lifecycle state of a credit search
type SearchStatus string

const (
	SearchActive      SearchStatus = "ACTIVE"
	SearchNegotiating SearchStatus = "NEGOTIATING"
	SearchCanceled    SearchStatus = "CANCELED"
)

// CreditSearch is a borrower's published request for credit
type CreditSearch struct {
	ID                int64           `json:"id"`
	BorrowerID        int64           `json:"borrower_id"`
	DesiredAmount     decimal.Decimal `json:"desired_amount"`
	MaxInterestRate   decimal.Decimal `json:"max_interest_rate"`
	DesiredTermMonths int             `json:"desired_term_months"`
	Status            SearchStatus    `json:"status"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
}
