package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
// LoanDefault is reserved: nothing in this service transitions into it.
type LoanStatus string

const (
	LoanActive  LoanStatus = "ACTIVE"
	LoanPaid    LoanStatus = "PAID"
	LoanDefault LoanStatus = "DEFAULT"
)

// Loan is the agreement formed when a borrower accepts an offer
type Loan struct {
	ID           int64           `json:"id"`
	BorrowerID   int64           `json:"borrower_id"`
	LenderID     int64           `json:"lender_id"`
	OfferID      int64           `json:"credit_offer_id"`
	SearchID     *int64          `json:"search_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
	ContractDate time.Time       `json:"contract_date"`
	Status       LoanStatus      `json:"status"`
	Installments []Installment   `json:"installments,omitempty"`
}
