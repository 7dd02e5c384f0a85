package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the state of a scheduled repayment.
// Overdue and partial are reserved for a future reconciliation job.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
	InstallmentPartial InstallmentStatus = "PARTIAL"
)

// Installment represents one scheduled repayment of a loan
type Installment struct {
	ID         int64             `json:"id"`
	LoanID     int64             `json:"loan_id"`
	Number     int               `json:"installment_number"`
	DueDate    time.Time         `json:"due_date"`
	Amount     decimal.Decimal   `json:"amount"`
	Status     InstallmentStatus `json:"status"`
	AmountPaid decimal.Decimal   `json:"amount_paid"`
	PaidAt     *time.Time        `json:"paid_at,omitempty"`
}

// DueInstallment joins a pending installment with what a reminder needs
type DueInstallment struct {
	Installment
	BorrowerID    int64
	BorrowerEmail string
	BorrowerName  string
}
