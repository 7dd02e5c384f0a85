package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxPeerDebit          TransactionType = "P2P_DEBIT"
	TxPeerCredit         TransactionType = "P2P_CREDIT"
	TxLoanDisbursement   TransactionType = "LOAN_DISBURSEMENT"
	TxInstallmentPayment TransactionType = "INSTALLMENT_PAYMENT"
	TxDeposit            TransactionType = "DEPOSIT"
	TxWithdrawal         TransactionType = "WITHDRAWAL"
)

// Transaction is an immutable ledger entry
type Transaction struct {
	ID                   int64           `json:"id"`
	Timestamp            time.Time       `json:"timestamp"`
	Type                 TransactionType `json:"type"`
	Value                decimal.Decimal `json:"value"`
	OriginAccountID      *int64          `json:"origin_account_id,omitempty"`
	DestinationAccountID *int64          `json:"destination_account_id,omitempty"`
	Reference            string          `json:"reference,omitempty"`
}
