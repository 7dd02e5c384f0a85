package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// Reader holds the lock-free queries. They observe committed state only.
type Reader interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindAccountByOwner(ctx context.Context, ownerID int64) (*models.Account, error)
	ListTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error)

	FindOffer(ctx context.Context, id int64) (*models.CreditOffer, error)
	ListActiveOffers(ctx context.Context, excludeLenderID int64) ([]models.CreditOffer, error)
	ListMatchingOffers(ctx context.Context, c MatchCriteria) ([]models.CreditOffer, error)
	FindSearch(ctx context.Context, id int64) (*models.CreditSearch, error)

	FindLoan(ctx context.Context, id int64) (*models.Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error)
	ListInstallments(ctx context.Context, loanID int64) ([]models.Installment, error)
	ListPendingInstallmentsDueBefore(ctx context.Context, before time.Time) ([]models.DueInstallment, error)
}

// MatchCriteria filters active offers against a credit search
type MatchCriteria struct {
	ExcludeLenderID int64
	MinAmount       decimal.Decimal
	MaxRate         decimal.Decimal
	MaxTermMonths   int
	CreditScore     int
}

// Tx is one all-or-nothing unit of work. Writes are invisible to other
// callers until the enclosing WithinTx returns nil.
type Tx interface {
	// LockOffer takes the offer row for update and returns its current state.
	LockOffer(ctx context.Context, id int64) (*models.CreditOffer, error)
	// LockAccounts takes the accounts owned by ownerIDs for update, in
	// ascending account id order, and returns them keyed by owner id.
	LockAccounts(ctx context.Context, ownerIDs ...int64) (map[int64]*models.Account, error)
	// NextPendingInstallment locks and returns the lowest-numbered pending
	// installment of the loan.
	NextPendingInstallment(ctx context.Context, loanID int64) (*models.Installment, error)
	CountPendingInstallments(ctx context.Context, loanID int64) (int, error)

	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	SetOfferStatus(ctx context.Context, offerID int64, status models.OfferStatus) error
	CreateLoan(ctx context.Context, loan *models.Loan) error
	CreateInstallments(ctx context.Context, installments []models.Installment) error
	MarkInstallmentPaid(ctx context.Context, id int64, amount decimal.Decimal, paidAt time.Time) error
	SetLoanStatus(ctx context.Context, loanID int64, status models.LoanStatus) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error

	CreateUser(ctx context.Context, user *models.User) error
	CreateAccount(ctx context.Context, account *models.Account) error
	SetKYCStatus(ctx context.Context, userID int64, status models.KYCStatus) error
	CreateOffer(ctx context.Context, offer *models.CreditOffer) error
	CreateSearch(ctx context.Context, search *models.CreditSearch) error
}

// Store is the ledger store shared by every engine
type Store interface {
	Reader
	// WithinTx runs fn in a single unit of work. Any error from fn, or a
	// cancelled ctx, discards all staged writes and releases all locks.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
