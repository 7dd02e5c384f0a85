package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type pgTx struct {
	tx *sql.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) LockOffer(ctx context.Context, id int64) (*models.CreditOffer, error) {
	offer, err := scanOffer(t.tx.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM lending.credit_offers WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: offer %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock offer: %w", err)
	}
	return offer, nil
}

// LockAccounts resolves owner ids to account ids, then locks the rows one by
// one in ascending account id. The owner to account mapping never changes,
// so resolving it without a lock is safe.
func (t *pgTx) LockAccounts(ctx context.Context, ownerIDs ...int64) (map[int64]*models.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, owner_id FROM lending.accounts WHERE owner_id = ANY($1)`, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve accounts: %w", err)
	}
	accountByOwner := make(map[int64]int64, len(ownerIDs))
	for rows.Next() {
		var id, owner int64
		if err := rows.Scan(&id, &owner); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		accountByOwner[owner] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to resolve accounts: %w", err)
	}

	ids := make([]int64, 0, len(ownerIDs))
	for _, owner := range ownerIDs {
		id, ok := accountByOwner[owner]
		if !ok {
			return nil, fmt.Errorf("%w: account for user %d", ErrNotFound, owner)
		}
		ids = append(ids, id)
	}

	locked := make(map[int64]*models.Account, len(ids))
	for _, id := range LockOrder(ids...) {
		account, err := scanAccount(t.tx.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM lending.accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		locked[account.OwnerID] = account
	}
	return locked, nil
}

func (t *pgTx) NextPendingInstallment(ctx context.Context, loanID int64) (*models.Installment, error) {
	inst, err := scanInstallment(t.tx.QueryRowContext(ctx, `
		SELECT `+installmentColumns+` FROM lending.installments
		WHERE loan_id = $1 AND status = 'PENDING'
		ORDER BY installment_number
		LIMIT 1
		FOR UPDATE`, loanID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pending installment for loan %d", ErrNotFound, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock installment: %w", err)
	}
	return inst, nil
}

func (t *pgTx) CountPendingInstallments(ctx context.Context, loanID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT count(*) FROM lending.installments WHERE loan_id = $1 AND status = 'PENDING'`, loanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count installments: %w", err)
	}
	return n, nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	return t.execOne(ctx, "account", accountID,
		`UPDATE lending.accounts SET balance = $2 WHERE id = $1`, accountID, balance)
}

func (t *pgTx) SetOfferStatus(ctx context.Context, offerID int64, status models.OfferStatus) error {
	return t.execOne(ctx, "offer", offerID,
		`UPDATE lending.credit_offers SET status = $2 WHERE id = $1`, offerID, status)
}

func (t *pgTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.loans (borrower_id, lender_id, credit_offer_id, search_id, amount, interest_rate,
		                           term_months, contract_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		loan.BorrowerID, loan.LenderID, loan.OfferID, nullInt64(loan.SearchID), loan.Amount, loan.InterestRate,
		loan.TermMonths, loan.ContractDate, loan.Status).Scan(&loan.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: loan for offer %d", ErrDuplicate, loan.OfferID)
	}
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (t *pgTx) CreateInstallments(ctx context.Context, installments []models.Installment) error {
	for i := range installments {
		inst := &installments[i]
		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO lending.installments (loan_id, installment_number, due_date, amount, status, amount_paid)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			inst.LoanID, inst.Number, inst.DueDate, inst.Amount, inst.Status, inst.AmountPaid).Scan(&inst.ID)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.Number, err)
		}
	}
	return nil
}

func (t *pgTx) MarkInstallmentPaid(ctx context.Context, id int64, amount decimal.Decimal, paidAt time.Time) error {
	return t.execOne(ctx, "installment", id, `
		UPDATE lending.installments SET status = 'PAID', amount_paid = $2, paid_at = $3
		WHERE id = $1 AND status = 'PENDING'`, id, amount, paidAt)
}

func (t *pgTx) SetLoanStatus(ctx context.Context, loanID int64, status models.LoanStatus) error {
	return t.execOne(ctx, "loan", loanID,
		`UPDATE lending.loans SET status = $2 WHERE id = $1`, loanID, status)
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.transactions (timestamp_utc, type, value, origin_account_id, destination_account_id, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tr.Timestamp, tr.Type, tr.Value, nullInt64(tr.OriginAccountID), nullInt64(tr.DestinationAccountID),
		nullString(tr.Reference)).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) CreateUser(ctx context.Context, user *models.User) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.users (email, password_hash, entity_type, full_name, trade_name, document_hash,
		                           birth_date, credit_score, sector, region, kyc_status, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		user.Email, user.PasswordHash, user.EntityType, user.FullName, nullString(user.TradeName),
		nullString(user.DocumentHash), nullTime(user.BirthDate), user.CreditScore, nullString(user.Sector),
		nullString(user.Region), user.KYCStatus, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user %s", ErrDuplicate, user.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (t *pgTx) CreateAccount(ctx context.Context, account *models.Account) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.accounts (owner_id, balance, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		account.OwnerID, account.Balance, account.Status).
		Scan(&account.ID, &account.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account for user %d", ErrDuplicate, account.OwnerID)
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (t *pgTx) SetKYCStatus(ctx context.Context, userID int64, status models.KYCStatus) error {
	return t.execOne(ctx, "user", userID,
		`UPDATE lending.users SET kyc_status = $2 WHERE id = $1`, userID, status)
}

func (t *pgTx) CreateOffer(ctx context.Context, offer *models.CreditOffer) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.credit_offers (lender_id, max_amount, interest_rate, term_months, min_credit_score,
		                                   eligible_sector, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		offer.LenderID, offer.MaxAmount, offer.InterestRate, offer.TermMonths, offer.MinCreditScore,
		nullString(offer.EligibleSector), nullTime(offer.ExpiresAt), offer.Status).Scan(&offer.ID)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

func (t *pgTx) CreateSearch(ctx context.Context, search *models.CreditSearch) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lending.credit_searches (borrower_id, desired_amount, max_interest_rate, desired_term_months,
		                                     status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		search.BorrowerID, search.DesiredAmount, search.MaxInterestRate, search.DesiredTermMonths,
		search.Status, nullTime(search.ExpiresAt)).Scan(&search.ID)
	if err != nil {
		return fmt.Errorf("failed to create search: %w", err)
	}
	return nil
}

// execOne runs an update that must touch exactly one row
func (t *pgTx) execOne(ctx context.Context, entity string, id int64, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
	}
	return nil
}
