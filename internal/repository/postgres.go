package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/lib/pq"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore provides database operations on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore initializes a new store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// WithinTx runs fn inside one database transaction. Row locks taken with
// FOR UPDATE are held until commit or rollback.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const userColumns = `id, email, password_hash, entity_type, full_name, trade_name, document_hash,
	birth_date, credit_score, sector, region, kyc_status, role, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var tradeName, documentHash, sector, region sql.NullString
	var birthDate sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.EntityType, &user.FullName,
		&tradeName, &documentHash, &birthDate, &user.CreditScore, &sector, &region,
		&user.KYCStatus, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.TradeName = tradeName.String
	user.DocumentHash = documentHash.String
	user.Sector = sector.String
	user.Region = region.String
	if birthDate.Valid {
		user.BirthDate = &birthDate.Time
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (s *PostgresStore) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM lending.users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email
func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM lending.users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

const accountColumns = `id, owner_id, balance, status, created_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	if err := row.Scan(&account.ID, &account.OwnerID, &account.Balance, &account.Status, &account.CreatedAt); err != nil {
		return nil, err
	}
	return account, nil
}

// FindAccountByOwner retrieves the account of a user
func (s *PostgresStore) FindAccountByOwner(ctx context.Context, ownerID int64) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM lending.accounts WHERE owner_id = $1`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account for user %d", ErrNotFound, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// ListTransactionsByAccount returns every ledger entry touching the account, newest first
func (s *PostgresStore) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp_utc, type, value, origin_account_id, destination_account_id, reference
		FROM lending.transactions
		WHERE origin_account_id = $1 OR destination_account_id = $1
		ORDER BY timestamp_utc DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var origin, destination sql.NullInt64
		var reference sql.NullString
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Type, &t.Value, &origin, &destination, &reference); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if origin.Valid {
			t.OriginAccountID = &origin.Int64
		}
		if destination.Valid {
			t.DestinationAccountID = &destination.Int64
		}
		t.Reference = reference.String
		out = append(out, t)
	}
	return out, rows.Err()
}

const offerColumns = `id, lender_id, max_amount, interest_rate, term_months, min_credit_score,
	eligible_sector, expires_at, status`

func scanOffer(row rowScanner) (*models.CreditOffer, error) {
	offer := &models.CreditOffer{}
	var sector sql.NullString
	var expires sql.NullTime
	err := row.Scan(&offer.ID, &offer.LenderID, &offer.MaxAmount, &offer.InterestRate, &offer.TermMonths,
		&offer.MinCreditScore, &sector, &expires, &offer.Status)
	if err != nil {
		return nil, err
	}
	offer.EligibleSector = sector.String
	if expires.Valid {
		offer.ExpiresAt = &expires.Time
	}
	return offer, nil
}

func collectOffers(rows *sql.Rows) ([]models.CreditOffer, error) {
	defer rows.Close()
	var out []models.CreditOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		out = append(out, *offer)
	}
	return out, rows.Err()
}

// FindOffer retrieves a credit offer without locking it
func (s *PostgresStore) FindOffer(ctx context.Context, id int64) (*models.CreditOffer, error) {
	offer, err := scanOffer(s.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM lending.credit_offers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: offer %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}
	return offer, nil
}

// ListActiveOffers returns active offers not published by excludeLenderID
func (s *PostgresStore) ListActiveOffers(ctx context.Context, excludeLenderID int64) ([]models.CreditOffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+offerColumns+` FROM lending.credit_offers
		WHERE status = 'ACTIVE' AND lender_id <> $1
		ORDER BY id`, excludeLenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return collectOffers(rows)
}

// ListMatchingOffers returns active offers compatible with a credit search
func (s *PostgresStore) ListMatchingOffers(ctx context.Context, c MatchCriteria) ([]models.CreditOffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+offerColumns+` FROM lending.credit_offers
		WHERE status = 'ACTIVE'
		  AND lender_id <> $1
		  AND max_amount >= $2
		  AND interest_rate <= $3
		  AND term_months <= $4
		  AND min_credit_score <= $5
		ORDER BY interest_rate, id`,
		c.ExcludeLenderID, c.MinAmount, c.MaxRate, c.MaxTermMonths, c.CreditScore)
	if err != nil {
		return nil, fmt.Errorf("failed to list matching offers: %w", err)
	}
	return collectOffers(rows)
}

// FindSearch retrieves a credit search
func (s *PostgresStore) FindSearch(ctx context.Context, id int64) (*models.CreditSearch, error) {
	search := &models.CreditSearch{}
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, borrower_id, desired_amount, max_interest_rate, desired_term_months, status, expires_at
		FROM lending.credit_searches WHERE id = $1`, id).
		Scan(&search.ID, &search.BorrowerID, &search.DesiredAmount, &search.MaxInterestRate,
			&search.DesiredTermMonths, &search.Status, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: search %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find search: %w", err)
	}
	if expires.Valid {
		search.ExpiresAt = &expires.Time
	}
	return search, nil
}

const loanColumns = `id, borrower_id, lender_id, credit_offer_id, search_id, amount, interest_rate,
	term_months, contract_date, status`

func scanLoan(row rowScanner) (*models.Loan, error) {
	loan := &models.Loan{}
	var searchID sql.NullInt64
	err := row.Scan(&loan.ID, &loan.BorrowerID, &loan.LenderID, &loan.OfferID, &searchID, &loan.Amount,
		&loan.InterestRate, &loan.TermMonths, &loan.ContractDate, &loan.Status)
	if err != nil {
		return nil, err
	}
	if searchID.Valid {
		loan.SearchID = &searchID.Int64
	}
	return loan, nil
}

// FindLoan retrieves a loan without its installments
func (s *PostgresStore) FindLoan(ctx context.Context, id int64) (*models.Loan, error) {
	loan, err := scanLoan(s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM lending.loans WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: loan %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return loan, nil
}

// ListLoansByUser returns loans where the user is borrower or lender
func (s *PostgresStore) ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+` FROM lending.loans
		WHERE borrower_id = $1 OR lender_id = $1
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, *loan)
	}
	return out, rows.Err()
}

const installmentColumns = `id, loan_id, installment_number, due_date, amount, status, amount_paid, paid_at`

func scanInstallment(row rowScanner) (*models.Installment, error) {
	inst := &models.Installment{}
	var paidAt sql.NullTime
	err := row.Scan(&inst.ID, &inst.LoanID, &inst.Number, &inst.DueDate, &inst.Amount, &inst.Status,
		&inst.AmountPaid, &paidAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		inst.PaidAt = &paidAt.Time
	}
	return inst, nil
}

// ListInstallments returns the schedule of a loan ordered by installment number
func (s *PostgresStore) ListInstallments(ctx context.Context, loanID int64) ([]models.Installment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+installmentColumns+` FROM lending.installments
		WHERE loan_id = $1 ORDER BY installment_number`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var out []models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// ListPendingInstallmentsDueBefore returns pending installments due before the given day
func (s *PostgresStore) ListPendingInstallmentsDueBefore(ctx context.Context, before time.Time) ([]models.DueInstallment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.loan_id, i.installment_number, i.due_date, i.amount, i.status, i.amount_paid, i.paid_at,
		       u.id, u.email, u.full_name
		FROM lending.installments i
		JOIN lending.loans l ON l.id = i.loan_id
		JOIN lending.users u ON u.id = l.borrower_id
		WHERE i.status = 'PENDING' AND i.due_date < $1
		ORDER BY i.due_date, i.id`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list due installments: %w", err)
	}
	defer rows.Close()

	var out []models.DueInstallment
	for rows.Next() {
		var d models.DueInstallment
		var paidAt sql.NullTime
		err := rows.Scan(&d.ID, &d.LoanID, &d.Number, &d.DueDate, &d.Amount, &d.Status, &d.AmountPaid, &paidAt,
			&d.BorrowerID, &d.BorrowerEmail, &d.BorrowerName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due installment: %w", err)
		}
		if paidAt.Valid {
			d.PaidAt = &paidAt.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
