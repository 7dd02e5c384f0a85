package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/shopspring/decimal"
)

// tx holds staged copies of every row it wrote. Reads see staged rows first,
// then committed ones.
type tx struct {
	s    *Store
	held []string
	hold map[string]bool

	users        map[int64]models.User
	accounts     map[int64]models.Account
	offers       map[int64]models.CreditOffer
	searches     map[int64]models.CreditSearch
	loans        map[int64]models.Loan
	installments map[int64]models.Installment
	transactions []models.Transaction
}

func newTx(s *Store) *tx {
	return &tx{
		s:            s,
		hold:         make(map[string]bool),
		users:        make(map[int64]models.User),
		accounts:     make(map[int64]models.Account),
		offers:       make(map[int64]models.CreditOffer),
		searches:     make(map[int64]models.CreditSearch),
		loans:        make(map[int64]models.Loan),
		installments: make(map[int64]models.Installment),
	}
}

var _ repository.Tx = (*tx)(nil)

func (t *tx) lock(ctx context.Context, key string) error {
	if t.hold[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	t.hold[key] = true
	t.held = append(t.held, key)
	return nil
}

func (t *tx) releaseAll() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.release(t.held[i])
	}
	t.held = nil
	t.hold = map[string]bool{}
}

func (t *tx) requireLock(key string) error {
	if !t.hold[key] {
		return fmt.Errorf("%s is not locked by this transaction", key)
	}
	return nil
}

func accountKey(id int64) string     { return fmt.Sprintf("account:%d", id) }
func offerKey(id int64) string       { return fmt.Sprintf("offer:%d", id) }
func installmentKey(id int64) string { return fmt.Sprintf("installment:%d", id) }

func (t *tx) account(id int64) (models.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.accounts[id]
	return a, ok
}

func (t *tx) offer(id int64) (models.CreditOffer, bool) {
	if o, ok := t.offers[id]; ok {
		return o, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	o, ok := t.s.offers[id]
	return o, ok
}

func (t *tx) loan(id int64) (models.Loan, bool) {
	if l, ok := t.loans[id]; ok {
		return l, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	l, ok := t.s.loans[id]
	return l, ok
}

func (t *tx) user(id int64) (models.User, bool) {
	if u, ok := t.users[id]; ok {
		return u, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	u, ok := t.s.users[id]
	return u, ok
}

func (t *tx) installment(id int64) (models.Installment, bool) {
	if inst, ok := t.installments[id]; ok {
		return inst, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	inst, ok := t.s.installments[id]
	return inst, ok
}

// loanInstallments is the staged view of a loan's schedule
func (t *tx) loanInstallments(loanID int64) []models.Installment {
	t.s.mu.RLock()
	ids := append([]int64(nil), t.s.installmentsByLoan[loanID]...)
	t.s.mu.RUnlock()

	seen := make(map[int64]bool, len(ids))
	var out []models.Installment
	for _, id := range ids {
		if inst, ok := t.installment(id); ok {
			out = append(out, inst)
			seen[id] = true
		}
	}
	for id, inst := range t.installments {
		if inst.LoanID == loanID && !seen[id] {
			out = append(out, inst)
		}
	}
	return out
}

func (t *tx) LockOffer(ctx context.Context, id int64) (*models.CreditOffer, error) {
	if err := t.lock(ctx, offerKey(id)); err != nil {
		return nil, err
	}
	o, ok := t.offer(id)
	if !ok {
		return nil, fmt.Errorf("%w: offer %d", repository.ErrNotFound, id)
	}
	return &o, nil
}

func (t *tx) LockAccounts(ctx context.Context, ownerIDs ...int64) (map[int64]*models.Account, error) {
	ids := make([]int64, 0, len(ownerIDs))
	for _, owner := range ownerIDs {
		id, ok := t.accountIDByOwner(owner)
		if !ok {
			return nil, fmt.Errorf("%w: account for user %d", repository.ErrNotFound, owner)
		}
		ids = append(ids, id)
	}

	locked := make(map[int64]*models.Account, len(ids))
	for _, id := range repository.LockOrder(ids...) {
		if err := t.lock(ctx, accountKey(id)); err != nil {
			return nil, err
		}
		a, _ := t.account(id)
		locked[a.OwnerID] = &a
	}
	return locked, nil
}

func (t *tx) accountIDByOwner(owner int64) (int64, bool) {
	for id, a := range t.accounts {
		if a.OwnerID == owner {
			return id, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.accountByOwner[owner]
	return id, ok
}

func (t *tx) NextPendingInstallment(ctx context.Context, loanID int64) (*models.Installment, error) {
	for {
		var next *models.Installment
		for _, inst := range t.loanInstallments(loanID) {
			if inst.Status != models.InstallmentPending {
				continue
			}
			if next == nil || inst.Number < next.Number {
				cp := inst
				next = &cp
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: pending installment for loan %d", repository.ErrNotFound, loanID)
		}
		if err := t.lock(ctx, installmentKey(next.ID)); err != nil {
			return nil, err
		}
		// another unit may have paid it while we waited
		if current, _ := t.installment(next.ID); current.Status == models.InstallmentPending {
			return &current, nil
		}
	}
}

func (t *tx) CountPendingInstallments(ctx context.Context, loanID int64) (int, error) {
	n := 0
	for _, inst := range t.loanInstallments(loanID) {
		if inst.Status == models.InstallmentPending {
			n++
		}
	}
	return n, nil
}

func (t *tx) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	if err := t.requireLock(accountKey(accountID)); err != nil {
		return err
	}
	a, ok := t.account(accountID)
	if !ok {
		return fmt.Errorf("%w: account %d", repository.ErrNotFound, accountID)
	}
	if balance.IsNegative() {
		return fmt.Errorf("balance of account %d would be negative", accountID)
	}
	a.Balance = balance
	t.accounts[accountID] = a
	return nil
}

func (t *tx) SetOfferStatus(ctx context.Context, offerID int64, status models.OfferStatus) error {
	if err := t.requireLock(offerKey(offerID)); err != nil {
		return err
	}
	o, ok := t.offer(offerID)
	if !ok {
		return fmt.Errorf("%w: offer %d", repository.ErrNotFound, offerID)
	}
	o.Status = status
	t.offers[offerID] = o
	return nil
}

func (t *tx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	t.s.mu.RLock()
	_, taken := t.s.loanByOffer[loan.OfferID]
	t.s.mu.RUnlock()
	if taken {
		return fmt.Errorf("%w: loan for offer %d", repository.ErrDuplicate, loan.OfferID)
	}
	loan.ID = t.s.seq.loan.Add(1)
	stored := *loan
	stored.Installments = nil
	t.loans[loan.ID] = stored
	return nil
}

func (t *tx) CreateInstallments(ctx context.Context, installments []models.Installment) error {
	for i := range installments {
		if _, ok := t.loan(installments[i].LoanID); !ok {
			return fmt.Errorf("%w: loan %d", repository.ErrNotFound, installments[i].LoanID)
		}
		installments[i].ID = t.s.seq.installment.Add(1)
		t.installments[installments[i].ID] = installments[i]
	}
	return nil
}

func (t *tx) MarkInstallmentPaid(ctx context.Context, id int64, amount decimal.Decimal, paidAt time.Time) error {
	if err := t.requireLock(installmentKey(id)); err != nil {
		return err
	}
	inst, ok := t.installment(id)
	if !ok || inst.Status != models.InstallmentPending {
		return fmt.Errorf("%w: installment %d", repository.ErrNotFound, id)
	}
	inst.Status = models.InstallmentPaid
	inst.AmountPaid = amount
	at := paidAt
	inst.PaidAt = &at
	t.installments[id] = inst
	return nil
}

func (t *tx) SetLoanStatus(ctx context.Context, loanID int64, status models.LoanStatus) error {
	l, ok := t.loan(loanID)
	if !ok {
		return fmt.Errorf("%w: loan %d", repository.ErrNotFound, loanID)
	}
	l.Status = status
	t.loans[loanID] = l
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	tr.ID = t.s.seq.transaction.Add(1)
	if tr.Timestamp.IsZero() {
		tr.Timestamp = t.s.now().UTC()
	}
	t.transactions = append(t.transactions, *tr)
	return nil
}

func (t *tx) CreateUser(ctx context.Context, user *models.User) error {
	for _, u := range t.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: user %s", repository.ErrDuplicate, user.Email)
		}
	}
	t.s.mu.RLock()
	_, taken := t.s.userByEmail[user.Email]
	t.s.mu.RUnlock()
	if taken {
		return fmt.Errorf("%w: user %s", repository.ErrDuplicate, user.Email)
	}
	user.ID = t.s.seq.user.Add(1)
	user.CreatedAt = t.s.now().UTC()
	t.users[user.ID] = *user
	return nil
}

func (t *tx) CreateAccount(ctx context.Context, account *models.Account) error {
	if _, ok := t.user(account.OwnerID); !ok {
		return fmt.Errorf("%w: user %d", repository.ErrNotFound, account.OwnerID)
	}
	if _, ok := t.accountIDByOwner(account.OwnerID); ok {
		return fmt.Errorf("%w: account for user %d", repository.ErrDuplicate, account.OwnerID)
	}
	account.ID = t.s.seq.account.Add(1)
	account.CreatedAt = t.s.now().UTC()
	t.accounts[account.ID] = *account
	return nil
}

func (t *tx) SetKYCStatus(ctx context.Context, userID int64, status models.KYCStatus) error {
	u, ok := t.user(userID)
	if !ok {
		return fmt.Errorf("%w: user %d", repository.ErrNotFound, userID)
	}
	u.KYCStatus = status
	t.users[userID] = u
	return nil
}

func (t *tx) CreateOffer(ctx context.Context, offer *models.CreditOffer) error {
	offer.ID = t.s.seq.offer.Add(1)
	t.offers[offer.ID] = *offer
	return nil
}

func (t *tx) CreateSearch(ctx context.Context, search *models.CreditSearch) error {
	search.ID = t.s.seq.search.Add(1)
	t.searches[search.ID] = *search
	return nil
}
