package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
)

// Store keeps the ledger in process memory. It honours the same locking and
// all-or-nothing contract as the PostgreSQL store and backs local runs and
// tests.
type Store struct {
	mu                 sync.RWMutex
	users              map[int64]models.User
	userByEmail        map[string]int64
	accounts           map[int64]models.Account
	accountByOwner     map[int64]int64
	offers             map[int64]models.CreditOffer
	searches           map[int64]models.CreditSearch
	loans              map[int64]models.Loan
	loanByOffer        map[int64]int64
	installments       map[int64]models.Installment
	installmentsByLoan map[int64][]int64
	transactions       []models.Transaction

	seq   sequences
	locks *rowLocks
	now   func() time.Time
}

type sequences struct {
	user, account, offer, search, loan, installment, transaction atomic.Int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:              make(map[int64]models.User),
		userByEmail:        make(map[string]int64),
		accounts:           make(map[int64]models.Account),
		accountByOwner:     make(map[int64]int64),
		offers:             make(map[int64]models.CreditOffer),
		searches:           make(map[int64]models.CreditSearch),
		loans:              make(map[int64]models.Loan),
		loanByOffer:        make(map[int64]int64),
		installments:       make(map[int64]models.Installment),
		installmentsByLoan: make(map[int64][]int64),
		locks:              newRowLocks(),
		now:                time.Now,
	}
}

var _ repository.Store = (*Store)(nil)

// WithinTx stages every write of fn and applies them in one step on success.
// Row locks are released on every exit path, including panics.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := newTx(s)
	defer t.releaseAll()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	// a caller that went away before commit gets nothing applied
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) Close() error { return nil }

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range t.users {
		if owner, ok := s.userByEmail[u.Email]; ok && owner != id {
			return fmt.Errorf("%w: user %s", repository.ErrDuplicate, u.Email)
		}
	}
	for id, a := range t.accounts {
		if existing, ok := s.accountByOwner[a.OwnerID]; ok && existing != id {
			return fmt.Errorf("%w: account for user %d", repository.ErrDuplicate, a.OwnerID)
		}
	}
	for id, l := range t.loans {
		if existing, ok := s.loanByOffer[l.OfferID]; ok && existing != id {
			return fmt.Errorf("%w: loan for offer %d", repository.ErrDuplicate, l.OfferID)
		}
	}

	for id, u := range t.users {
		s.users[id] = u
		s.userByEmail[u.Email] = id
	}
	for id, a := range t.accounts {
		s.accounts[id] = a
		s.accountByOwner[a.OwnerID] = id
	}
	for id, o := range t.offers {
		s.offers[id] = o
	}
	for id, sr := range t.searches {
		s.searches[id] = sr
	}
	for id, l := range t.loans {
		s.loans[id] = l
		s.loanByOffer[l.OfferID] = id
	}
	for id, inst := range t.installments {
		if _, ok := s.installments[id]; !ok {
			s.installmentsByLoan[inst.LoanID] = append(s.installmentsByLoan[inst.LoanID], id)
		}
		s.installments[id] = inst
	}
	s.transactions = append(s.transactions, t.transactions...)
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", repository.ErrNotFound, id)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, email)
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountByOwner[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: account for user %d", repository.ErrNotFound, ownerID)
	}
	a := s.accounts[id]
	return &a, nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, t := range s.transactions {
		if touches(t.OriginAccountID, accountID) || touches(t.DestinationAccountID, accountID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func touches(ref *int64, accountID int64) bool {
	return ref != nil && *ref == accountID
}

func (s *Store) FindOffer(ctx context.Context, id int64) (*models.CreditOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: offer %d", repository.ErrNotFound, id)
	}
	return &o, nil
}

func (s *Store) ListActiveOffers(ctx context.Context, excludeLenderID int64) ([]models.CreditOffer, error) {
	return s.filterOffers(func(o models.CreditOffer) bool {
		return o.Status == models.OfferActive && o.LenderID != excludeLenderID
	}, false), nil
}

func (s *Store) ListMatchingOffers(ctx context.Context, c repository.MatchCriteria) ([]models.CreditOffer, error) {
	return s.filterOffers(func(o models.CreditOffer) bool {
		return o.Status == models.OfferActive &&
			o.LenderID != c.ExcludeLenderID &&
			o.MaxAmount.GreaterThanOrEqual(c.MinAmount) &&
			o.InterestRate.LessThanOrEqual(c.MaxRate) &&
			o.TermMonths <= c.MaxTermMonths &&
			o.MinCreditScore <= c.CreditScore
	}, true), nil
}

func (s *Store) filterOffers(keep func(models.CreditOffer) bool, byRate bool) []models.CreditOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CreditOffer
	for _, o := range s.offers {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if byRate && !out[i].InterestRate.Equal(out[j].InterestRate) {
			return out[i].InterestRate.LessThan(out[j].InterestRate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) FindSearch(ctx context.Context, id int64) (*models.CreditSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.searches[id]
	if !ok {
		return nil, fmt.Errorf("%w: search %d", repository.ErrNotFound, id)
	}
	return &sr, nil
}

func (s *Store) FindLoan(ctx context.Context, id int64) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("%w: loan %d", repository.ErrNotFound, id)
	}
	return &l, nil
}

func (s *Store) ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Loan
	for _, l := range s.loans {
		if l.BorrowerID == userID || l.LenderID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListInstallments(ctx context.Context, loanID int64) ([]models.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Installment, 0, len(s.installmentsByLoan[loanID]))
	for _, id := range s.installmentsByLoan[loanID] {
		out = append(out, s.installments[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) ListPendingInstallmentsDueBefore(ctx context.Context, before time.Time) ([]models.DueInstallment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DueInstallment
	for _, inst := range s.installments {
		if inst.Status != models.InstallmentPending || !inst.DueDate.Before(before) {
			continue
		}
		loan := s.loans[inst.LoanID]
		borrower := s.users[loan.BorrowerID]
		out = append(out, models.DueInstallment{
			Installment:   inst,
			BorrowerID:    borrower.ID,
			BorrowerEmail: borrower.Email,
			BorrowerName:  borrower.FullName,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
