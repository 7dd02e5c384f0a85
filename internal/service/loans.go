package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/lending-service/internal/models"
)

// GetLoan returns a loan with its schedule to either party or an admin
func (s *Service) GetLoan(ctx context.Context, actor models.Actor, loanID int64) (*models.Loan, error) {
	loan, err := s.store.FindLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != loan.BorrowerID && actor.UserID != loan.LenderID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: loan %d is not yours", ErrForbidden, loanID)
	}

	loan.Installments, err = s.store.ListInstallments(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load installments: %w", err)
	}
	return loan, nil
}

// ListLoans returns loans where the actor is borrower or lender
func (s *Service) ListLoans(ctx context.Context, actor models.Actor) ([]models.Loan, error) {
	return s.store.ListLoansByUser(ctx, actor.UserID)
}
