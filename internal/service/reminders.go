package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/lending-service/internal/models"
)

// DueInstallments splits pending installments due within the next `days`
// days into upcoming and overdue. It only reads.
func (s *Service) DueInstallments(ctx context.Context, days int) (upcoming, overdue []models.DueInstallment, err error) {
	today := dateOf(s.now())
	due, err := s.store.ListPendingInstallmentsDueBefore(ctx, today.AddDate(0, 0, days+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list due installments: %w", err)
	}
	for _, d := range due {
		if d.DueDate.Before(today) {
			overdue = append(overdue, d)
		} else {
			upcoming = append(upcoming, d)
		}
	}
	return upcoming, overdue, nil
}
