package service

import (
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/shopspring/decimal"
)

var twelve = decimal.NewFromInt(12)

// InstallmentAmount is (P + P*r*(n/12)) / n rounded half away from zero to
// cents. It is evaluated as (12P + P*r*n) / (12n) so the only inexact step is
// the final division.
func InstallmentAmount(principal, rate decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	numerator := principal.Mul(twelve).Add(principal.Mul(rate).Mul(n))
	return numerator.DivRound(twelve.Mul(n), 2)
}

// BuildSchedule returns termMonths pending installments due at one-month
// increments from start
func BuildSchedule(loanID int64, principal, rate decimal.Decimal, termMonths int, start time.Time) []models.Installment {
	amount := InstallmentAmount(principal, rate, termMonths)
	day := dateOf(start)
	out := make([]models.Installment, termMonths)
	for i := range out {
		out[i] = models.Installment{
			LoanID:     loanID,
			Number:     i + 1,
			DueDate:    addMonths(day, i+1),
			Amount:     amount,
			Status:     models.InstallmentPending,
			AmountPaid: decimal.Zero,
		}
	}
	return out
}

// addMonths moves t by whole calendar months, clamping to the last day of a
// shorter month (Jan 31 + 1 month = Feb 28/29)
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
