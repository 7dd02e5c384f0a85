package service

import (
	"errors"

	"github.com/Dan9191/lending-service/internal/repository"
)

// Caller-facing error kinds. Engine errors wrap exactly one of these; any
// other error is an internal failure.
var (
	ErrNotFound          = repository.ErrNotFound
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNothingToPay      = errors.New("no pending installments")
	ErrUnauthorized      = errors.New("invalid credentials")
)

// Outcome names the kind of err for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNothingToPay):
		return "nothing_to_pay"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}

// IsExpected reports whether err is a caller-facing outcome rather than a defect
func IsExpected(err error) bool {
	o := Outcome(err)
	return o != "ok" && o != "internal"
}
