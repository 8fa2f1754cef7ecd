package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the error taxonomy of the credit engine. Callers
// branch on the kind via errors.Is; the wrapped message text is preserved
// for display and logging only.
var (
	// ErrNotFound marks a referenced loan, installment or customer that
	// does not exist, or a loan with no unpaid installments left.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidArgument marks caller-supplied values violating a
	// precondition (negative payment, disallowed installment count).
	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	// ErrBusinessRule marks well-formed input that is not actionable under
	// domain rules (no eligible installments, payment below the first
	// installment amount, credit limit exhausted).
	ErrBusinessRule = errors.New("business rule violation")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// Message strips the sentinel prefix added by %w wrapping so handlers can
// surface the literal domain message ("Payment amount cannot be negative")
// instead of "invalid argument: Payment amount cannot be negative".
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range []error{ErrNotFound, ErrInvalidArgument, ErrBusinessRule, ErrValidation} {
		if !errors.Is(err, sentinel) {
			continue
		}
		msg := err.Error()
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
		return msg
	}
	return err.Error()
}

func WrapDatabaseError(cause error, message string) error {
	return fmt.Errorf("%w: %s: %w", ErrDatabase, message, cause)
}
