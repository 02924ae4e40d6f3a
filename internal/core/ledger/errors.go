package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a transaction or negotiation does not resolve
	ErrNotFound = errors.New("not found")

	// ErrValidation is the class of all malformed request errors
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the caller is not a party to the trade
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when the transition policy rejects a status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyExists is returned when a negotiation already has a ledger
	ErrAlreadyExists = errors.New("transaction already exists")

	// ErrConflict is returned when an append kept losing the race for the chain tail
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
