package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups for an id that does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or out-of-range input. It is detected
// before any write and surfaced to the caller unchanged.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError for field with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: field + ": " + err.Error(), Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation extracts the ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
