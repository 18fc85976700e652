package domain

import "errors"

var (
	// ErrNotFound is returned when no shipment matches the given id.
	ErrNotFound = errors.New("carga not found")
	// ErrAlreadyTerminal is returned when a transition is attempted on a
	// delivered or cancelled shipment. Callers must not retry.
	ErrAlreadyTerminal = errors.New("carga already in a terminal status")
	// ErrInvalidToken is returned when a tracking token resolves to nothing.
	ErrInvalidToken = errors.New("invalid tracking token")
	// ErrTimeout is returned when a bounded operation exceeds its deadline.
	// Distinct from validation errors so callers can offer a retry.
	ErrTimeout = errors.New("operation timed out")
)

// ValidationError is a synchronous rejection of bad input, raised before any
// persistence or network call. The reason is surfaced verbatim to the user.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a ValidationError with the given reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
