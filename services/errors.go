package services

// ValidationError represents a rejected input: missing or malformed
// required fields, installment-sum mismatch
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NotFoundError represents a missing payment, user, formation or alert
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundError creates a NotFoundError with the given message
func NewNotFoundError(message string) error {
	return &NotFoundError{Message: message}
}

// InvalidOperationError represents an operation that does not apply to
// the target: wrong payment type for the endpoint, re-paying an already
// paid installment, editing a paid installment's due date
type InvalidOperationError struct {
	Message string
}

func (e *InvalidOperationError) Error() string {
	return e.Message
}

// NewInvalidOperationError creates an InvalidOperationError with the given message
func NewInvalidOperationError(message string) error {
	return &InvalidOperationError{Message: message}
}
