package domain

// ValidationError marks input the caller must fix before retrying.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// ConflictError marks a precondition failure on related-entity state. The
// caller may retry once the blocking state is resolved.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflictError(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}
