package shared

import (
	"errors"
	"fmt"
)

// DomainError is a rule violation identified by a stable code. Two domain
// errors are equal under errors.Is when their codes match, so a sentinel
// still matches after Withf has replaced its message.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Withf returns a copy of e carrying a formatted message
func (e *DomainError) Withf(format string, args ...any) *DomainError {
	return &DomainError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or ""
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Record not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Record already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Record was changed or removed since it was loaded")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in the record's current state")
)
