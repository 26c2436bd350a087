// Package errors defines the structured error taxonomy for listing and sponsor storage.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode defines specific error types for storage operations.
type ErrorCode string

const (
	// CodeStorageUnavailable is returned when the database or local storage cannot be opened.
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	// CodeDuplicateKey is returned when an insert collides with an existing id.
	CodeDuplicateKey ErrorCode = "DUPLICATE_KEY"
	// CodeNotFound is returned when a record is not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeMalformedData is returned when stored data cannot be decoded.
	CodeMalformedData ErrorCode = "MALFORMED_DATA"
	// CodeValidationFailed is returned when input data fails validation.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrStorageUnavailable = &StoreError{code: CodeStorageUnavailable, message: "storage unavailable"}
	ErrDuplicateKey       = &StoreError{code: CodeDuplicateKey, message: "duplicate key"}
	ErrNotFound           = &StoreError{code: CodeNotFound, message: "not found"}
	ErrMalformedData      = &StoreError{code: CodeMalformedData, message: "malformed data"}
	ErrValidationFailed   = &StoreError{code: CodeValidationFailed, message: "validation failed"}
)

// StoreError is a concrete error type with a code and optional details.
type StoreError struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new StoreError with the given code and message.
func New(code ErrorCode, message string) *StoreError {
	return &StoreError{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *StoreError) WithDetail(key string, value any) *StoreError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// WithDetails adds details to the error.
func (e *StoreError) WithDetails(details map[string]any) *StoreError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// Wrap wraps an underlying error.
func (e *StoreError) Wrap(err error) *StoreError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *StoreError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *StoreError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *StoreError) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is a StoreError with the same code.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.code == e.code
}

// CodeOf returns the code of the first StoreError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.code
	}
	return ""
}

// Predefined error constructors for common cases

// StorageUnavailable wraps an open or access failure of the underlying storage.
func StorageUnavailable(what string, err error) *StoreError {
	return New(CodeStorageUnavailable, fmt.Sprintf("%s is unavailable", what)).Wrap(err)
}

// DuplicateKey creates an error for an insert whose id already exists.
func DuplicateKey(id string) *StoreError {
	return New(CodeDuplicateKey, fmt.Sprintf("key %q already exists", id)).WithDetail("id", id)
}

// NotFound creates an error for a missing resource.
func NotFound(resource string) *StoreError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// MalformedData wraps a decoding failure of stored data.
func MalformedData(what string, err error) *StoreError {
	return New(CodeMalformedData, fmt.Sprintf("malformed %s", what)).Wrap(err)
}

// ValidationFailed creates a validation error.
func ValidationFailed(message string) *StoreError {
	return New(CodeValidationFailed, message)
}
