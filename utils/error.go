package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// NotFoundError: a referenced import record, order or file does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func NewNotFoundError(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrorRecordNotFound)
}

// ValidationError: the request is malformed or blocked by policy. Code is
// machine-readable; Details carries structured context (e.g. a serialized
// conflict decision) so callers can render a decision UI.
type ValidationError struct {
	Code    string
	Message string
	Details any
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(code string, message string, details any) *ValidationError {
	return &ValidationError{Code: code, Message: message, Details: details}
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ConflictError: lock contention or an identifier collision. Safe to retry
// later; never leaves a torn write. Holder names the current lock owner when
// known.
type ConflictError struct {
	Message string
	Holder  string
}

func (e *ConflictError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("%s (locked by %s)", e.Message, e.Holder)
	}
	return e.Message
}

func NewConflictError(message string, holder string) *ConflictError {
	return &ConflictError{Message: message, Holder: holder}
}

func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
