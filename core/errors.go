package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// IsValidationError reports whether err is a *ValidationError or the raw output of validator.Struct.
func IsValidationError(err error) bool {
	switch errors.Cause(err).(type) {
	case *ValidationError, validator.ValidationErrors:
		return true
	}
	return false
}

// AuthError reports an authorization failure: the caller is known but not allowed to proceed.
type AuthError struct {
	Reason string
}

func NewAuthError(reason string) error {
	return &AuthError{Reason: reason}
}

func (err AuthError) Error() string {
	return err.Reason
}

func IsAuthError(err error) bool {
	_, ok := errors.Cause(err).(*AuthError)
	return ok
}

// NotFoundError is implemented by the per-domain "not found" sentinels.
type NotFoundError struct {
	What string
}

func NewNotFoundError(what string) error {
	return &NotFoundError{What: what}
}

func (err NotFoundError) Error() string {
	return err.What + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// NewUniqueViolation reports a unique-constraint violation on field.
func NewUniqueViolation(field string) error {
	return NewFieldError(field, "this value is already in use")
}
