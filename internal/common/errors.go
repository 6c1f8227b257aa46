package common

import (
	"errors"
	"net/http"
)

// Kind classifies failures by how callers are expected to react to them.
type Kind string

const (
	// KindValidation marks malformed input. Never retried.
	KindValidation Kind = "validation"
	// KindProviderFailure marks an upstream partner error or timeout.
	KindProviderFailure Kind = "provider_failure"
	// KindConsistency marks a violated post-condition, usually a programming error upstream.
	KindConsistency Kind = "consistency"
	// KindUnavailable marks a lookup failure that has a documented fallback.
	KindUnavailable Kind = "unavailable_degrade"
	// KindInternal is reported for errors that carry no kind.
	KindInternal Kind = "internal"
)

// Kinded is implemented by domain errors that expose their Kind.
type Kinded interface {
	ErrorKind() Kind
}

// KindOf returns the kind of the first error in the chain that reports one.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// StatusForKind maps an error kind onto the HTTP status handlers respond with.
func StatusForKind(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindProviderFailure:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind implements Kinded.
func (e *AppError) ErrorKind() Kind {
	if e == nil || e.Kind == "" {
		return KindInternal
	}
	return e.Kind
}

// NewAppError constructs an AppError.
func NewAppError(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: StatusForKind(kind), Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
