// Package evalerr defines the failure taxonomy of an evaluation run. Every
// failure carries a Kind and maps to a stable machine-readable code, so
// callers can branch without parsing messages.
package evalerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an evaluation failure.
type Kind string

const (
	KindNotFound                Kind = "NotFound"
	KindNoEligibleInputs        Kind = "NoEligibleInputs"
	KindScopeMismatch           Kind = "ScopeMismatch"
	KindProviderConfiguration   Kind = "ProviderConfigurationError"
	KindProviderHTTP            Kind = "ProviderHTTPError"
	KindProviderTimeout         Kind = "ProviderTimeout"
	KindMalformedProviderOutput Kind = "MalformedProviderOutput"
	KindPersistence             Kind = "PersistenceError"
	KindCanceled                Kind = "Canceled"
)

// Codes returned to calling layers.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeAIAPI              = "AI_API_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeAIResponseInvalid  = "AI_RESPONSE_INVALID"
	CodeDatabase           = "DATABASE_ERROR"
	CodeCanceled           = "CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
	statusClientClosedConn = 499
)

// Error is a classified evaluation failure.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode is the provider's HTTP status for KindProviderHTTP.
	StatusCode int
	// Transient marks provider failures a caller may retry.
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable public code for the error's kind.
func (e *Error) Code() string {
	switch e.Kind {
	case KindNotFound:
		return CodeNotFound
	case KindNoEligibleInputs, KindScopeMismatch:
		return CodeValidation
	case KindProviderConfiguration:
		return CodeConfiguration
	case KindProviderHTTP:
		return CodeAIAPI
	case KindProviderTimeout:
		return CodeTimeout
	case KindMalformedProviderOutput:
		return CodeAIResponseInvalid
	case KindPersistence:
		return CodeDatabase
	case KindCanceled:
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. It returns nil when err is nil.
func Wrap(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ProviderHTTP returns a KindProviderHTTP error for the given status.
func ProviderHTTP(err error, statusCode int, transient bool, provider string) *Error {
	return &Error{
		Kind:       KindProviderHTTP,
		Message:    fmt.Sprintf("%s request failed with status %d", provider, statusCode),
		StatusCode: statusCode,
		Transient:  transient,
		Err:        err,
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the public code for err.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code()
	}
	return CodeInternal
}

// HTTPStatus maps err to the status an HTTP surface should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindNoEligibleInputs, KindScopeMismatch:
		return http.StatusUnprocessableEntity
	case KindProviderHTTP, KindMalformedProviderOutput:
		return http.StatusBadGateway
	case KindProviderTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return statusClientClosedConn
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the failed run unchanged.
// The evaluation core itself never retries.
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindProviderTimeout:
		return true
	case KindProviderHTTP:
		return e.Transient
	default:
		return false
	}
}
