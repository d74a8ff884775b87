package model

import (
	"errors"
	"net/http"
)

var (
	// ErrMissingEndpoint is returned by clients constructed without a base URL.
	ErrMissingEndpoint = errors.New("endpoint is not configured")
)

// ProviderError describes a failed call to an upstream HTTP service. Code is
// "<SERVICE>_FAILED", "<SERVICE>_AUTH" or "<SERVICE>_RATE_LIMIT".
type ProviderError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// MapHTTPStatus classifies a non-2xx response from service into a
// ProviderError.
func MapHTTPStatus(service string, statusCode int, message string) *ProviderError {
	pe := &ProviderError{
		Code:       service + "_FAILED",
		Message:    message,
		StatusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		pe.Code = service + "_AUTH"
	case statusCode == http.StatusTooManyRequests:
		pe.Code = service + "_RATE_LIMIT"
		pe.Retryable = true
	case statusCode >= http.StatusInternalServerError:
		pe.Retryable = true
	case statusCode >= http.StatusBadRequest:
		pe.Retryable = false
	default:
		pe.Retryable = true
	}
	return pe
}

// IsRetryable reports whether err wraps a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
