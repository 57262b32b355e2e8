package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed provider call. The kind decides whether
// the failover invoker may retry against the fallback endpoint.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindTransport     ErrorKind = "transport_error"
	KindAuthFailure   ErrorKind = "auth_failure"
	KindModelNotFound ErrorKind = "model_not_found"
	KindBadRequest    ErrorKind = "bad_request"
	KindServerError   ErrorKind = "server_error"
	KindMalformed     ErrorKind = "malformed_response"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindTemplate      ErrorKind = "template_error"
)

// Retryable reports whether the kind indicates a fault of the backend
// instance rather than of the request. Only retryable kinds are eligible
// for a fallback attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindTransport, KindAuthFailure, KindServerError:
		return true
	}
	return false
}

// ProviderError is the typed outcome of a failed provider call.
// It never escapes the failover invoker as anything else.
type ProviderError struct {
	Kind     ErrorKind
	Endpoint string // endpoint URL that produced the error
	Status   int    // HTTP status, 0 if none
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s (%s): %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("provider %s (%s)", e.Kind, e.Endpoint)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with a kind and the endpoint it came from.
func NewProviderError(kind ErrorKind, endpoint string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Endpoint: endpoint, Err: err}
}

// KindOf extracts the error kind from err, classifying context errors
// as timeouts and everything untyped as a transport failure.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

// KindFromStatus maps an HTTP response status to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailure
	case status == http.StatusNotFound:
		return KindModelNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindBadRequest
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 500 || status == http.StatusTooManyRequests:
		return KindServerError
	default:
		return KindTransport
	}
}
