// Package http is the tracker transport: authenticated JSON requests with
// rate limiting, retries, response caching and pagination.
package http

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors. *HTTPError unwraps to one of these by status code.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates invalid or missing authentication.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrForbidden indicates the user lacks permission for the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBadRequest indicates the request was malformed or rejected.
	ErrBadRequest = errors.New("bad request")

	// ErrServerError indicates a server-side error occurred.
	ErrServerError = errors.New("server error")

	// ErrCancelled indicates the caller's context ended before completion.
	ErrCancelled = errors.New("request cancelled")
)

// HTTPError is a non-2xx response from the tracker.
type HTTPError struct {
	// Service is the name of the integration (e.g., "jira").
	Service string

	// StatusCode is the HTTP status code returned.
	StatusCode int

	// Method and Endpoint identify the failed call.
	Method   string
	Endpoint string

	// Messages are the errorMessages entries from the response body.
	Messages []string

	// FieldErrors maps field names to validation messages.
	FieldErrors map[string]string

	// RetryAfter is the server-requested delay on 429/503, if any.
	RetryAfter time.Duration

	// RequestID correlates the call with client and server logs.
	RequestID string

	// Body is the raw response body, truncated.
	Body []byte
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s API error (%d) at %s %s", e.Service, e.StatusCode, e.Method, e.Endpoint)
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [%s]", e.RequestID)
	}
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Message joins the server messages and field errors into one line. Falls
// back to the status text.
func (e *HTTPError) Message() string {
	parts := append([]string(nil), e.Messages...)

	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+e.FieldErrors[f])
	}

	if len(parts) == 0 {
		return statusText(e.StatusCode)
	}
	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying sentinel error based on status code.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case 400, 409, 422:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 429:
		return ErrRateLimited
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// NetworkError is a failure to reach the tracker: DNS, dial, TLS or
// timeout. It is always transient.
type NetworkError struct {
	Service  string
	Method   string
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request %s %s failed: %v", e.Service, e.Method, e.Endpoint, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError is a 2xx response whose body could not be decoded.
type DecodeError struct {
	Service  string
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response from %s: %v", e.Service, e.Endpoint, e.Err)
}

// Unwrap returns the decoder error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCancelled, e.cause)
}

func (e *cancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *cancelledError) Unwrap() error {
	return e.cause
}

// cancelled wraps a context error so it matches both ErrCancelled and the
// original context.Canceled / context.DeadlineExceeded.
func cancelled(err error) error {
	return &cancelledError{cause: err}
}

// IsNotFound reports whether the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether the error indicates permission was denied.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRateLimited reports whether the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsCancelled reports whether the caller's context ended the request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNetwork reports whether the tracker could not be reached.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRetryable reports whether the error is transient and should be retried.
func IsRetryable(err error) bool {
	if err == nil || IsCancelled(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}
	return IsNetwork(err)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
