package errors

import "errors"

// Sentinels carried by CLIError.Err. Each corresponds to a Kind.
var (
	// ErrNotConfigured indicates no usable profile or credentials.
	ErrNotConfigured = errors.New("not configured")

	// ErrNotAuthenticated indicates the tracker rejected the credentials.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired indicates an OAuth or JWT token has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the issue, project or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConnectionFailed indicates the server is unreachable or overloaded.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidInput indicates the request was rejected before or by the
	// tracker because of bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnexpectedResponse indicates the tracker answered with a payload
	// the client does not understand.
	ErrUnexpectedResponse = errors.New("unexpected response")
)
