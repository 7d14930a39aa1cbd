package errors

import (
	"errors"
	"fmt"
	"strings"

	trackerhttp "github.com/randalmurphal/trackerkit/http"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the kind sentinel, e.g. ErrNotFound.
	Err error

	// Cause is the error that was wrapped.
	Cause error

	// Kind is the classification of Cause.
	Kind Kind

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// Unwrap exposes both the kind sentinel and the original cause, so
// errors.Is matches ErrNotFound as well as trackerhttp.ErrNotFound.
func (e *CLIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ErrorMessenger provides customizable error messages.
// Implement this interface to customize suggestions for your CLI.
type ErrorMessenger interface {
	// NotConfiguredMessage is used when no profile or credentials are usable.
	NotConfiguredMessage(profile string) (message, suggestion string)

	// AuthErrorMessage returns the message and suggestion for rejected credentials.
	AuthErrorMessage(serverURL string) (message, suggestion string)

	// SessionExpiredMessage returns the message and suggestion for expired tokens.
	SessionExpiredMessage() (message, suggestion string)

	// PermissionDeniedMessage returns the message and suggestion for permission errors.
	PermissionDeniedMessage() (message, suggestion string)

	// NotFoundMessage returns the message and suggestion for missing resources.
	NotFoundMessage() (message, suggestion string)

	// ConnectionErrorMessage returns the message and suggestion for network
	// failures, throttling and server errors.
	ConnectionErrorMessage(serverURL string) (message, suggestion string)

	// InvalidInputMessage returns the message and suggestion for rejected input.
	InvalidInputMessage() (message, suggestion string)

	// UnexpectedResponseMessage is used when the tracker's reply cannot be read.
	UnexpectedResponseMessage(serverURL string) (message, suggestion string)
}

// DefaultMessenger provides default error messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) NotConfiguredMessage(profile string) (string, string) {
	if profile == "" {
		return "No tracker is configured.", "Create a profile in ~/.config/trackerkit/config.yaml or set TRACKERKIT_URL."
	}
	return fmt.Sprintf("Profile %q is not usable.", profile),
		"Check the profile's url and auth settings, or select another profile."
}

func (m DefaultMessenger) AuthErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("%s rejected your credentials.", orServer(serverURL)),
		"Check the email and token of the active profile."
}

func (m DefaultMessenger) SessionExpiredMessage() (string, string) {
	return "Your session has expired.", "Refresh the token and try again."
}

func (m DefaultMessenger) PermissionDeniedMessage() (string, string) {
	return "You don't have permission to perform this action.",
		"Ask a project administrator for access."
}

func (m DefaultMessenger) NotFoundMessage() (string, string) {
	return "Not found.", "Check the issue or project key."
}

func (m DefaultMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot reach %s.", orServer(serverURL)),
		"Check that:\n  - The URL is correct\n  - Your network connection is working\n  - The tracker is not throttling you\nThen try again in a moment."
}

func (m DefaultMessenger) InvalidInputMessage() (string, string) {
	return "The request was rejected.", "Check the arguments and field values."
}

func (m DefaultMessenger) UnexpectedResponseMessage(serverURL string) (string, string) {
	return fmt.Sprintf("%s returned a response that could not be read.", orServer(serverURL)),
		"The server may run an unsupported version. Try pinning api_version in the profile."
}

func orServer(serverURL string) string {
	if serverURL == "" {
		return "The server"
	}
	return serverURL
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
	ServerURL string
	Profile   string
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

// WithServer names the tracker in connection and auth messages.
func WithServer(serverURL string) Option {
	return func(c *WrapConfig) {
		c.ServerURL = serverURL
	}
}

// WithProfile names the active profile in configuration messages.
func WithProfile(name string) Option {
	return func(c *WrapConfig) {
		c.Profile = name
	}
}

func getConfig(opts []Option) *WrapConfig {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Wrap classifies err and returns a CLIError with guidance. Cancellation
// and unclassified errors are returned unchanged, as is nil.
func Wrap(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	var existing *CLIError
	if errors.As(err, &existing) {
		return err
	}

	cfg := getConfig(opts)
	m := cfg.Messenger
	kind := Classify(err)

	var sentinel error
	var msg, suggestion string
	switch kind {
	case KindNotConfigured:
		sentinel = ErrNotConfigured
		msg, suggestion = m.NotConfiguredMessage(cfg.Profile)
	case KindAuth:
		sentinel = ErrNotAuthenticated
		msg, suggestion = m.AuthErrorMessage(cfg.ServerURL)
	case KindSessionExpired:
		sentinel = ErrSessionExpired
		msg, suggestion = m.SessionExpiredMessage()
	case KindPermission:
		sentinel = ErrPermissionDenied
		msg, suggestion = m.PermissionDeniedMessage()
	case KindNotFound:
		sentinel = ErrNotFound
		msg, suggestion = m.NotFoundMessage()
	case KindTransient:
		sentinel = ErrConnectionFailed
		msg, suggestion = m.ConnectionErrorMessage(cfg.ServerURL)
	case KindInvalidInput:
		sentinel = ErrInvalidInput
		msg, suggestion = m.InvalidInputMessage()
	case KindInvalidData:
		sentinel = ErrUnexpectedResponse
		msg, suggestion = m.UnexpectedResponseMessage(cfg.ServerURL)
	default:
		return err
	}

	return &CLIError{
		Err:        sentinel,
		Cause:      err,
		Kind:       kind,
		Message:    msg,
		Suggestion: suggestion,
		Details:    details(err),
	}
}

// details extracts the server's own explanation when there is one.
func details(err error) string {
	var httpErr *trackerhttp.HTTPError
	if errors.As(err, &httpErr) {
		d := httpErr.Message()
		if httpErr.RequestID != "" {
			d += " (request " + httpErr.RequestID + ")"
		}
		return d
	}
	return err.Error()
}

// NewNotConfiguredError creates an error for a missing or unusable profile.
func NewNotConfiguredError(profile string, opts ...Option) error {
	cfg := getConfig(opts)
	msg, suggestion := cfg.Messenger.NotConfiguredMessage(profile)
	return &CLIError{
		Err:        ErrNotConfigured,
		Kind:       KindNotConfigured,
		Message:    msg,
		Suggestion: suggestion,
	}
}
