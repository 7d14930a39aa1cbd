package errors

import (
	"context"
	"errors"
	"strings"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/config"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/jira"
	"github.com/randalmurphal/trackerkit/schema"
)

// Kind groups errors by what the user can do about them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotConfigured
	KindAuth
	KindSessionExpired
	KindPermission
	KindNotFound
	KindTransient
	KindInvalidInput
	KindInvalidData
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindNotConfigured:  "not_configured",
	KindAuth:           "auth",
	KindSessionExpired: "session_expired",
	KindPermission:     "permission",
	KindNotFound:       "not_found",
	KindTransient:      "transient",
	KindInvalidInput:   "invalid_input",
	KindInvalidData:    "invalid_data",
	KindCancelled:      "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Retryable reports whether repeating the same call may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

var configErrors = []error{
	config.ErrProfileNotFound,
	config.ErrNoGlobalPath,
	jira.ErrConfigURLRequired,
	jira.ErrConfigURLInvalid,
	jira.ErrConfigAPIVersionInvalid,
	jira.ErrConfigNegativeDuration,
	jira.ErrConfigPageSize,
	auth.ErrSchemeRequired,
	auth.ErrSchemeInvalid,
	auth.ErrBasicAuth,
	auth.ErrAPITokenAuth,
	auth.ErrPATAuth,
	auth.ErrBearerAuth,
	auth.ErrOAuth2Auth,
	auth.ErrJWTAuth,
	auth.ErrSecretTooShort,
}

var inputErrors = []error{
	trackerhttp.ErrBadRequest,
	jira.ErrIssueKeyRequired,
	jira.ErrIssueKeyInvalid,
	jira.ErrSummaryRequired,
	jira.ErrProjectRequired,
	jira.ErrIssueTypeMissing,
	jira.ErrEmptyPatch,
	jira.ErrTransitionNotFound,
	jira.ErrTransitionIDRequired,
	jira.ErrCommentEmpty,
	jira.ErrLinkTypeRequired,
	jira.ErrLinkIDRequired,
	jira.ErrRemoteLinkURL,
}

// Classify maps an error from any trackerkit package to a Kind. Errors
// that carry no known sentinel fall back to matching their text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	// Cancellation first: a cancelled retry loop may also carry a
	// network error.
	if errors.Is(err, trackerhttp.ErrCancelled) || errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if isAny(err, configErrors) || errors.Is(err, ErrNotConfigured) {
		return KindNotConfigured
	}
	if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, ErrSessionExpired) {
		return KindSessionExpired
	}
	if errors.Is(err, trackerhttp.ErrUnauthorized) || errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, ErrNotAuthenticated) {
		return KindAuth
	}
	if errors.Is(err, trackerhttp.ErrForbidden) || errors.Is(err, ErrPermissionDenied) {
		return KindPermission
	}
	if errors.Is(err, trackerhttp.ErrNotFound) || errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if isAny(err, inputErrors) || errors.Is(err, ErrInvalidInput) {
		return KindInvalidInput
	}

	var netErr *trackerhttp.NetworkError
	if errors.As(err, &netErr) || errors.Is(err, trackerhttp.ErrRateLimited) ||
		errors.Is(err, trackerhttp.ErrServerError) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrConnectionFailed) {
		return KindTransient
	}

	var decodeErr *trackerhttp.DecodeError
	if errors.As(err, &decodeErr) || errors.Is(err, schema.ErrSchema) ||
		errors.Is(err, jira.ErrWebhookInvalidPayload) || errors.Is(err, ErrUnexpectedResponse) {
		return KindInvalidData
	}

	return classifyText(err.Error())
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyText handles errors from outside trackerkit, e.g. a raw dial error.
func classifyText(msg string) Kind {
	s := strings.ToLower(msg)
	switch {
	case containsAny(s, "connection refused", "no such host", "network is unreachable",
		"dial tcp", "timeout", "deadline exceeded", "certificate", "x509", "tls"):
		return KindTransient
	case containsAny(s, "token") && containsAny(s, "expired"):
		return KindSessionExpired
	case containsAny(s, "unauthenticated", "unauthorized", "401"):
		return KindAuth
	case containsAny(s, "permission denied", "forbidden", "403"):
		return KindPermission
	case containsAny(s, "not found", "404"):
		return KindNotFound
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
