package jira

import (
	"errors"

	trackerhttp "github.com/randalmurphal/trackerkit/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("jira url is required")
	ErrConfigURLInvalid        = errors.New("jira url must be an absolute http or https url")
	ErrConfigAPIVersionInvalid = errors.New("api_version must be auto, v2, or v3")
	ErrConfigNegativeDuration  = errors.New("timeouts and retry waits must not be negative")
	ErrConfigPageSize          = errors.New("pagination.page_size must be between 0 and 100")
)

// Issue errors.
var (
	ErrIssueKeyRequired = errors.New("issue key is required")
	ErrIssueKeyInvalid  = errors.New("invalid issue key format")
	ErrSummaryRequired  = errors.New("issue summary is required")
	ErrProjectRequired  = errors.New("project key is required")
	ErrIssueTypeMissing = errors.New("issue type is required")
	ErrEmptyPatch       = errors.New("issue patch has no changes")
)

// Transition errors.
var (
	ErrTransitionNotFound   = errors.New("transition not found for issue")
	ErrTransitionIDRequired = errors.New("transition id is required")
)

// Comment errors.
var (
	ErrCommentEmpty = errors.New("comment body is empty")
)

// Link errors.
var (
	ErrLinkTypeRequired = errors.New("link type is required")
	ErrLinkIDRequired   = errors.New("link id is required")
	ErrRemoteLinkURL    = errors.New("remote link url and title are required")
)

// Webhook errors.
var (
	ErrWebhookInvalidSignature = errors.New("invalid webhook signature")
	ErrWebhookInvalidPayload   = errors.New("invalid webhook payload")
	ErrWebhookEventUnknown     = errors.New("unknown webhook event type")
)

// IsNotFound reports whether the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return trackerhttp.IsNotFound(err)
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return trackerhttp.IsUnauthorized(err)
}

// IsForbidden reports whether the error indicates permission was denied.
func IsForbidden(err error) bool {
	return trackerhttp.IsForbidden(err)
}

// IsRateLimited reports whether the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return trackerhttp.IsRateLimited(err)
}

// IsRetryable reports whether the error is transient and should be retried.
func IsRetryable(err error) bool {
	return trackerhttp.IsRetryable(err)
}
