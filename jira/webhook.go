package jira

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/randalmurphal/trackerkit/ticket"
)

// maxWebhookBody bounds how much of a delivery is read.
const maxWebhookBody = 1 << 20

// WebhookEventType is the webhookEvent field of a delivery.
type WebhookEventType string

const (
	WebhookEventIssueCreated   WebhookEventType = "jira:issue_created"
	WebhookEventIssueUpdated   WebhookEventType = "jira:issue_updated"
	WebhookEventIssueDeleted   WebhookEventType = "jira:issue_deleted"
	WebhookEventCommentCreated WebhookEventType = "comment_created"
	WebhookEventCommentUpdated WebhookEventType = "comment_updated"
	WebhookEventCommentDeleted WebhookEventType = "comment_deleted"
	WebhookEventLinkCreated    WebhookEventType = "issuelink_created"
	WebhookEventLinkDeleted    WebhookEventType = "issuelink_deleted"
)

// Known reports whether the event type is one the client reacts to.
func (t WebhookEventType) Known() bool {
	switch t {
	case WebhookEventIssueCreated, WebhookEventIssueUpdated, WebhookEventIssueDeleted,
		WebhookEventCommentCreated, WebhookEventCommentUpdated, WebhookEventCommentDeleted,
		WebhookEventLinkCreated, WebhookEventLinkDeleted:
		return true
	}
	return false
}

// WebhookSignatureHeaders are the headers a signature may arrive in.
var WebhookSignatureHeaders = []string{
	"X-Hub-Signature-256",
	"X-Atlassian-Webhook-Signature",
}

// webhookPayload is the wire form of a delivery.
type webhookPayload struct {
	Timestamp    int64            `json:"timestamp"`
	WebhookEvent WebhookEventType `json:"webhookEvent"`
	User         *User            `json:"user,omitempty"`
	Issue        *Issue           `json:"issue,omitempty"`
	Comment      *Comment         `json:"comment,omitempty"`
	IssueLink    *struct {
		SourceIssueID      json.Number `json:"sourceIssueId"`
		DestinationIssueID json.Number `json:"destinationIssueId"`
	} `json:"issueLink,omitempty"`
	Changelog *Changelog `json:"changelog,omitempty"`
}

// WebhookEvent is a normalized delivery.
type WebhookEvent struct {
	Type      WebhookEventType
	Timestamp int64
	User      *ticket.User
	Issue     *ticket.Issue
	Comment   *ticket.Comment
	Changelog *Changelog

	// IssueRefs are the keys of every issue the event touches. Link events
	// carry only ids; those resolve to keys when the client has seen them.
	IssueRefs []string
}

// Changelog lists the fields an issue update changed.
type Changelog struct {
	ID    string          `json:"id"`
	Items []ChangelogItem `json:"items"`
}

// ChangelogItem is a single field change.
type ChangelogItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype"`
	FieldID    string `json:"fieldId,omitempty"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// Change returns the change for field, or nil.
func (c *Changelog) Change(field string) *ChangelogItem {
	if c == nil {
		return nil
	}
	for i := range c.Items {
		if strings.EqualFold(c.Items[i].Field, field) {
			return &c.Items[i]
		}
	}
	return nil
}

// Fields returns the names of the changed fields.
func (c *Changelog) Fields() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, item.Field)
	}
	return out
}

// StatusChange returns the status transition carried by the event, if any.
func (e *WebhookEvent) StatusChange() (from, to string, ok bool) {
	item := e.Changelog.Change("status")
	if item == nil {
		return "", "", false
	}
	return item.FromString, item.ToString, true
}

// ValidateWebhookSignature checks an HMAC-SHA256 signature, with or without
// the "sha256=" prefix.
func ValidateWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// HandleWebhook validates and normalizes a delivery, then drops cached
// reads for every issue it touches. Unknown event types return
// ErrWebhookEventUnknown without touching the cache.
func (c *Client) HandleWebhook(body []byte) (*WebhookEvent, error) {
	if err := c.shapes.Validate(shapeWebhookEvent, body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWebhookInvalidPayload, err)
	}
	var raw webhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWebhookInvalidPayload, err)
	}
	if !raw.WebhookEvent.Known() {
		return nil, fmt.Errorf("%w: %s", ErrWebhookEventUnknown, raw.WebhookEvent)
	}

	norm := c.normalizer()
	ev := &WebhookEvent{
		Type:      raw.WebhookEvent,
		Timestamp: raw.Timestamp,
		User:      norm.User(raw.User),
		Changelog: raw.Changelog,
	}
	if raw.Issue != nil {
		issue := norm.Issue(*raw.Issue)
		ev.Issue = &issue
		c.rememberIssue(raw.Issue.ID, raw.Issue.Key)
		ev.IssueRefs = append(ev.IssueRefs, raw.Issue.Key)
	}
	if raw.Comment != nil {
		comment := norm.Comment(*raw.Comment)
		ev.Comment = &comment
	}
	if raw.IssueLink != nil {
		for _, id := range []json.Number{raw.IssueLink.SourceIssueID, raw.IssueLink.DestinationIssueID} {
			if id == "" {
				continue
			}
			ref := id.String()
			if key, ok := c.issueKeys.Load(ref); ok {
				ref = key.(string)
			}
			ev.IssueRefs = append(ev.IssueRefs, ref)
		}
	}

	c.invalidateIssues(ev.IssueRefs...)
	c.logger.Debug("webhook handled", "event", string(ev.Type), "issues", ev.IssueRefs)
	return ev, nil
}

// WebhookHandler serves webhook deliveries. When secret is set, deliveries
// must carry a valid signature. fn, if non-nil, receives each known event.
func (c *Client) WebhookHandler(secret string, fn func(context.Context, *WebhookEvent) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		if secret != "" && !signedBy(r.Header, body, secret) {
			c.logger.Warn("webhook rejected", "error", ErrWebhookInvalidSignature)
			http.Error(w, ErrWebhookInvalidSignature.Error(), http.StatusUnauthorized)
			return
		}

		ev, err := c.HandleWebhook(body)
		switch {
		case errors.Is(err, ErrWebhookEventUnknown):
			w.WriteHeader(http.StatusAccepted)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if fn != nil {
			if err := fn(r.Context(), ev); err != nil {
				c.logger.Error("webhook callback failed", "event", string(ev.Type), "error", err)
				http.Error(w, "callback failed", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func signedBy(h http.Header, body []byte, secret string) bool {
	for _, name := range WebhookSignatureHeaders {
		if ValidateWebhookSignature(body, h.Get(name), secret) {
			return true
		}
	}
	return false
}
