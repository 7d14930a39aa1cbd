package jira

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/trackerkit/testutil"
	"github.com/randalmurphal/trackerkit/ticket"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhookSignature(t *testing.T) {
	const secret = "webhook-secret"
	body := []byte(`{"webhookEvent":"jira:issue_created"}`)
	valid := sign(body, secret)

	tests := []struct {
		name      string
		signature string
		secret    string
		want      bool
	}{
		{"valid with prefix", "sha256=" + valid, secret, true},
		{"valid without prefix", valid, secret, true},
		{"valid upper case", strings.ToUpper(valid), secret, true},
		{"empty signature", "", secret, false},
		{"empty secret", valid, "", false},
		{"wrong secret", valid, "other", false},
		{"garbage", "sha256=invalid", secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateWebhookSignature(body, tt.signature, tt.secret))
		})
	}
}

const issueUpdatedEvent = `{
	"timestamp": 1736937000000,
	"webhookEvent": "jira:issue_updated",
	"user": {"accountId": "acc-1", "displayName": "Ada"},
	"issue": {
		"id": "10001",
		"key": "PROJ-1",
		"fields": {"summary": "Login fails", "status": {"name": "Done", "statusCategory": {"key": "done"}}}
	},
	"changelog": {
		"id": "42",
		"items": [
			{"field": "status", "fieldtype": "jira", "fromString": "In Progress", "toString": "Done"},
			{"field": "resolution", "fieldtype": "jira", "toString": "Fixed"}
		]
	}
}`

func TestHandleWebhook_InvalidatesIssue(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)

	ev, err := c.HandleWebhook([]byte(issueUpdatedEvent))
	require.NoError(t, err)

	assert.Equal(t, WebhookEventIssueUpdated, ev.Type)
	require.NotNil(t, ev.Issue)
	assert.Equal(t, ticket.CategoryDone, ev.Issue.Status.Category)
	assert.Equal(t, "Ada", ev.User.DisplayName)
	assert.Equal(t, []string{"status", "resolution"}, ev.Changelog.Fields())

	from, to, ok := ev.StatusChange()
	assert.True(t, ok)
	assert.Equal(t, "In Progress", from)
	assert.Equal(t, "Done", to)

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestHandleWebhook_Errors(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"not json", `nope`, ErrWebhookInvalidPayload},
		{"missing event", `{"issue":{"id":"1","key":"A-1"}}`, ErrWebhookInvalidPayload},
		{"issue without key", `{"webhookEvent":"jira:issue_created","issue":{"id":"1"}}`, ErrWebhookInvalidPayload},
		{"unknown event", `{"webhookEvent":"board_created"}`, ErrWebhookEventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.HandleWebhook([]byte(tt.body))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHandleWebhook_LinkEvent(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	ev, err := c.HandleWebhook([]byte(`{"webhookEvent":"issuelink_created","issueLink":{"id":5,"sourceIssueId":10001,"destinationIssueId":10002}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10002"}, ev.IssueRefs)
	assert.Nil(t, ev.Issue)
}

func TestHandleWebhook_LinkEventInvalidatesByKey(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)

	ev, err := c.HandleWebhook([]byte(`{"webhookEvent":"issuelink_deleted","issueLink":{"id":5,"sourceIssueId":10001,"destinationIssueId":10002}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ-1", "10002"}, ev.IssueRefs)

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestWebhookHandler(t *testing.T) {
	const secret = "s3cret"
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	var got []*WebhookEvent
	h := c.WebhookHandler(secret, func(_ context.Context, ev *WebhookEvent) error {
		got = append(got, ev)
		return nil
	})

	post := func(body, signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/hooks/jira", strings.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Hub-Signature-256", signature)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post(issueUpdatedEvent, "sha256="+sign([]byte(issueUpdatedEvent), secret)))
	assert.Equal(t, http.StatusUnauthorized, post(issueUpdatedEvent, "sha256=bad"))
	assert.Equal(t, http.StatusUnauthorized, post(issueUpdatedEvent, ""))

	unknown := `{"webhookEvent":"sprint_started"}`
	assert.Equal(t, http.StatusAccepted, post(unknown, sign([]byte(unknown), secret)))

	malformed := `{"issue":{}}`
	assert.Equal(t, http.StatusBadRequest, post(malformed, sign([]byte(malformed), secret)))

	require.Len(t, got, 1)
	assert.Equal(t, "PROJ-1", got[0].Issue.Key)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hooks/jira", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
