package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/cache"
	"github.com/randalmurphal/trackerkit/document"
	"github.com/randalmurphal/trackerkit/schema"
	"github.com/randalmurphal/trackerkit/testutil"
	"github.com/randalmurphal/trackerkit/ticket"
)

func newTestClient(t *testing.T, srv *testutil.Server, mutate func(*Config), opts ...Option) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.APIVersion = APIVersionV3
	cfg.Auth = auth.Credentials{Scheme: auth.SchemeAPIToken, Email: "bot@example.com", Token: "tok"}
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.RateLimit.MaxRetries = 1
	cfg.RateLimit.RetryWaitMin = time.Millisecond
	cfg.RateLimit.RetryWaitMax = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

// fakeClock is a settable clock for cache expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func decodeBody(t *testing.T, r testutil.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m))
	return m
}

const issuePath = "/rest/api/3/issue/PROJ-1"

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigURLRequired)

	_, err = New(&Config{URL: "https://x.example.com"})
	assert.ErrorIs(t, err, auth.ErrSchemeRequired)
}

func TestNew_InvalidURL(t *testing.T) {
	creds := auth.Credentials{Scheme: auth.SchemeBearer, Token: "tok"}
	for _, raw := range []string{"://jira", "ftp://jira.example.com", "https://", "http://jira.example.com/%zz"} {
		t.Run(raw, func(t *testing.T) {
			c, err := New(&Config{URL: raw, Auth: creds})
			assert.ErrorIs(t, err, ErrConfigURLInvalid)
			assert.Nil(t, c)
		})
	}
}

func TestGetIssue_CachedUntilWrite(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	srv.JSON(http.MethodPut, issuePath, http.StatusNoContent, nil)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	for range 3 {
		issue, err := c.GetIssue(ctx, "PROJ-1")
		require.NoError(t, err)
		require.NotNil(t, issue)
		assert.Equal(t, "Login fails on Safari", issue.Summary)
	}
	assert.Equal(t, 1, srv.Calls(http.MethodGet, issuePath))

	summary := "Login fails on all browsers"
	require.NoError(t, c.UpdateIssue(ctx, "PROJ-1", IssuePatch{Summary: &summary, AddLabels: []string{"p1"}}))

	put, ok := srv.Last(http.MethodPut, issuePath)
	require.True(t, ok)
	body := decodeBody(t, put)
	assert.Equal(t, summary, body["fields"].(map[string]any)["summary"])
	assert.Equal(t, []any{map[string]any{"add": "p1"}}, body["update"].(map[string]any)["labels"])

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestGetIssue_ByIDIsNotCached(t *testing.T) {
	const idPath = "/rest/api/3/issue/10001"
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, idPath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	srv.JSON(http.MethodPut, idPath, http.StatusNoContent, nil)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	for range 2 {
		issue, err := c.GetIssue(ctx, "10001")
		require.NoError(t, err)
		assert.Equal(t, "PROJ-1", issue.Key)
	}
	assert.Equal(t, 2, srv.Calls(http.MethodGet, idPath))

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	summary := "renamed"
	require.NoError(t, c.UpdateIssue(ctx, "10001", IssuePatch{Summary: &summary}))

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestInvalidate_UnknownIDDropsIssueReads(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	c.invalidateIssues("99999")

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestGetIssue_CacheExpires(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestClient(t, srv, nil, WithClock(clock.Now))
	ctx := testutil.TestContext(t)

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(http.MethodGet, issuePath))

	clock.Advance(2 * time.Minute)
	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestGetIssue_NotFoundIsNil(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	issue, err := c.GetIssue(testutil.TestContext(t), "PROJ-404")
	require.NoError(t, err)
	assert.Nil(t, issue)
}

func TestGetIssue_InvalidKey(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	_, err := c.GetIssue(testutil.TestContext(t), "../admin")
	assert.ErrorIs(t, err, ErrIssueKeyInvalid)
	assert.Empty(t, srv.Requests())
}

func TestGetIssue_UnexpectedShapeIsNotCached(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, `{"id": "1"}`)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	for range 2 {
		_, err := c.GetIssue(ctx, "PROJ-1")
		assert.ErrorIs(t, err, schema.ErrSchema)
	}
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestGetIssue_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no fields", `{"id":"1","key":"PROJ-1"}`},
		{"empty fields", `{"id":"1","key":"PROJ-1","fields":{}}`},
		{"no status", `{"id":"1","key":"PROJ-1","fields":{"summary":"s"}}`},
		{"null status", `{"id":"1","key":"PROJ-1","fields":{"summary":"s","status":null}}`},
		{"no summary", `{"id":"1","key":"PROJ-1","fields":{"status":{"name":"Open"}}}`},
		{"null summary", `{"id":"1","key":"PROJ-1","fields":{"summary":null,"status":{"name":"Open"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewServer(t)
			srv.JSON(http.MethodGet, issuePath, http.StatusOK, tt.body)
			c := newTestClient(t, srv, nil)

			issue, err := c.GetIssue(testutil.TestContext(t), "PROJ-1")
			assert.ErrorIs(t, err, schema.ErrSchema)
			assert.Nil(t, issue)
		})
	}
}

func TestSearchIssues_CustomFieldsKeepRequired(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, pagedIssues(1))
	c := newTestClient(t, srv, nil)

	_, err := c.SearchIssues(testutil.TestContext(t), SearchQuery{JQL: "project = PROJ", Fields: []string{"labels"}})
	require.NoError(t, err)

	req, ok := srv.Last(http.MethodPost, path)
	require.True(t, ok)
	assert.Equal(t, []any{"labels", "summary", "status"}, decodeBody(t, req)["fields"])
}

func TestGetIssue_AuthHeader(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)

	_, err := c.GetIssue(testutil.TestContext(t), "PROJ-1")
	require.NoError(t, err)

	req, ok := srv.Last(http.MethodGet, issuePath)
	require.True(t, ok)
	assert.Contains(t, req.Header.Get("Authorization"), "Basic ")
}

// pagedIssues serves n issues through the cursor search endpoint.
func pagedIssues(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MaxResults    int    `json:"maxResults"`
			NextPageToken string `json:"nextPageToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		start, _ := strconv.Atoi(req.NextPageToken)

		issues := []map[string]any{}
		for i := start; i < n && i < start+req.MaxResults; i++ {
			issues = append(issues, map[string]any{
				"id":     strconv.Itoa(1000 + i),
				"key":    fmt.Sprintf("PROJ-%d", i+1),
				"fields": map[string]any{
					"summary": fmt.Sprintf("issue %d", i+1),
					"status":  map[string]any{"name": "To Do", "statusCategory": map[string]any{"key": "new"}},
				},
			})
		}
		next := start + len(issues)
		page := map[string]any{"issues": issues, "isLast": next >= n}
		if next < n {
			page["nextPageToken"] = strconv.Itoa(next)
		}
		testutil.WriteJSON(w, http.StatusOK, page)
	}
}

func TestSearchIssues_CursorPages(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, pagedIssues(110))
	c := newTestClient(t, srv, nil)

	issues, err := c.SearchIssues(testutil.TestContext(t), SearchQuery{Statuses: []string{"To Do", "In Progress"}})
	require.NoError(t, err)

	assert.Len(t, issues, 110)
	assert.Equal(t, "PROJ-1", issues[0].Key)
	assert.Equal(t, "PROJ-110", issues[109].Key)
	assert.Equal(t, 3, srv.Calls(http.MethodPost, path))

	first := decodeBody(t, srv.Requests()[0])
	assert.Equal(t, `status in ("To Do", "In Progress") ORDER BY updated DESC`, first["jql"])
	assert.EqualValues(t, 50, first["maxResults"])
}

func TestSearchIssues_RepeatedSearchIsCached(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, pagedIssues(10))
	srv.JSON(http.MethodPut, issuePath+"/assignee", http.StatusNoContent, nil)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	q := SearchQuery{Projects: []string{"PROJ"}}
	_, err := c.SearchIssues(ctx, q)
	require.NoError(t, err)
	_, err = c.SearchIssues(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, path))

	require.NoError(t, c.AssignIssue(ctx, "PROJ-1", ""))
	req, _ := srv.Last(http.MethodPut, issuePath+"/assignee")
	assert.JSONEq(t, `{"accountId":null}`, string(req.Body))
	_, err = c.SearchIssues(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodPost, path))
}

func TestSearchIssues_Ceiling(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, pagedIssues(10_000))
	c := newTestClient(t, srv, func(cfg *Config) { cfg.Pagination.ItemCeiling = 120 })
	ctx := testutil.TestContext(t)

	issues, err := c.SearchIssues(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, issues, 120)

	capped, err := c.SearchIssues(ctx, SearchQuery{JQL: "project = PROJ", MaxResults: 7})
	require.NoError(t, err)
	assert.Len(t, capped, 7)
}

func TestSearchIssues_MaxResultsCannotLiftCeiling(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	tests := []struct {
		name       string
		maxResults int
	}{
		{"above ceiling", 3000},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewServer(t)
			srv.Handle(http.MethodPost, path, pagedIssues(5000))
			c := newTestClient(t, srv, func(cfg *Config) { cfg.Pagination.ItemCeiling = 120 })

			issues, err := c.SearchIssues(testutil.TestContext(t), SearchQuery{JQL: "project = PROJ", MaxResults: tt.maxResults})
			require.NoError(t, err)
			assert.Len(t, issues, 120)
		})
	}
}

func TestSearchIssuesSeq_StopsEarly(t *testing.T) {
	const path = "/rest/api/3/search/jql"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, pagedIssues(500))
	c := newTestClient(t, srv, nil)

	var keys []string
	for issue, err := range c.SearchIssuesSeq(testutil.TestContext(t), SearchQuery{}) {
		require.NoError(t, err)
		keys = append(keys, issue.Key)
		if len(keys) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3"}, keys)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, path))
}

func TestSearchIssues_OffsetOnV2(t *testing.T) {
	const path = "/rest/api/2/search"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, path, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StartAt    int `json:"startAt"`
			MaxResults int `json:"maxResults"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		issues := []map[string]any{}
		for i := req.StartAt; i < 75 && i < req.StartAt+req.MaxResults; i++ {
			issues = append(issues, map[string]any{
				"id":     strconv.Itoa(i),
				"key":    fmt.Sprintf("OPS-%d", i+1),
				"fields": map[string]any{"summary": "s", "status": map[string]any{"name": "Open"}},
			})
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"startAt": req.StartAt, "maxResults": req.MaxResults, "total": 75, "issues": issues,
		})
	})
	c := newTestClient(t, srv, func(cfg *Config) { cfg.APIVersion = APIVersionV2 })

	issues, err := c.SearchIssues(testutil.TestContext(t), SearchQuery{Projects: []string{"OPS"}})
	require.NoError(t, err)
	assert.Len(t, issues, 75)
	assert.Equal(t, 2, srv.Calls(http.MethodPost, path))
}

func TestCreateIssue(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodPost, "/rest/api/3/issue", http.StatusCreated, `{"id":"10001","key":"PROJ-1","self":"x"}`)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)

	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	issue, err := c.CreateIssue(testutil.TestContext(t), IssueInput{
		Project:     "PROJ",
		Type:        "Bug",
		Summary:     "Login fails on Safari",
		Description: document.FromMarkdown("Steps **here**"),
		Labels:      []string{"ui", "ui"},
		Assignee:    "acc-1",
		DueDate:     &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", issue.Key)

	req, ok := srv.Last(http.MethodPost, "/rest/api/3/issue")
	require.True(t, ok)
	fields := decodeBody(t, req)["fields"].(map[string]any)
	assert.Equal(t, map[string]any{"key": "PROJ"}, fields["project"])
	assert.Equal(t, "doc", fields["description"].(map[string]any)["type"])
	assert.Equal(t, []any{"ui"}, fields["labels"])
	assert.Equal(t, map[string]any{"accountId": "acc-1"}, fields["assignee"])
	assert.Equal(t, "2025-02-01", fields["duedate"])
}

func TestCreateIssue_WikiDescriptionOnV2(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodPost, "/rest/api/2/issue", http.StatusCreated, `{"id":"20001","key":"OPS-7"}`)
	c := newTestClient(t, srv, func(cfg *Config) { cfg.APIVersion = APIVersionV2 })

	issue, err := c.CreateIssue(testutil.TestContext(t), IssueInput{
		Project:     "OPS",
		Type:        "Task",
		Summary:     "Disk full",
		Description: document.NewDoc(document.Paragraph(document.Bold("full"))),
		Assignee:    "jsmith",
	})
	require.NoError(t, err)
	// The read-back 404s, so the create response is reported.
	assert.Equal(t, "OPS-7", issue.Key)
	assert.Equal(t, ticket.CategoryNew, issue.Status.Category)

	req, ok := srv.Last(http.MethodPost, "/rest/api/2/issue")
	require.True(t, ok)
	fields := decodeBody(t, req)["fields"].(map[string]any)
	assert.Contains(t, fields["description"], "*full*")
	assert.NotContains(t, fields["description"], "**")
	assert.Equal(t, map[string]any{"name": "jsmith"}, fields["assignee"])
}

func TestCreateIssue_Validation(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.CreateIssue(ctx, IssueInput{Type: "Bug", Summary: "x"})
	assert.ErrorIs(t, err, ErrProjectRequired)
	_, err = c.CreateIssue(ctx, IssueInput{Project: "P", Summary: "x"})
	assert.ErrorIs(t, err, ErrIssueTypeMissing)
	_, err = c.CreateIssue(ctx, IssueInput{Project: "P", Type: "Bug", Summary: "  "})
	assert.ErrorIs(t, err, ErrSummaryRequired)
	assert.Empty(t, srv.Requests())
}

func TestUpdateIssue_EmptyPatch(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	err := c.UpdateIssue(testutil.TestContext(t), "PROJ-1", IssuePatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestTransitionIssueByName(t *testing.T) {
	const path = "/rest/api/3/issue/PROJ-1/transitions"
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, path, http.StatusOK, `{"transitions":[
		{"id":"11","name":"Start work","to":{"name":"In Progress","statusCategory":{"key":"indeterminate"}}},
		{"id":"31","name":"Finish","to":{"name":"Done","statusCategory":{"key":"done"}}}
	]}`)
	srv.JSON(http.MethodPost, path, http.StatusNoContent, nil)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	require.NoError(t, c.TransitionIssueByName(ctx, "PROJ-1", "done"))
	req, ok := srv.Last(http.MethodPost, path)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "31"}, decodeBody(t, req)["transition"])

	require.NoError(t, c.TransitionIssueByName(ctx, "PROJ-1", "START WORK"))
	req, _ = srv.Last(http.MethodPost, path)
	assert.Equal(t, map[string]any{"id": "11"}, decodeBody(t, req)["transition"])

	err := c.TransitionIssueByName(ctx, "PROJ-1", "Reopen")
	assert.ErrorIs(t, err, ErrTransitionNotFound)
	assert.Contains(t, err.Error(), "Start work, Finish")
}

func TestComments(t *testing.T) {
	const path = "/rest/api/3/issue/PROJ-1/comment"
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, path, http.StatusOK, `{"startAt":0,"maxResults":50,"total":2,"comments":[
		{"id":"1","body":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"first"}]}]}},
		{"id":"2","body":"second"}
	]}`)
	srv.JSON(http.MethodPost, path, http.StatusCreated, `{"id":"3","author":{"accountId":"acc-1","displayName":"Ada"}}`)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	comments, err := c.GetComments(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", document.ToPlainText(comments[0].Body))
	assert.Equal(t, "second", document.ToPlainText(comments[1].Body))

	_, err = c.AddComment(ctx, "PROJ-1", document.NewDoc())
	assert.ErrorIs(t, err, ErrCommentEmpty)

	added, err := c.AddComment(ctx, "PROJ-1", document.FromPlainText("third"))
	require.NoError(t, err)
	assert.Equal(t, "3", added.ID)
	req, _ := srv.Last(http.MethodPost, path)
	assert.Equal(t, "doc", decodeBody(t, req)["body"].(map[string]any)["type"])
}

func TestLinks(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/api/3/issueLinkType", http.StatusOK,
		`{"issueLinkTypes":[{"id":"1","name":"Blocks","inward":"is blocked by","outward":"blocks"}]}`)
	srv.JSON(http.MethodPost, "/rest/api/3/issueLink", http.StatusCreated, nil)
	srv.JSON(http.MethodGet, "/rest/api/3/issueLink/500", http.StatusOK,
		`{"id":"500","type":{"name":"Blocks"},"inwardIssue":{"id":"2","key":"PROJ-2"},"outwardIssue":{"id":"1","key":"PROJ-1"}}`)
	srv.JSON(http.MethodDelete, "/rest/api/3/issueLink/500", http.StatusNoContent, nil)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	types, err := c.GetLinkTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "blocks", types[0].Outward)

	err = c.CreateLink(ctx, LinkInput{Type: "Blocks", Outward: "PROJ-1", Inward: "PROJ-2"})
	require.NoError(t, err)
	req, _ := srv.Last(http.MethodPost, "/rest/api/3/issueLink")
	body := decodeBody(t, req)
	assert.Equal(t, map[string]any{"key": "PROJ-1"}, body["outwardIssue"])
	assert.Equal(t, map[string]any{"key": "PROJ-2"}, body["inwardIssue"])

	assert.ErrorIs(t, c.CreateLink(ctx, LinkInput{Outward: "PROJ-1", Inward: "PROJ-2"}), ErrLinkTypeRequired)

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	require.NoError(t, c.DeleteLink(ctx, "500"))
	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, issuePath))
}

func TestLinks_UnexpectedShape(t *testing.T) {
	const remotePath = "/rest/api/3/issue/PROJ-1/remotelink"
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/api/3/issueLink/500", http.StatusOK, `{"id":"500"}`)
	srv.JSON(http.MethodDelete, "/rest/api/3/issueLink/500", http.StatusNoContent, nil)
	srv.JSON(http.MethodPost, remotePath, http.StatusCreated, `{"self":"x"}`)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	assert.ErrorIs(t, c.DeleteLink(ctx, "500"), schema.ErrSchema)
	assert.Zero(t, srv.Calls(http.MethodDelete, "/rest/api/3/issueLink/500"))

	added, err := c.AddRemoteLink(ctx, "PROJ-1", ticket.RemoteLink{URL: "https://git.example.com/pr/9", Title: "PR 9"})
	assert.ErrorIs(t, err, schema.ErrSchema)
	assert.Nil(t, added)
}

func TestRemoteLinks(t *testing.T) {
	const path = "/rest/api/3/issue/PROJ-1/remotelink"
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodPost, path, http.StatusCreated, `{"id":77,"self":"x"}`)
	srv.JSON(http.MethodGet, path, http.StatusOK,
		`[{"id":77,"globalId":"pr-9","object":{"url":"https://git.example.com/pr/9","title":"PR 9"}}]`)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.AddRemoteLink(ctx, "PROJ-1", ticket.RemoteLink{Title: "no url"})
	assert.ErrorIs(t, err, ErrRemoteLinkURL)

	added, err := c.AddRemoteLink(ctx, "PROJ-1", ticket.RemoteLink{
		GlobalID: "pr-9", URL: "https://git.example.com/pr/9", Title: "PR 9",
	})
	require.NoError(t, err)
	assert.Equal(t, 77, added.ID)

	links, err := c.GetRemoteLinks(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://git.example.com/pr/9", links[0].URL)
}

func TestProjects(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/rest/api/3/project/search", func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		values := []map[string]any{}
		for i := start; i < 3 && i < start+2; i++ {
			values = append(values, map[string]any{"id": strconv.Itoa(i), "key": fmt.Sprintf("P%d", i)})
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"values": values, "isLast": start+2 >= 3, "total": 3})
	})
	srv.JSON(http.MethodGet, "/rest/api/3/project/PROJ", http.StatusOK,
		`{"id":"100","key":"PROJ","name":"Project","lead":{"accountId":"acc-1","displayName":"Ada"}}`)
	c := newTestClient(t, srv, func(cfg *Config) { cfg.Pagination.PageSize = 2 })
	ctx := testutil.TestContext(t)

	projects, err := c.GetProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 3)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, "/rest/api/3/project/search"))

	p, err := c.GetProject(ctx, "PROJ")
	require.NoError(t, err)
	require.NotNil(t, p.Lead)
	assert.Equal(t, "Ada", p.Lead.DisplayName)

	_, err = c.GetProject(ctx, "NOPE")
	assert.True(t, IsNotFound(err))
}

func TestUsersAndMetadata(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/api/2/user/search", http.StatusOK, `[{"name":"jsmith","displayName":"John"}]`)
	srv.JSON(http.MethodGet, "/rest/api/2/myself", http.StatusOK, `{"name":"bot","displayName":"Bot"}`)
	srv.JSON(http.MethodGet, "/rest/api/2/issuetype", http.StatusOK, `[{"id":"1","name":"Bug"},{"id":"5","name":"Sub-task","subtask":true}]`)
	srv.JSON(http.MethodGet, "/rest/api/2/priority", http.StatusOK, `[{"id":"1","name":"Highest"}]`)
	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.APIVersion = APIVersionV2
		cfg.Auth = auth.Credentials{Scheme: auth.SchemePAT, Token: "pat"}
	})
	ctx := testutil.TestContext(t)

	users, err := c.GetUsers(ctx, "john")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jsmith", users[0].ID)
	req, _ := srv.Last(http.MethodGet, "/rest/api/2/user/search")
	assert.Equal(t, "john", req.Query.Get("username"))
	assert.Equal(t, "Bearer pat", req.Header.Get("Authorization"))

	me, err := c.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bot", me.ID)

	types, err := c.GetIssueTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.True(t, types[1].Subtask)

	priorities, err := c.GetPriorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Highest", priorities[0].Name)
}

// pagedBoards serves n boards with offset paging.
func pagedBoards(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.Atoi(q.Get("startAt"))
		size, _ := strconv.Atoi(q.Get("maxResults"))
		values := []map[string]any{}
		for i := start; i < n && i < start+size; i++ {
			values = append(values, map[string]any{"id": i + 1, "name": fmt.Sprintf("Board %d", i+1), "type": "scrum"})
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"startAt": start, "maxResults": size, "isLast": start+len(values) >= n, "values": values,
		})
	}
}

func TestGetBoards_Pages(t *testing.T) {
	const path = "/rest/agile/1.0/board"
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, path, pagedBoards(110))
	c := newTestClient(t, srv, nil)

	boards, err := c.GetBoards(testutil.TestContext(t), "")
	require.NoError(t, err)
	assert.Len(t, boards, 110)

	pages := 0
	for _, r := range srv.Requests() {
		if r.Path == path && r.Query.Has("startAt") {
			pages++
		}
	}
	assert.Equal(t, 3, pages)
	assert.True(t, c.Capabilities()["agile"].Available)
}

func TestAgile_UnavailableProbedOnce(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	for range 3 {
		boards, err := c.GetBoards(ctx, "PROJ")
		require.NoError(t, err)
		assert.Empty(t, boards)
		assert.NotNil(t, boards)
	}
	sprints, err := c.GetSprints(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, sprints)

	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/rest/agile/1.0/board"))
	assert.Len(t, srv.Requests(), 1)
	assert.Equal(t, "not-deployed", string(c.Capabilities()["agile"].Reason))
}

func TestAgile_TransientProbeFailureSurfaces(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/agile/1.0/board", http.StatusServiceUnavailable, `{"errorMessages":["down"]}`)
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.GetBoards(ctx, "")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Empty(t, c.Capabilities())

	srv.Handle(http.MethodGet, "/rest/agile/1.0/board", pagedBoards(1))
	boards, err := c.GetBoards(ctx, "")
	require.NoError(t, err)
	assert.Len(t, boards, 1)
}

func TestGetSprints(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/rest/agile/1.0/board", pagedBoards(1))
	srv.JSON(http.MethodGet, "/rest/agile/1.0/board/1/sprint", http.StatusOK,
		`{"isLast":true,"values":[{"id":5,"name":"Sprint 5","state":"active","startDate":"2025-01-06T09:00:00.000Z"}]}`)
	c := newTestClient(t, srv, nil)

	sprints, err := c.GetSprints(testutil.TestContext(t), 1, ticket.SprintActive, ticket.SprintFuture)
	require.NoError(t, err)
	require.Len(t, sprints, 1)
	assert.Equal(t, ticket.SprintActive, sprints[0].State)
	assert.Equal(t, 1, sprints[0].BoardID)

	req, _ := srv.Last(http.MethodGet, "/rest/agile/1.0/board/1/sprint")
	assert.Equal(t, "active,future", req.Query.Get("state"))
}

func TestDetectDeployment(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/api/3/serverInfo", http.StatusNotFound, nil)
	srv.JSON(http.MethodGet, "/rest/api/2/serverInfo", http.StatusOK,
		`{"baseUrl":"https://jira.example.com","version":"9.12.0","deploymentType":"Server"}`)
	c := newTestClient(t, srv, func(cfg *Config) { cfg.APIVersion = APIVersionAuto })

	assert.Equal(t, APIVersionV3, c.APIVersionInUse())
	dt, err := c.DetectDeployment(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, DeploymentServer, dt)
	assert.False(t, c.IsCloud())
	assert.Equal(t, APIVersionV2, c.APIVersionInUse())
	assert.Equal(t, "9.12.0", c.ServerInfoCached().Version)

	req, _ := srv.Last(http.MethodGet, "/rest/api/2/serverInfo")
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestDetectDeployment_PinnedVersionKept(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, "/rest/api/3/serverInfo", http.StatusOK,
		`{"version":"1001.0.0","deploymentType":"Cloud"}`)
	c := newTestClient(t, srv, func(cfg *Config) { cfg.APIVersion = APIVersionV2 })

	_, err := c.DetectDeployment(testutil.TestContext(t))
	require.NoError(t, err)
	assert.True(t, c.IsCloud())
	assert.Equal(t, APIVersionV2, c.APIVersionInUse())
}

func TestWithCache_ScopedByServerAndCredentials(t *testing.T) {
	shared := cache.New()
	first := testutil.NewServer(t)
	first.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	second := testutil.NewServer(t)
	second.JSON(http.MethodGet, issuePath, http.StatusOK,
		`{"id":"20001","key":"PROJ-1","fields":{"summary":"Other server","status":{"name":"Open"}}}`)
	ctx := testutil.TestContext(t)

	a := newTestClient(t, first, nil, WithCache(shared))
	b := newTestClient(t, second, nil, WithCache(shared))
	other := newTestClient(t, first, func(cfg *Config) { cfg.Auth.Token = "other" }, WithCache(shared))

	got, err := a.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "Login fails on Safari", got.Summary)

	got, err = b.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "Other server", got.Summary)

	_, err = other.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Calls(http.MethodGet, issuePath))
	assert.Equal(t, 1, second.Calls(http.MethodGet, issuePath))

	_, err = a.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Calls(http.MethodGet, issuePath))
	assert.Equal(t, 3, shared.Len())
}

func TestReload_ClearsCacheAndCapabilities(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)
	ctx := testutil.TestContext(t)

	_, err := c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	_, err = c.GetBoards(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, c.Capabilities())

	require.NoError(t, c.Reload(auth.Credentials{Scheme: auth.SchemeBearer, Token: "new"}))
	assert.Empty(t, c.Capabilities())
	assert.Zero(t, c.Cache().Len())

	_, err = c.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	req, _ := srv.Last(http.MethodGet, issuePath)
	assert.Equal(t, "Bearer new", req.Header.Get("Authorization"))

	assert.ErrorIs(t, c.Reload(auth.Credentials{Scheme: auth.SchemeBearer}), auth.ErrBearerAuth)
}

func TestCancelledContext(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.JSON(http.MethodGet, issuePath, http.StatusOK, testutil.LoadFixture(t, "issue_v3.json"))
	c := newTestClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetIssue(ctx, "PROJ-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestContextWithClient(t *testing.T) {
	srv := testutil.NewServer(t)
	c := newTestClient(t, srv, nil)

	ctx := ContextWithClient(context.Background(), c)
	assert.Same(t, c, ClientFromContext(ctx))
	assert.Nil(t, ClientFromContext(context.Background()))
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, IsUnauthorized},
		{http.StatusForbidden, IsForbidden},
		{http.StatusTooManyRequests, IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := testutil.NewServer(t)
			srv.JSON(http.MethodGet, "/rest/api/3/myself", tt.status, `{"errorMessages":["nope"]}`)
			c := newTestClient(t, srv, nil)

			_, err := c.GetCurrentUser(testutil.TestContext(t))
			require.Error(t, err)
			assert.True(t, tt.check(err), "predicate false for %v", err)
			assert.False(t, IsNotFound(err))
		})
	}
}
