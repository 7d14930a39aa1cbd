package jira

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/trackerkit/document"
	"github.com/randalmurphal/trackerkit/testutil"
	"github.com/randalmurphal/trackerkit/ticket"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		key, name string
		want      ticket.StatusCategory
	}{
		{"new", "Anything", ticket.CategoryNew},
		{"indeterminate", "Whatever", ticket.CategoryInProgress},
		{"done", "Shipped", ticket.CategoryDone},
		{"", "To Do", ticket.CategoryNew},
		{"", "BACKLOG", ticket.CategoryNew},
		{"", "Resolved", ticket.CategoryDone},
		{"", "Closed", ticket.CategoryDone},
		{"", "In Review", ticket.CategoryInProgress},
		{"", "", ticket.CategoryInProgress},
		{"medium-gray", "Open", ticket.CategoryNew},
	}

	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.key, tt.name))
		})
	}
}

func TestNormalizer_IssueV3(t *testing.T) {
	raw := testutil.LoadJSONFixture[Issue](t, "issue_v3.json")
	n := NewNormalizer("https://example.atlassian.net/", APIVersionV3, nil)

	issue := n.Issue(raw)

	assert.Equal(t, "PROJ-1", issue.Key)
	assert.Equal(t, "https://example.atlassian.net/browse/PROJ-1", issue.URL)
	assert.Equal(t, ticket.CategoryInProgress, issue.Status.Category)
	assert.Equal(t, "In Review", issue.Status.Name)
	assert.Equal(t, "Bug", issue.Type.Name)
	require.NotNil(t, issue.Priority)
	assert.Equal(t, "High", issue.Priority.Name)
	require.NotNil(t, issue.Assignee)
	assert.Equal(t, "acc-1", issue.Assignee.ID)
	assert.Equal(t, "https://avatars.example.com/ada48.png", issue.Assignee.AvatarURL)
	assert.Nil(t, issue.Reporter)
	assert.Equal(t, ticket.ProjectRef{ID: "100", Key: "PROJ", Name: "Project"}, issue.Project)
	assert.Equal(t, []string{"backend", "ui"}, issue.Labels)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), issue.Created.UTC())
	require.NotNil(t, issue.DueDate)
	assert.Equal(t, "2025-02-01", issue.DueDate.Format(time.DateOnly))

	assert.Contains(t, document.ToPlainText(issue.Description), "Steps here")

	require.Len(t, issue.Subtasks, 1)
	assert.Equal(t, "PROJ-2", issue.Subtasks[0].Key)
	assert.Equal(t, ticket.CategoryNew, issue.Subtasks[0].Status.Category)

	require.Len(t, issue.Links, 2)
	assert.Equal(t, ticket.Forward, issue.Links[0].Direction)
	assert.Equal(t, "PROJ-3", issue.Links[0].LinkedIssue.Key)
	assert.Equal(t, ticket.CategoryDone, issue.Links[0].LinkedIssue.Status.Category)
	assert.Equal(t, ticket.Backward, issue.Links[1].Direction)
	assert.Equal(t, "OPS-4", issue.Links[1].LinkedIssue.Key)

	require.Len(t, issue.Attachments, 1)
	assert.Equal(t, int64(2048), issue.Attachments[0].Size)
	assert.NotNil(t, issue.Comments)
	assert.Empty(t, issue.Comments)
}

func TestNormalizer_IssueV2WikiBodies(t *testing.T) {
	raw := testutil.LoadJSONFixture[Issue](t, "issue_v2.json")
	n := NewNormalizer("https://jira.example.com", APIVersionV2, nil)

	issue := n.Issue(raw)

	assert.Equal(t, ticket.CategoryDone, issue.Status.Category)
	require.NotNil(t, issue.Assignee)
	assert.Equal(t, "jsmith", issue.Assignee.ID)
	assert.Nil(t, issue.Priority)
	assert.Nil(t, issue.DueDate)
	assert.Empty(t, issue.Links)
	assert.NotNil(t, issue.Links)

	text := document.ToPlainText(issue.Description)
	assert.Contains(t, text, "full")
	assert.Contains(t, text, "clean cache")
	assert.NotContains(t, text, "*full*")

	require.Len(t, issue.Comments, 1)
	assert.Contains(t, document.ToPlainText(issue.Comments[0].Body), "/var/cache")
}

func TestNormalizer_Body(t *testing.T) {
	v3 := NewNormalizer("", APIVersionV3, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absent", ``, ""},
		{"null", `null`, ""},
		{"plain string on v3", `"*not bold*"`, "*not bold*"},
		{"document", `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"hi"}]}]}`, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v3.Body(json.RawMessage(tt.raw))
			assert.Equal(t, "doc", got.Type)
			assert.Equal(t, tt.want, document.ToPlainText(got))
		})
	}
}

func TestNormalizer_MissingPieces(t *testing.T) {
	n := NewNormalizer("", APIVersionV3, nil)

	assert.Nil(t, n.User(nil))
	assert.Equal(t, ticket.CategoryNew, n.Status(nil).Category)

	issue := n.Issue(Issue{ID: "1", Key: "A-1"})
	assert.Empty(t, issue.URL)
	assert.NotNil(t, issue.Labels)
	assert.NotNil(t, issue.Subtasks)
	assert.True(t, issue.Description.IsEmpty())

	_, ok := n.Link(IssueLink{ID: "9"})
	assert.False(t, ok)
}

func TestNormalizer_Sprint(t *testing.T) {
	n := NewNormalizer("", APIVersionV3, nil)

	s := n.Sprint(Sprint{ID: 7, Name: "S1", State: "ACTIVE", StartDate: "2025-01-06T09:00:00.000Z"}, 3)

	assert.Equal(t, ticket.SprintActive, s.State)
	assert.Equal(t, 3, s.BoardID)
	require.NotNil(t, s.StartDate)
	assert.Nil(t, s.EndDate)
}
