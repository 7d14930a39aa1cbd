package jira

import (
	"encoding/json"
	"regexp"
	"time"
)

// DeploymentType represents the type of Jira deployment.
type DeploymentType string

// Deployment types for Jira instances.
const (
	DeploymentCloud      DeploymentType = "Cloud"
	DeploymentServer     DeploymentType = "Server"
	DeploymentDataCenter DeploymentType = "DataCenter"
)

// TimeFormat is the standard Jira timestamp format.
const TimeFormat = "2006-01-02T15:04:05.000-0700"

// APIVersion represents the Jira REST API version.
type APIVersion string

// API versions supported by the Jira REST API.
const (
	APIVersionAuto APIVersion = "auto"
	APIVersionV2   APIVersion = "v2"
	APIVersionV3   APIVersion = "v3"
)

// ServerInfo represents the response from /rest/api/X/serverInfo.
type ServerInfo struct {
	BaseURL        string `json:"baseUrl"`
	Version        string `json:"version"`
	VersionNumbers []int  `json:"versionNumbers"`
	DeploymentType string `json:"deploymentType"` // "Cloud", "Server", "DataCenter"
	BuildNumber    int    `json:"buildNumber"`
	ServerTitle    string `json:"serverTitle"`
}

// User represents a Jira user.
type User struct {
	AccountID    string            `json:"accountId,omitempty"`    // Cloud (GDPR-compliant)
	Name         string            `json:"name,omitempty"`         // Server (username)
	Key          string            `json:"key,omitempty"`          // Server (user key)
	EmailAddress string            `json:"emailAddress,omitempty"` // May require scope
	DisplayName  string            `json:"displayName"`
	Active       bool              `json:"active"`
	AvatarURLs   map[string]string `json:"avatarUrls,omitempty"`
}

// GetID returns the user identifier (accountId for Cloud, name for Server).
func (u *User) GetID() string {
	if u.AccountID != "" {
		return u.AccountID
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Key
}

// Project represents a Jira project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Lead *User  `json:"lead,omitempty"`
}

// IssueType represents an issue type in Jira.
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask"`
	IconURL     string `json:"iconUrl,omitempty"`
}

// Priority represents an issue priority.
type Priority struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Status represents an issue status.
type Status struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory represents a status category.
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"` // "new", "indeterminate", "done"
	Name string `json:"name"`
}

// Issue represents a Jira issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self,omitempty"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"` // ADF (v3) or string (v2)
	Status      *Status         `json:"status,omitempty"`
	Priority    *Priority       `json:"priority,omitempty"`
	IssueType   *IssueType      `json:"issuetype,omitempty"`
	Project     *Project        `json:"project,omitempty"`
	Assignee    *User           `json:"assignee,omitempty"`
	Reporter    *User           `json:"reporter,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Created     string          `json:"created,omitempty"`
	Updated     string          `json:"updated,omitempty"`
	DueDate     string          `json:"duedate,omitempty"`

	// Parent and Subtasks carry only summary fields.
	Parent   *Issue  `json:"parent,omitempty"`
	Subtasks []Issue `json:"subtasks,omitempty"`

	Comment    *CommentsResponse `json:"comment,omitempty"`
	Attachment []Attachment      `json:"attachment,omitempty"`
	IssueLinks []IssueLink       `json:"issuelinks,omitempty"`
}

// Transition represents an available status transition.
type Transition struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	To        *Status `json:"to"`
	HasScreen bool    `json:"hasScreen"`
}

// TransitionsResponse represents the response from the transitions endpoint.
type TransitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// Comment represents a Jira comment.
type Comment struct {
	ID      string          `json:"id"`
	Author  *User           `json:"author,omitempty"`
	Body    json.RawMessage `json:"body"` // ADF (v3) or string (v2)
	Created string          `json:"created"`
	Updated string          `json:"updated"`
}

// CommentsResponse represents the response from the comments endpoint.
type CommentsResponse struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// Attachment represents a file attached to an issue.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Author   *User  `json:"author,omitempty"`
	Created  string `json:"created"`
}

// IssueLinkType names a link relationship.
type IssueLinkType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Inward  string `json:"inward,omitempty"`
	Outward string `json:"outward,omitempty"`
}

// IssueLinkTypesResponse is the response from /issueLinkType.
type IssueLinkTypesResponse struct {
	IssueLinkTypes []IssueLinkType `json:"issueLinkTypes"`
}

// IssueLink is one entry of fields.issuelinks. Exactly one of InwardIssue
// and OutwardIssue is set.
type IssueLink struct {
	ID           string        `json:"id"`
	Type         IssueLinkType `json:"type"`
	InwardIssue  *Issue        `json:"inwardIssue,omitempty"`
	OutwardIssue *Issue        `json:"outwardIssue,omitempty"`
}

// SearchResponse is an offset-paginated search page (v2 /search).
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// SearchJQLResponse is a cursor-paginated search page (v3 /search/jql).
type SearchJQLResponse struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast"`
}

// RemoteLink represents a remote link on an issue.
type RemoteLink struct {
	ID           int              `json:"id,omitempty"`
	Self         string           `json:"self,omitempty"`
	GlobalID     string           `json:"globalId,omitempty"`
	Relationship string           `json:"relationship,omitempty"`
	Object       RemoteLinkObject `json:"object"`
}

// RemoteLinkObject represents the linked object details.
type RemoteLinkObject struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// Board is an agile board.
type Board struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location *struct {
		ProjectKey string `json:"projectKey"`
	} `json:"location,omitempty"`
}

// Sprint is an agile sprint.
type Sprint struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Goal          string `json:"goal,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	OriginBoardID int    `json:"originBoardId,omitempty"`
}

// AgilePage is an agile offset page; it reports isLast rather than total.
type AgilePage[T any] struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	Total      int  `json:"total,omitempty"`
	IsLast     bool `json:"isLast"`
	Values     []T  `json:"values"`
}

// ProjectPage is the paginated /project/search response.
type ProjectPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	IsLast     bool      `json:"isLast"`
	Values     []Project `json:"values"`
}

// CreateIssueRequest represents a request to create an issue.
type CreateIssueRequest struct {
	Fields map[string]any `json:"fields"`
}

// CreateIssueResponse represents the response from creating an issue.
type CreateIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// UpdateIssueRequest represents a request to update issue fields.
type UpdateIssueRequest struct {
	Fields map[string]any `json:"fields,omitempty"`
	Update map[string]any `json:"update,omitempty"`
}

// TransitionRequest represents a request to transition an issue.
type TransitionRequest struct {
	Transition TransitionRef  `json:"transition"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// TransitionRef references a transition by ID.
type TransitionRef struct {
	ID string `json:"id"`
}

// AddCommentRequest represents a request to add a comment.
type AddCommentRequest struct {
	Body any `json:"body"` // ADF or string
}

// CreateLinkRequest creates an issue link.
type CreateLinkRequest struct {
	Type         IssueLinkType `json:"type"`
	InwardIssue  IssueRef      `json:"inwardIssue"`
	OutwardIssue IssueRef      `json:"outwardIssue"`
}

// IssueRef references an issue by key or ID.
type IssueRef struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// issueKeyRegex validates Jira issue keys (e.g., PROJ-123).
var issueKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-\d+$`)

// ValidateIssueKey validates a Jira issue key format.
func ValidateIssueKey(key string) bool {
	return issueKeyRegex.MatchString(key)
}

// ParseTime parses a Jira timestamp string.
// Jira uses ISO 8601 format with timezone offset.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	// Jira format: "2025-01-15T10:30:00.000+0000"
	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.DateOnly,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Value: s}
}

// FormatTime formats a time.Time as a Jira timestamp string.
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}
