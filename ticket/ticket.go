// Package ticket holds the canonical tracker entities. Values are read-only
// snapshots produced by the jira client and are never persisted locally.
package ticket

import (
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/trackerkit/document"
)

// StatusCategory is the coarse workflow bucket every status maps into.
type StatusCategory string

// Status categories.
const (
	CategoryNew        StatusCategory = "new"
	CategoryInProgress StatusCategory = "in-progress"
	CategoryDone       StatusCategory = "done"
)

// Valid reports whether c is one of the three buckets.
func (c StatusCategory) Valid() bool {
	switch c {
	case CategoryNew, CategoryInProgress, CategoryDone:
		return true
	}
	return false
}

// Status is a workflow status.
type Status struct {
	ID       string
	Name     string
	Category StatusCategory
}

// IssueType is an issue type such as Bug or Story.
type IssueType struct {
	ID          string
	Name        string
	Description string
	Subtask     bool
	IconURL     string
}

// Priority is an issue priority.
type Priority struct {
	ID      string
	Name    string
	IconURL string
}

// User is a tracker account.
type User struct {
	// ID is the accountId on Cloud and the username on Server.
	ID          string
	DisplayName string
	Email       string
	AvatarURL   string
	Active      bool
}

// Label returns the display name, falling back to the id.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// ProjectRef identifies the project an issue belongs to.
type ProjectRef struct {
	ID   string
	Key  string
	Name string
}

// Project is a tracker project.
type Project struct {
	ID   string
	Key  string
	Name string
	Lead *User
}

// Ref returns the project reference.
func (p Project) Ref() ProjectRef {
	return ProjectRef{ID: p.ID, Key: p.Key, Name: p.Name}
}

// IssueSummary is the projection of an issue used by links, subtasks and
// parents.
type IssueSummary struct {
	ID      string
	Key     string
	Summary string
	Status  Status
	Type    IssueType
}

// Comment is an issue comment.
type Comment struct {
	ID      string
	Author  *User
	Body    document.Node
	Created time.Time
	Updated time.Time
}

// Attachment is a file attached to an issue.
type Attachment struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
	URL      string
	Author   *User
	Created  time.Time
}

// Transition is a workflow move available from the current status.
type Transition struct {
	ID           string
	Name         string
	TargetStatus Status
}

// LinkType names an issue relationship in both directions.
type LinkType struct {
	ID      string
	Name    string
	Inward  string
	Outward string
}

// LinkDirection is the side of a link the owning issue sits on.
type LinkDirection string

// Link directions.
const (
	Forward  LinkDirection = "forward"
	Backward LinkDirection = "backward"
)

// Link relates an issue to another issue.
type Link struct {
	ID          string
	Type        LinkType
	Direction   LinkDirection
	LinkedIssue IssueSummary
}

// Description returns the relation text as read from the owning issue,
// e.g. "blocks" or "is blocked by".
func (l Link) Description() string {
	if l.Direction == Backward {
		return l.Type.Inward
	}
	return l.Type.Outward
}

// RemoteLink is a link from an issue to an external resource.
type RemoteLink struct {
	ID           int
	GlobalID     string
	URL          string
	Title        string
	Summary      string
	Relationship string
}

// Issue is a work item.
type Issue struct {
	ID          string
	Key         string
	Summary     string
	Description document.Node
	Type        IssueType
	Status      Status
	Priority    *Priority
	Assignee    *User
	Reporter    *User
	Project     ProjectRef

	// Labels are sorted and de-duplicated.
	Labels []string

	Created time.Time
	Updated time.Time
	DueDate *time.Time

	Parent      *IssueSummary
	Subtasks    []IssueSummary
	Comments    []Comment
	Attachments []Attachment
	Links       []Link

	// URL is the browse URL for humans.
	URL string
}

// Summarize projects the issue to an IssueSummary.
func (i *Issue) Summarize() IssueSummary {
	return IssueSummary{
		ID:      i.ID,
		Key:     i.Key,
		Summary: i.Summary,
		Status:  i.Status,
		Type:    i.Type,
	}
}

// IsDone reports whether the issue is in the done bucket.
func (i *Issue) IsDone() bool {
	return i.Status.Category == CategoryDone
}

// HasLabel reports whether the issue carries label.
func (i *Issue) HasLabel(label string) bool {
	_, found := slices.BinarySearch(i.Labels, label)
	return found
}

// Board is an agile board.
type Board struct {
	ID         int
	Name       string
	Type       string
	ProjectKey string
}

// SprintState is the lifecycle state of a sprint.
type SprintState string

// Sprint states.
const (
	SprintFuture SprintState = "future"
	SprintActive SprintState = "active"
	SprintClosed SprintState = "closed"
)

// Sprint is an agile sprint.
type Sprint struct {
	ID        int
	BoardID   int
	Name      string
	State     SprintState
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// ServerInfo describes the remote deployment.
type ServerInfo struct {
	BaseURL        string
	Version        string
	DeploymentType string
	ServerTitle    string
}

// NormalizeLabels trims, de-duplicates and sorts labels. Blank labels are
// dropped. The result is never nil.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
