package jira

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/randalmurphal/trackerkit/document"
	"github.com/randalmurphal/trackerkit/ticket"
)

// Normalizer converts wire models into canonical ticket entities. Missing
// optional fields never fail; absent collections become empty slices.
type Normalizer struct {
	baseURL string
	wiki    bool
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer. baseURL builds browse URLs; version
// selects how string rich-text bodies are read (wiki markup on v2).
func NewNormalizer(baseURL string, version APIVersion, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		wiki:    version == APIVersionV2,
		logger:  logger,
	}
}

var (
	newCategoryNames  = []string{"new", "to do", "open", "backlog", "undefined"}
	doneCategoryNames = []string{"done", "complete", "closed", "resolved"}
	progressNames     = []string{"indeterminate", "in progress"}
)

// CategoryOf buckets a wire status category. The key is consulted
// first, then the status name; anything unrecognized is in-progress.
func CategoryOf(key, name string) ticket.StatusCategory {
	for _, s := range []string{key, name} {
		if c, ok := classifyCategory(s); ok {
			return c
		}
	}
	return ticket.CategoryInProgress
}

func classifyCategory(s string) (ticket.StatusCategory, bool) {
	if s = strings.TrimSpace(s); s == "" {
		return "", false
	}
	folded := cases.Fold().String(s)
	switch {
	case oneOf(folded, newCategoryNames):
		return ticket.CategoryNew, true
	case oneOf(folded, doneCategoryNames):
		return ticket.CategoryDone, true
	case oneOf(folded, progressNames):
		return ticket.CategoryInProgress, true
	}
	return "", false
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Status normalizes a status. A nil status maps to an unnamed new status.
func (n *Normalizer) Status(raw *Status) ticket.Status {
	if raw == nil {
		return ticket.Status{Category: ticket.CategoryNew}
	}
	st := ticket.Status{ID: raw.ID, Name: raw.Name}
	if raw.StatusCategory != nil {
		st.Category = CategoryOf(raw.StatusCategory.Key, raw.Name)
	} else {
		st.Category = CategoryOf("", raw.Name)
	}
	return st
}

// Issue normalizes a full issue.
func (n *Normalizer) Issue(raw Issue) ticket.Issue {
	f := raw.Fields
	issue := ticket.Issue{
		ID:          raw.ID,
		Key:         raw.Key,
		Summary:     f.Summary,
		Description: n.Body(f.Description),
		Type:        n.IssueType(f.IssueType),
		Status:      n.Status(f.Status),
		Priority:    n.Priority(f.Priority),
		Assignee:    n.User(f.Assignee),
		Reporter:    n.User(f.Reporter),
		Labels:      ticket.NormalizeLabels(f.Labels),
		Created:     n.time(f.Created),
		Updated:     n.time(f.Updated),
		Subtasks:    make([]ticket.IssueSummary, 0, len(f.Subtasks)),
		Comments:    []ticket.Comment{},
		Attachments: make([]ticket.Attachment, 0, len(f.Attachment)),
		Links:       make([]ticket.Link, 0, len(f.IssueLinks)),
		URL:         n.BrowseURL(raw.Key),
	}

	if f.Project != nil {
		issue.Project = n.Project(*f.Project).Ref()
	}
	if f.DueDate != "" {
		if t := n.time(f.DueDate); !t.IsZero() {
			issue.DueDate = &t
		}
	}
	if f.Parent != nil {
		parent := n.Summary(*f.Parent)
		issue.Parent = &parent
	}
	for _, s := range f.Subtasks {
		issue.Subtasks = append(issue.Subtasks, n.Summary(s))
	}
	if f.Comment != nil {
		for _, c := range f.Comment.Comments {
			issue.Comments = append(issue.Comments, n.Comment(c))
		}
	}
	for _, a := range f.Attachment {
		issue.Attachments = append(issue.Attachments, n.Attachment(a))
	}
	for _, l := range f.IssueLinks {
		if link, ok := n.Link(l); ok {
			issue.Links = append(issue.Links, link)
		}
	}

	return issue
}

// Summary projects a wire issue to an IssueSummary.
func (n *Normalizer) Summary(raw Issue) ticket.IssueSummary {
	return ticket.IssueSummary{
		ID:      raw.ID,
		Key:     raw.Key,
		Summary: raw.Fields.Summary,
		Status:  n.Status(raw.Fields.Status),
		Type:    n.IssueType(raw.Fields.IssueType),
	}
}

// User normalizes a user. Nil stays nil.
func (n *Normalizer) User(raw *User) *ticket.User {
	if raw == nil {
		return nil
	}
	u := &ticket.User{
		ID:          raw.GetID(),
		DisplayName: raw.DisplayName,
		Email:       raw.EmailAddress,
		Active:      raw.Active,
	}
	for _, size := range []string{"48x48", "32x32", "24x24", "16x16"} {
		if url := raw.AvatarURLs[size]; url != "" {
			u.AvatarURL = url
			break
		}
	}
	return u
}

// Project normalizes a project.
func (n *Normalizer) Project(raw Project) ticket.Project {
	return ticket.Project{ID: raw.ID, Key: raw.Key, Name: raw.Name, Lead: n.User(raw.Lead)}
}

// IssueType normalizes an issue type; nil yields the zero value.
func (n *Normalizer) IssueType(raw *IssueType) ticket.IssueType {
	if raw == nil {
		return ticket.IssueType{}
	}
	return ticket.IssueType{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Subtask:     raw.Subtask,
		IconURL:     raw.IconURL,
	}
}

// Priority normalizes a priority. Nil stays nil.
func (n *Normalizer) Priority(raw *Priority) *ticket.Priority {
	if raw == nil {
		return nil
	}
	return &ticket.Priority{ID: raw.ID, Name: raw.Name, IconURL: raw.IconURL}
}

// Comment normalizes a comment.
func (n *Normalizer) Comment(raw Comment) ticket.Comment {
	return ticket.Comment{
		ID:      raw.ID,
		Author:  n.User(raw.Author),
		Body:    n.Body(raw.Body),
		Created: n.time(raw.Created),
		Updated: n.time(raw.Updated),
	}
}

// Attachment normalizes an attachment.
func (n *Normalizer) Attachment(raw Attachment) ticket.Attachment {
	return ticket.Attachment{
		ID:       raw.ID,
		Filename: raw.Filename,
		MimeType: raw.MimeType,
		Size:     raw.Size,
		URL:      raw.Content,
		Author:   n.User(raw.Author),
		Created:  n.time(raw.Created),
	}
}

// Transition normalizes a transition.
func (n *Normalizer) Transition(raw Transition) ticket.Transition {
	return ticket.Transition{ID: raw.ID, Name: raw.Name, TargetStatus: n.Status(raw.To)}
}

// LinkType normalizes a link type.
func (n *Normalizer) LinkType(raw IssueLinkType) ticket.LinkType {
	return ticket.LinkType{ID: raw.ID, Name: raw.Name, Inward: raw.Inward, Outward: raw.Outward}
}

// Link normalizes an issue link as seen from the owning issue. A link with
// neither side set is dropped.
func (n *Normalizer) Link(raw IssueLink) (ticket.Link, bool) {
	link := ticket.Link{ID: raw.ID, Type: n.LinkType(raw.Type)}
	switch {
	case raw.OutwardIssue != nil:
		link.Direction = ticket.Forward
		link.LinkedIssue = n.Summary(*raw.OutwardIssue)
	case raw.InwardIssue != nil:
		link.Direction = ticket.Backward
		link.LinkedIssue = n.Summary(*raw.InwardIssue)
	default:
		return ticket.Link{}, false
	}
	return link, true
}

// RemoteLink normalizes a remote link.
func (n *Normalizer) RemoteLink(raw RemoteLink) ticket.RemoteLink {
	return ticket.RemoteLink{
		ID:           raw.ID,
		GlobalID:     raw.GlobalID,
		URL:          raw.Object.URL,
		Title:        raw.Object.Title,
		Summary:      raw.Object.Summary,
		Relationship: raw.Relationship,
	}
}

// Board normalizes an agile board.
func (n *Normalizer) Board(raw Board) ticket.Board {
	b := ticket.Board{ID: raw.ID, Name: raw.Name, Type: raw.Type}
	if raw.Location != nil {
		b.ProjectKey = raw.Location.ProjectKey
	}
	return b
}

// Sprint normalizes an agile sprint.
func (n *Normalizer) Sprint(raw Sprint, boardID int) ticket.Sprint {
	s := ticket.Sprint{
		ID:      raw.ID,
		BoardID: boardID,
		Name:    raw.Name,
		State:   ticket.SprintState(cases.Fold().String(raw.State)),
		Goal:    raw.Goal,
	}
	if t := n.time(raw.StartDate); !t.IsZero() {
		s.StartDate = &t
	}
	if t := n.time(raw.EndDate); !t.IsZero() {
		s.EndDate = &t
	}
	return s
}

// ServerInfo normalizes server info.
func (n *Normalizer) ServerInfo(raw ServerInfo) ticket.ServerInfo {
	return ticket.ServerInfo{
		BaseURL:        raw.BaseURL,
		Version:        raw.Version,
		DeploymentType: raw.DeploymentType,
		ServerTitle:    raw.ServerTitle,
	}
}

// Body reads a rich-text field. Documents are parsed as-is; strings are
// wiki markup on v2 and plain text otherwise. Unparseable documents degrade
// to their plain text.
func (n *Normalizer) Body(raw json.RawMessage) document.Node {
	if len(raw) == 0 || string(raw) == "null" {
		return document.NewDoc()
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n.wiki {
			return document.FromWiki(s)
		}
		return document.FromPlainText(s)
	}

	doc, err := document.Parse(raw)
	if err == nil {
		return doc
	}
	n.logger.Debug("rich text did not parse, using plain text", "error", err)

	var loose document.Node
	if json.Unmarshal(raw, &loose) == nil {
		return document.FromPlainText(document.ToPlainText(loose))
	}
	return document.NewDoc()
}

// BrowseURL returns the human URL for an issue key.
func (n *Normalizer) BrowseURL(key string) string {
	if key == "" || n.baseURL == "" {
		return ""
	}
	return n.baseURL + "/browse/" + key
}

func (n *Normalizer) time(s string) time.Time {
	t, err := ParseTime(s)
	if err != nil {
		n.logger.Debug("unparseable timestamp", "value", s)
		return time.Time{}
	}
	return t
}
