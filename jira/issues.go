package jira

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/randalmurphal/trackerkit/cache"
	"github.com/randalmurphal/trackerkit/document"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/ticket"
)

// issueFields are requested when a search names no fields; they cover
// everything the canonical Issue carries except comments.
var issueFields = []string{
	"summary", "description", "status", "issuetype", "priority", "assignee",
	"reporter", "project", "labels", "created", "updated", "duedate",
	"parent", "subtasks", "issuelinks", "attachment",
}

// requiredFields are always requested; an issue without them is rejected.
var requiredFields = []string{"summary", "status"}

// requestedFields returns the search field list: the defaults when none are
// named, otherwise the caller's fields plus any missing required ones.
func requestedFields(fields []string) []string {
	if len(fields) == 0 {
		return issueFields
	}
	out := slices.Clone(fields)
	for _, f := range requiredFields {
		if !slices.Contains(out, f) && !slices.Contains(out, "*all") {
			out = append(out, f)
		}
	}
	return out
}

// GetIssue retrieves an issue by key. A missing issue is (nil, nil).
func (c *Client) GetIssue(ctx context.Context, key string) (*ticket.Issue, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}

	var raw Issue
	err := c.fetch(ctx, http.MethodGet, c.apiPath("/issue/"+key), nil, shapeIssue, &raw,
		trackerhttp.WithTier(cache.TierShort))
	if trackerhttp.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	c.rememberIssue(raw.ID, raw.Key)
	issue := c.normalizer().Issue(raw)
	return &issue, nil
}

// SearchIssues runs a search and collects every result up to the item
// ceiling (or q.MaxResults).
func (c *Client) SearchIssues(ctx context.Context, q SearchQuery) ([]ticket.Issue, error) {
	issues, err := c.searchPaginator(q).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return issues, nil
}

// SearchIssuesSeq is SearchIssues as a lazy sequence; pages are fetched as
// the caller advances.
func (c *Client) SearchIssuesSeq(ctx context.Context, q SearchQuery) iter.Seq2[ticket.Issue, error] {
	return c.searchPaginator(q).Seq(ctx)
}

// searchPaginator uses cursor pagination on v3 (/search/jql) and offset
// pagination on v2 (/search).
func (c *Client) searchPaginator(q SearchQuery) *trackerhttp.Paginator[ticket.Issue] {
	jql := q.BuildJQL()
	fields := requestedFields(q.Fields)
	norm := c.normalizer()
	version := c.APIVersionInUse()

	normalize := func(raw []Issue) []ticket.Issue {
		out := make([]ticket.Issue, 0, len(raw))
		for _, r := range raw {
			c.rememberIssue(r.ID, r.Key)
			out = append(out, norm.Issue(r))
		}
		return out
	}

	if version == APIVersionV2 {
		path := apiPathFor(version, "/search")
		fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Issue], error) {
			body := map[string]any{
				"jql":        jql,
				"startAt":    req.StartAt,
				"maxResults": req.MaxResults,
				"fields":     fields,
			}
			var page SearchResponse
			if err := c.fetch(ctx, http.MethodPost, path, body, shapeSearch, &page, trackerhttp.CacheRead()); err != nil {
				return trackerhttp.Page[ticket.Issue]{}, err
			}
			return trackerhttp.Page[ticket.Issue]{Items: normalize(page.Issues), Total: page.Total}, nil
		}
		return trackerhttp.NewPaginator(fetch, c.pageConfig(path, trackerhttp.StyleOffset, q.MaxResults))
	}

	path := apiPathFor(version, "/search/jql")
	fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Issue], error) {
		body := map[string]any{
			"jql":        jql,
			"maxResults": req.MaxResults,
			"fields":     fields,
		}
		if req.Token != "" {
			body["nextPageToken"] = req.Token
		}
		var page SearchJQLResponse
		if err := c.fetch(ctx, http.MethodPost, path, body, shapeSearchJQL, &page, trackerhttp.CacheRead()); err != nil {
			return trackerhttp.Page[ticket.Issue]{}, err
		}
		return trackerhttp.Page[ticket.Issue]{
			Items:         normalize(page.Issues),
			NextPageToken: page.NextPageToken,
			IsLast:        page.IsLast,
		}, nil
	}
	return trackerhttp.NewPaginator(fetch, c.pageConfig(path, trackerhttp.StyleCursor, q.MaxResults))
}

// IssueInput describes a new issue.
type IssueInput struct {
	// Project is the project key.
	Project string
	// Type is the issue type name, e.g. "Bug".
	Type    string
	Summary string

	Description document.Node
	Priority    string
	// Assignee is an account id (Cloud) or username (Server).
	Assignee string
	Labels   []string
	DueDate  *time.Time
	// Parent is the parent issue key for subtasks and child issues.
	Parent string

	// Fields sets additional fields (custom fields) verbatim.
	Fields map[string]any
}

func (in IssueInput) validate() error {
	switch {
	case strings.TrimSpace(in.Project) == "":
		return ErrProjectRequired
	case strings.TrimSpace(in.Type) == "":
		return ErrIssueTypeMissing
	case strings.TrimSpace(in.Summary) == "":
		return ErrSummaryRequired
	}
	if in.Parent != "" {
		return checkIssueRef(in.Parent)
	}
	return nil
}

// CreateIssue creates an issue and returns it as stored by the tracker.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*ticket.Issue, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	for k, v := range in.Fields {
		fields[k] = v
	}
	fields["project"] = map[string]any{"key": in.Project}
	fields["issuetype"] = map[string]any{"name": in.Type}
	fields["summary"] = in.Summary
	if in.Description.Type != "" && !in.Description.IsEmpty() {
		body, err := c.encodeRichText(in.Description)
		if err != nil {
			return nil, fmt.Errorf("encode description: %w", err)
		}
		fields["description"] = body
	}
	if in.Priority != "" {
		fields["priority"] = map[string]any{"name": in.Priority}
	}
	if in.Assignee != "" {
		fields["assignee"] = c.userRef(in.Assignee)
	}
	if labels := ticket.NormalizeLabels(in.Labels); len(labels) > 0 {
		fields["labels"] = labels
	}
	if in.DueDate != nil {
		fields["duedate"] = in.DueDate.Format(time.DateOnly)
	}
	if in.Parent != "" {
		fields["parent"] = map[string]any{"key": in.Parent}
	}

	resp, err := c.send(ctx, http.MethodPost, c.apiPath("/issue"), &CreateIssueRequest{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	if err := c.shapes.Validate(shapeCreated, resp.Body); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	var created CreateIssueResponse
	if err := resp.Decode(&created); err != nil {
		return nil, &trackerhttp.DecodeError{Service: serviceName, Endpoint: c.apiPath("/issue"), Err: err}
	}
	c.invalidateIssues(created.Key)
	c.logger.Info("jira issue created", "key", created.Key, "project", in.Project)

	issue, err := c.GetIssue(ctx, created.Key)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		// Search indexes lag behind writes; report what the create returned.
		return &ticket.Issue{
			ID:      created.ID,
			Key:     created.Key,
			Summary: in.Summary,
			Status:  ticket.Status{Category: ticket.CategoryNew},
			Labels:  ticket.NormalizeLabels(in.Labels),
			URL:     c.normalizer().BrowseURL(created.Key),
		}, nil
	}
	return issue, nil
}

// IssuePatch describes a partial update. Nil fields are left unchanged.
type IssuePatch struct {
	Summary     *string
	Description *document.Node
	Priority    *string
	// Assignee set to "" unassigns.
	Assignee *string
	DueDate  *time.Time

	// Labels replaces the label set when non-nil.
	Labels       []string
	AddLabels    []string
	RemoveLabels []string

	// Fields sets additional fields verbatim.
	Fields map[string]any
}

func (c *Client) buildUpdate(p IssuePatch) (*UpdateIssueRequest, error) {
	req := &UpdateIssueRequest{Fields: map[string]any{}, Update: map[string]any{}}
	for k, v := range p.Fields {
		req.Fields[k] = v
	}
	if p.Summary != nil {
		if strings.TrimSpace(*p.Summary) == "" {
			return nil, ErrSummaryRequired
		}
		req.Fields["summary"] = *p.Summary
	}
	if p.Description != nil {
		body, err := c.encodeRichText(*p.Description)
		if err != nil {
			return nil, fmt.Errorf("encode description: %w", err)
		}
		req.Fields["description"] = body
	}
	if p.Priority != nil {
		req.Fields["priority"] = map[string]any{"name": *p.Priority}
	}
	if p.Assignee != nil {
		if *p.Assignee == "" {
			req.Fields["assignee"] = nil
		} else {
			req.Fields["assignee"] = c.userRef(*p.Assignee)
		}
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			req.Fields["duedate"] = nil
		} else {
			req.Fields["duedate"] = p.DueDate.Format(time.DateOnly)
		}
	}
	if p.Labels != nil {
		req.Fields["labels"] = ticket.NormalizeLabels(p.Labels)
	} else if len(p.AddLabels) > 0 || len(p.RemoveLabels) > 0 {
		var ops []map[string]string
		for _, l := range ticket.NormalizeLabels(p.AddLabels) {
			ops = append(ops, map[string]string{"add": l})
		}
		for _, l := range ticket.NormalizeLabels(p.RemoveLabels) {
			ops = append(ops, map[string]string{"remove": l})
		}
		req.Update["labels"] = ops
	}

	if len(req.Fields) == 0 && len(req.Update) == 0 {
		return nil, ErrEmptyPatch
	}
	if len(req.Fields) == 0 {
		req.Fields = nil
	}
	if len(req.Update) == 0 {
		req.Update = nil
	}
	return req, nil
}

// UpdateIssue applies a partial update.
func (c *Client) UpdateIssue(ctx context.Context, key string, patch IssuePatch) error {
	if err := checkIssueRef(key); err != nil {
		return err
	}
	body, err := c.buildUpdate(patch)
	if err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodPut, c.apiPath("/issue/"+key), body); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	c.invalidateIssues(key)
	return nil
}

// DeleteIssue deletes an issue and its subtasks.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	if err := checkIssueRef(key); err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodDelete, c.apiPath("/issue/"+key+"?deleteSubtasks=true"), nil); err != nil {
		return fmt.Errorf("delete issue %s: %w", key, err)
	}
	c.invalidateIssues(key)
	c.logger.Info("jira issue deleted", "key", key)
	return nil
}

// AssignIssue assigns an issue. An empty assignee unassigns it.
func (c *Client) AssignIssue(ctx context.Context, key, assignee string) error {
	if err := checkIssueRef(key); err != nil {
		return err
	}
	var body any = c.userRef(assignee)
	if assignee == "" {
		if c.APIVersionInUse() == APIVersionV2 {
			body = map[string]any{"name": nil}
		} else {
			body = map[string]any{"accountId": nil}
		}
	}
	if _, err := c.send(ctx, http.MethodPut, c.apiPath("/issue/"+key+"/assignee"), body); err != nil {
		return fmt.Errorf("assign issue %s: %w", key, err)
	}
	c.invalidateIssues(key)
	return nil
}

// GetTransitions gets available transitions for an issue.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]ticket.Transition, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}

	var result TransitionsResponse
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/issue/"+key+"/transitions"), nil, shapeTransitions, &result,
		trackerhttp.WithTier(cache.TierShort)); err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", key, err)
	}

	norm := c.normalizer()
	out := make([]ticket.Transition, 0, len(result.Transitions))
	for _, t := range result.Transitions {
		out = append(out, norm.Transition(t))
	}
	return out, nil
}

// TransitionIssue transitions an issue to a new status.
func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string) error {
	if err := checkIssueRef(key); err != nil {
		return err
	}
	if transitionID == "" {
		return ErrTransitionIDRequired
	}

	body := &TransitionRequest{Transition: TransitionRef{ID: transitionID}}
	if _, err := c.send(ctx, http.MethodPost, c.apiPath("/issue/"+key+"/transitions"), body); err != nil {
		return fmt.Errorf("transition issue %s: %w", key, err)
	}
	c.invalidateIssues(key)
	return nil
}

// TransitionIssueByName finds and executes a transition by its name or by
// the name of its target status, ignoring case.
func (c *Client) TransitionIssueByName(ctx context.Context, key, name string) error {
	transitions, err := c.GetTransitions(ctx, key)
	if err != nil {
		return err
	}

	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, t := range transitions {
		if fold.String(t.Name) == want {
			return c.TransitionIssue(ctx, key, t.ID)
		}
	}
	for _, t := range transitions {
		if fold.String(t.TargetStatus.Name) == want {
			return c.TransitionIssue(ctx, key, t.ID)
		}
	}

	names := make([]string, 0, len(transitions))
	for _, t := range transitions {
		names = append(names, t.Name)
	}
	return fmt.Errorf("%w: %q on %s (available: %s)", ErrTransitionNotFound, name, key, strings.Join(names, ", "))
}

// GetComments retrieves every comment on an issue, oldest first.
func (c *Client) GetComments(ctx context.Context, key string) ([]ticket.Comment, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}

	base := c.apiPath("/issue/" + key + "/comment")
	norm := c.normalizer()
	fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Comment], error) {
		var page CommentsResponse
		if err := c.fetch(ctx, http.MethodGet, base+"?"+offsetQuery(req), nil, shapeComments, &page,
			trackerhttp.WithTier(cache.TierShort)); err != nil {
			return trackerhttp.Page[ticket.Comment]{}, err
		}
		items := make([]ticket.Comment, 0, len(page.Comments))
		for _, cm := range page.Comments {
			items = append(items, norm.Comment(cm))
		}
		return trackerhttp.Page[ticket.Comment]{Items: items, Total: page.Total}, nil
	}

	comments, err := trackerhttp.NewPaginator(fetch, c.pageConfig(base, trackerhttp.StyleOffset, 0)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get comments for %s: %w", key, err)
	}
	return comments, nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, key string, body document.Node) (*ticket.Comment, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}
	if body.Type == "" || body.IsEmpty() {
		return nil, ErrCommentEmpty
	}

	encoded, err := c.encodeRichText(body)
	if err != nil {
		return nil, fmt.Errorf("encode comment: %w", err)
	}

	path := c.apiPath("/issue/" + key + "/comment")
	resp, err := c.send(ctx, http.MethodPost, path, &AddCommentRequest{Body: encoded})
	if err != nil {
		return nil, fmt.Errorf("add comment to %s: %w", key, err)
	}
	c.invalidateIssues(key)

	if err := c.shapes.Validate(shapeComment, resp.Body); err != nil {
		return nil, err
	}
	var raw Comment
	if err := resp.Decode(&raw); err != nil {
		return nil, &trackerhttp.DecodeError{Service: serviceName, Endpoint: path, Err: err}
	}
	comment := c.normalizer().Comment(raw)
	return &comment, nil
}
