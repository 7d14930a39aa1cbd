package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/randalmurphal/trackerkit/cache"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/ticket"
)

// GetProjects lists the projects visible to the caller. Cloud pages
// through /project/search; Server returns everything from /project.
func (c *Client) GetProjects(ctx context.Context) ([]ticket.Project, error) {
	norm := c.normalizer()

	if c.APIVersionInUse() == APIVersionV2 {
		var raw []Project
		if err := c.fetch(ctx, http.MethodGet, c.apiPath("/project"), nil, shapeProjects, &raw,
			trackerhttp.WithTier(cache.TierLong)); err != nil {
			return nil, fmt.Errorf("get projects: %w", err)
		}
		out := make([]ticket.Project, 0, len(raw))
		for _, p := range raw {
			out = append(out, norm.Project(p))
		}
		return out, nil
	}

	base := c.apiPath("/project/search")
	fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Project], error) {
		var page ProjectPage
		if err := c.fetch(ctx, http.MethodGet, base+"?"+offsetQuery(req), nil, shapeProjectPage, &page,
			trackerhttp.WithTier(cache.TierLong)); err != nil {
			return trackerhttp.Page[ticket.Project]{}, err
		}
		items := make([]ticket.Project, 0, len(page.Values))
		for _, p := range page.Values {
			items = append(items, norm.Project(p))
		}
		return trackerhttp.Page[ticket.Project]{Items: items, IsLast: page.IsLast, Total: page.Total}, nil
	}

	projects, err := trackerhttp.NewPaginator(fetch, c.pageConfig(base, trackerhttp.StyleOffset, 0)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get projects: %w", err)
	}
	return projects, nil
}

// GetProject retrieves a project by key or id.
func (c *Client) GetProject(ctx context.Context, key string) (*ticket.Project, error) {
	if key == "" {
		return nil, ErrProjectRequired
	}
	var raw Project
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/project/"+url.PathEscape(key)), nil, shapeProject, &raw,
		trackerhttp.WithTier(cache.TierLong)); err != nil {
		return nil, fmt.Errorf("get project %s: %w", key, err)
	}
	p := c.normalizer().Project(raw)
	return &p, nil
}

// GetIssueTypes lists issue types.
func (c *Client) GetIssueTypes(ctx context.Context) ([]ticket.IssueType, error) {
	var raw []IssueType
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/issuetype"), nil, shapeIssueTypes, &raw,
		trackerhttp.WithTier(cache.TierVeryLong)); err != nil {
		return nil, fmt.Errorf("get issue types: %w", err)
	}
	norm := c.normalizer()
	out := make([]ticket.IssueType, 0, len(raw))
	for i := range raw {
		out = append(out, norm.IssueType(&raw[i]))
	}
	return out, nil
}

// GetPriorities lists priorities.
func (c *Client) GetPriorities(ctx context.Context) ([]ticket.Priority, error) {
	var raw []Priority
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/priority"), nil, shapePriorities, &raw,
		trackerhttp.WithTier(cache.TierVeryLong)); err != nil {
		return nil, fmt.Errorf("get priorities: %w", err)
	}
	norm := c.normalizer()
	out := make([]ticket.Priority, 0, len(raw))
	for i := range raw {
		out = append(out, *norm.Priority(&raw[i]))
	}
	return out, nil
}

// GetUsers searches users by name or email.
func (c *Client) GetUsers(ctx context.Context, query string) ([]ticket.User, error) {
	param := "query"
	if c.APIVersionInUse() == APIVersionV2 {
		param = "username"
	}
	path := c.apiPath("/user/search?" + param + "=" + url.QueryEscape(query))

	var raw []User
	if err := c.fetch(ctx, http.MethodGet, path, nil, shapeUsers, &raw,
		trackerhttp.WithTier(cache.TierMedium)); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	norm := c.normalizer()
	out := make([]ticket.User, 0, len(raw))
	for i := range raw {
		out = append(out, *norm.User(&raw[i]))
	}
	return out, nil
}

// GetCurrentUser returns the authenticated user.
func (c *Client) GetCurrentUser(ctx context.Context) (*ticket.User, error) {
	var raw User
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/myself"), nil, shapeUser, &raw,
		trackerhttp.WithTier(cache.TierLong)); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return c.normalizer().User(&raw), nil
}
