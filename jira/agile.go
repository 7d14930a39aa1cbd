package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/randalmurphal/trackerkit/cache"
	"github.com/randalmurphal/trackerkit/capability"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/ticket"
)

const agileBase = "/rest/agile/1.0"

// agileAvailable reports whether the agile subsystem can be used. Probe
// failures that are not memoized are returned as errors.
func (c *Client) agileAvailable(ctx context.Context) (bool, error) {
	st, err := c.probe.Status(ctx, capability.Agile)
	if err != nil {
		return false, fmt.Errorf("probe agile: %w", err)
	}
	if !st.Available {
		c.logger.Debug("agile unavailable", "reason", string(st.Reason))
	}
	return st.Available, nil
}

// GetBoards lists agile boards, optionally for one project. Without the
// agile subsystem the result is empty.
func (c *Client) GetBoards(ctx context.Context, projectKey string) ([]ticket.Board, error) {
	ok, err := c.agileAvailable(ctx)
	if err != nil || !ok {
		return []ticket.Board{}, err
	}

	base := agileBase + "/board"
	filter := ""
	if projectKey != "" {
		filter = "&projectKeyOrId=" + url.QueryEscape(projectKey)
	}
	norm := c.normalizer()
	fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Board], error) {
		var page AgilePage[Board]
		if err := c.fetch(ctx, http.MethodGet, base+"?"+offsetQuery(req)+filter, nil, shapeBoards, &page,
			trackerhttp.WithTier(cache.TierLong)); err != nil {
			return trackerhttp.Page[ticket.Board]{}, err
		}
		items := make([]ticket.Board, 0, len(page.Values))
		for _, b := range page.Values {
			items = append(items, norm.Board(b))
		}
		return trackerhttp.Page[ticket.Board]{Items: items, IsLast: page.IsLast, Total: page.Total}, nil
	}

	boards, err := trackerhttp.NewPaginator(fetch, c.pageConfig(base, trackerhttp.StyleOffset, 0)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get boards: %w", err)
	}
	return boards, nil
}

// GetSprints lists the sprints of a board, optionally filtered by state.
// Without the agile subsystem the result is empty.
func (c *Client) GetSprints(ctx context.Context, boardID int, states ...ticket.SprintState) ([]ticket.Sprint, error) {
	ok, err := c.agileAvailable(ctx)
	if err != nil || !ok {
		return []ticket.Sprint{}, err
	}

	base := fmt.Sprintf("%s/board/%d/sprint", agileBase, boardID)
	filter := ""
	if len(states) > 0 {
		names := make([]string, 0, len(states))
		for _, s := range states {
			names = append(names, string(s))
		}
		filter = "&state=" + url.QueryEscape(strings.Join(names, ","))
	}
	norm := c.normalizer()
	fetch := func(ctx context.Context, req trackerhttp.PageRequest) (trackerhttp.Page[ticket.Sprint], error) {
		var page AgilePage[Sprint]
		if err := c.fetch(ctx, http.MethodGet, base+"?"+offsetQuery(req)+filter, nil, shapeSprints, &page,
			trackerhttp.WithTier(cache.TierMedium)); err != nil {
			return trackerhttp.Page[ticket.Sprint]{}, err
		}
		items := make([]ticket.Sprint, 0, len(page.Values))
		for _, s := range page.Values {
			items = append(items, norm.Sprint(s, boardID))
		}
		return trackerhttp.Page[ticket.Sprint]{Items: items, IsLast: page.IsLast, Total: page.Total}, nil
	}

	sprints, err := trackerhttp.NewPaginator(fetch, c.pageConfig(base, trackerhttp.StyleOffset, 0)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sprints for board %d: %w", boardID, err)
	}
	return sprints, nil
}
