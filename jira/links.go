package jira

import (
	"context"
	"fmt"
	"net/http"

	"github.com/randalmurphal/trackerkit/cache"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/ticket"
)

// GetLinkTypes lists the configured issue link types.
func (c *Client) GetLinkTypes(ctx context.Context) ([]ticket.LinkType, error) {
	var result IssueLinkTypesResponse
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/issueLinkType"), nil, shapeLinkTypes, &result,
		trackerhttp.WithTier(cache.TierVeryLong)); err != nil {
		return nil, fmt.Errorf("get link types: %w", err)
	}

	norm := c.normalizer()
	out := make([]ticket.LinkType, 0, len(result.IssueLinkTypes))
	for _, lt := range result.IssueLinkTypes {
		out = append(out, norm.LinkType(lt))
	}
	return out, nil
}

// LinkInput links two issues. With type "Blocks", Outward blocks Inward.
type LinkInput struct {
	// Type is the link type name.
	Type    string
	Outward string
	Inward  string
}

// CreateLink links two issues.
func (c *Client) CreateLink(ctx context.Context, in LinkInput) error {
	if in.Type == "" {
		return ErrLinkTypeRequired
	}
	if err := checkIssueRef(in.Outward); err != nil {
		return err
	}
	if err := checkIssueRef(in.Inward); err != nil {
		return err
	}

	body := &CreateLinkRequest{
		Type:         IssueLinkType{Name: in.Type},
		InwardIssue:  IssueRef{Key: in.Inward},
		OutwardIssue: IssueRef{Key: in.Outward},
	}
	if _, err := c.send(ctx, http.MethodPost, c.apiPath("/issueLink"), body); err != nil {
		return fmt.Errorf("link %s to %s: %w", in.Outward, in.Inward, err)
	}
	c.invalidateIssues(in.Outward, in.Inward)
	return nil
}

// DeleteLink removes an issue link. The link is read first so both linked
// issues can be dropped from the cache.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	if linkID == "" {
		return ErrLinkIDRequired
	}

	path := c.apiPath("/issueLink/" + linkID)
	var link IssueLink
	if err := c.fetch(ctx, http.MethodGet, path, nil, shapeIssueLink, &link, trackerhttp.SkipCache()); err != nil {
		return fmt.Errorf("get link %s: %w", linkID, err)
	}

	if _, err := c.send(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("delete link %s: %w", linkID, err)
	}

	var keys []string
	for _, side := range []*Issue{link.InwardIssue, link.OutwardIssue} {
		if side != nil {
			keys = append(keys, side.Key)
		}
	}
	c.invalidateIssues(keys...)
	return nil
}

// AddRemoteLink links an issue to an external resource.
func (c *Client) AddRemoteLink(ctx context.Context, key string, link ticket.RemoteLink) (*ticket.RemoteLink, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}
	if link.URL == "" || link.Title == "" {
		return nil, ErrRemoteLinkURL
	}

	body := &RemoteLink{
		GlobalID:     link.GlobalID,
		Relationship: link.Relationship,
		Object: RemoteLinkObject{
			URL:     link.URL,
			Title:   link.Title,
			Summary: link.Summary,
		},
	}
	path := c.apiPath("/issue/" + key + "/remotelink")
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("add remote link to %s: %w", key, err)
	}
	c.invalidateIssues(key)

	if err := c.shapes.Validate(shapeRemoteLinkID, resp.Body); err != nil {
		return nil, fmt.Errorf("add remote link to %s: %w", key, err)
	}
	var created RemoteLink
	if err := resp.Decode(&created); err != nil {
		return nil, &trackerhttp.DecodeError{Service: serviceName, Endpoint: path, Err: err}
	}
	out := link
	out.ID = created.ID
	return &out, nil
}

// GetRemoteLinks retrieves remote links for an issue.
func (c *Client) GetRemoteLinks(ctx context.Context, key string) ([]ticket.RemoteLink, error) {
	if err := checkIssueRef(key); err != nil {
		return nil, err
	}

	var links []RemoteLink
	if err := c.fetch(ctx, http.MethodGet, c.apiPath("/issue/"+key+"/remotelink"), nil, shapeRemoteLinks, &links,
		trackerhttp.WithTier(cache.TierShort)); err != nil {
		return nil, fmt.Errorf("get remote links for %s: %w", key, err)
	}

	norm := c.normalizer()
	out := make([]ticket.RemoteLink, 0, len(links))
	for _, l := range links {
		out = append(out, norm.RemoteLink(l))
	}
	return out, nil
}
