// Package trackerkit is a client layer for Jira-class ticket trackers.
//
// The package is organized into subpackages by concern:
//
//   - jira: The tracker façade: issues, search, comments, links, projects,
//     agile boards and webhooks
//   - ticket: Canonical entities returned regardless of deployment
//   - document: Rich-text tree with ADF, wiki markup and Markdown codecs
//   - http: Authenticated transport with rate limiting, retries and paging
//   - cache: Tiered response cache with prefix invalidation
//   - auth: Credentials and per-scheme request signing
//   - schema: JSON shape validation of tracker responses
//   - capability: Memoized probing of optional subsystems
//   - config: Profiles from global and local YAML files plus environment
//   - errors: User-facing classification and guidance
//   - testutil: Test utilities and a fake tracker server
//
// # Quick Start
//
//	import (
//	    "github.com/randalmurphal/trackerkit/config"
//	    "github.com/randalmurphal/trackerkit/jira"
//	)
//
//	res, _ := config.NewResolver(config.DefaultResolverConfig()).Resolve("")
//	client, _ := jira.New(res.Config)
//
//	issue, _ := client.GetIssue(ctx, "PROJ-123")
//	issues, _ := client.SearchIssues(ctx, jira.SearchQuery{Projects: []string{"PROJ"}})
//
// The trackerctl command in cmd/trackerctl wraps the same calls.
//
// See individual package documentation for detailed usage.
package trackerkit
