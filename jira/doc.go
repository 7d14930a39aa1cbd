// Package jira is the tracker façade: a client for the Jira REST API that
// returns canonical ticket entities.
//
// Cloud deployments speak REST v3 with Atlassian Document Format bodies;
// Server and Data Center speak REST v2 with wiki markup. With api_version
// "auto" the client starts on v3 and switches after DetectDeployment.
//
// # Usage
//
//	cfg := jira.DefaultConfig()
//	cfg.URL = "https://your-domain.atlassian.net"
//	cfg.Auth = auth.Credentials{
//		Scheme: auth.SchemeAPIToken,
//		Email:  "you@example.com",
//		Token:  os.Getenv("JIRA_TOKEN"),
//	}
//
//	client, err := jira.New(cfg, jira.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	issue, err := client.GetIssue(ctx, "PROJ-123")
//
// Reads are cached per tier (see package cache) and writes invalidate the
// issues they touch along with every cached search. Listings page lazily
// and stop at the configured item ceiling.
//
// # Optional subsystems
//
// Agile boards and sprints are probed once per client. When the subsystem is
// missing, GetBoards and GetSprints return empty results rather than errors.
//
// # Errors
//
// Transport failures carry the sentinels of package http:
//
//	if jira.IsNotFound(err) {
//		// missing
//	}
//	if errors.Is(err, trackerhttp.ErrRateLimited) {
//		// back off
//	}
//
// GetIssue reports a missing issue as (nil, nil).
package jira
