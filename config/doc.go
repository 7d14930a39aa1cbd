// Package config resolves tracker connection profiles.
//
// Profiles live in YAML files with a current-profile selector:
//
//	current: work
//	profiles:
//	  work:
//	    url: https://example.atlassian.net
//	    auth:
//	      type: api_token
//	      email: me@example.com
//	    rate_limit:
//	      requests_per_second: 5
//
// Precedence, highest first:
//  1. Command-line flags (ResolveWithFlags)
//  2. Environment variables (TRACKERKIT_URL, TRACKERKIT_EMAIL, TRACKERKIT_TOKEN, ...)
//  3. Local config (.trackerkit.yaml in the git root)
//  4. Global config (~/.config/trackerkit/config.yaml)
//  5. jira.DefaultConfig
//
// The profile itself is chosen by an explicit name, then TRACKERKIT_PROFILE,
// then the local selector, then the global one, then "default".
//
//	resolver := config.NewResolver(config.DefaultResolverConfig())
//	res, err := resolver.Resolve("")
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Profile, res.Source("auth.email"))
//	client, err := jira.New(res.Config)
//
// SaveProfile never writes secrets; tokens belong in the OS keyring or the
// environment.
package config
