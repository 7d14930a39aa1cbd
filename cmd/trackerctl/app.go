package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/config"
	clierrors "github.com/randalmurphal/trackerkit/errors"
	"github.com/randalmurphal/trackerkit/jira"
)

// app holds the global flags and the dependencies shared by all commands.
type app struct {
	profile string
	url     string
	json    bool
	verbose bool

	resolver *config.Resolver
	secrets  secretStore
	stdin    io.Reader

	// resolved is set by connect.
	resolved *config.Resolved
}

func newApp() *app {
	return &app{
		resolver: config.NewResolver(config.DefaultResolverConfig()),
		secrets:  keyringStore{},
		stdin:    os.Stdin,
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackerctl",
		Short: "Read and update tickets in Jira",
		Long: `trackerctl talks to Jira Cloud, Server and Data Center through the
trackerkit client: reads are cached, listings are paged and every result
is returned in one canonical shape regardless of deployment.

Run 'trackerctl profile login <name>' to store a token for a profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&a.profile, "profile", "p", "", "Profile to use (default: current profile)")
	cmd.PersistentFlags().StringVar(&a.url, "url", "", "Override the tracker URL")
	cmd.PersistentFlags().BoolVar(&a.json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")

	cmd.AddCommand(a.issueCommand(), a.projectsCommand(), a.profileCommand())
	return cmd
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// connect resolves the active profile, fills in the secret from the keyring
// when the environment has none, and stores a client in the command context.
func (a *app) connect(cmd *cobra.Command) error {
	res, err := a.resolver.ResolveWithFlags(a.profile, map[string]string{"url": a.url})
	if err != nil {
		return a.wrap(err)
	}
	a.resolved = res

	if field := secretField(&res.Config.Auth); field != nil && *field == "" {
		secret, err := a.secrets.Get(res.Profile)
		if err != nil {
			return a.wrap(fmt.Errorf("%w: profile %q: %w", clierrors.ErrNotConfigured, res.Profile, err))
		}
		*field = secret
	}

	logger := a.logger(cmd)
	for _, w := range a.resolver.Warnings {
		logger.Warn("config", "warning", w)
	}

	client, err := jira.New(res.Config, jira.WithLogger(logger))
	if err != nil {
		return a.wrap(err)
	}
	cmd.SetContext(jira.ContextWithClient(cmd.Context(), client))
	return nil
}

func clientFrom(ctx context.Context) *jira.Client {
	return jira.ClientFromContext(ctx)
}

// wrap turns err into a CLI error naming the active profile and server.
func (a *app) wrap(err error) error {
	opts := []clierrors.Option{clierrors.WithProfile(a.profile)}
	if a.resolved != nil {
		opts = append(opts,
			clierrors.WithProfile(a.resolved.Profile),
			clierrors.WithServer(a.resolved.Config.URL))
	}
	return clierrors.Wrap(err, opts...)
}

// secretField returns the credential field that holds the scheme's secret,
// or nil for schemes without one.
func secretField(creds *auth.Credentials) *string {
	switch creds.Scheme {
	case auth.SchemeBasic:
		return &creds.Password
	case auth.SchemeAPIToken, auth.SchemePAT, auth.SchemeBearer:
		return &creds.Token
	case auth.SchemeOAuth2:
		return &creds.AccessToken
	case auth.SchemeJWT:
		return &creds.SharedSecret
	}
	return nil
}
