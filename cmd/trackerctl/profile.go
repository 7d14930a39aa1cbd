package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/trackerkit/config"
)

func (a *app) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage connection profiles",
	}
	cmd.AddCommand(
		a.profileListCommand(),
		a.profileUseCommand(),
		a.profileLoginCommand(),
		a.profileLogoutCommand(),
	)
	return cmd
}

func (a *app) profileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles from the global and local config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current := ""
			if res, err := a.resolver.Resolve(a.profile); err == nil {
				current = res.Profile
			}
			names := a.resolver.Profiles()
			if a.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"current": current, "profiles": names})
			}
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func (a *app) profileUseCommand() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Select the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := config.ScopeGlobal
			if local {
				scope = config.ScopeLocal
			}
			if err := a.resolver.SetCurrent(scope, args[0]); err != nil {
				return a.wrap(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using profile %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Write the selection to the repository's .trackerkit.yaml")
	return cmd
}

func (a *app) profileLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <name>",
		Short: "Store the secret of a profile in the system keyring",
		Long: `Read a token, password or shared secret from stdin and store it in the
system keyring under the given profile. The profile must already exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := a.resolver.Resolve(name); err != nil {
				return a.wrap(err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Secret for %s: ", name)
			secret, err := readLine(a.stdin)
			if err != nil {
				return err
			}
			if secret == "" {
				return errEmptySecret
			}
			if err := a.secrets.Set(name, secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored secret for %s\n", name)
			return nil
		},
	}
}

func (a *app) profileLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <name>",
		Short: "Remove the stored secret of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.secrets.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed secret for %s\n", args[0])
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
