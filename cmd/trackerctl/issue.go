package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/trackerkit/document"
	clierrors "github.com/randalmurphal/trackerkit/errors"
	"github.com/randalmurphal/trackerkit/jira"
)

func (a *app) issueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "issue",
		Short:             "Read and update issues",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.connect(cmd) },
	}
	cmd.AddCommand(
		a.issueGetCommand(),
		a.issueSearchCommand(),
		a.issueCommentCommand(),
		a.issueTransitionCommand(),
	)
	return cmd
}

func (a *app) issueGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := clientFrom(cmd.Context()).GetIssue(cmd.Context(), args[0])
			if err != nil {
				return a.wrap(err)
			}
			if issue == nil {
				return a.wrap(fmt.Errorf("%w: issue %s", clierrors.ErrNotFound, args[0]))
			}
			if a.json {
				return writeJSON(cmd.OutOrStdout(), viewOf(issue))
			}
			printIssue(cmd.OutOrStdout(), issue)
			return nil
		},
	}
}

func (a *app) issueSearchCommand() *cobra.Command {
	var q jira.SearchQuery
	var mine bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List issues matching a query",
		Long: `List issues matching a query.

Either pass raw JQL with --jql or combine the filter flags. Results are
ordered by last update unless the JQL carries its own ORDER BY.`,
		Example: `  trackerctl issue search --project PROJ --status "To Do" --status "In Progress"
  trackerctl issue search --jql 'labels = backend ORDER BY created ASC' --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mine {
				q.Assignee = jira.AssigneeCurrentUser
			}
			issues, err := clientFrom(cmd.Context()).SearchIssues(cmd.Context(), q)
			if err != nil {
				return a.wrap(err)
			}
			if a.json {
				views := make([]issueView, len(issues))
				for i := range issues {
					views[i] = viewOf(&issues[i])
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			printIssueTable(cmd.OutOrStdout(), issues)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.JQL, "jql", "", "Raw JQL; overrides the filter flags")
	f.StringSliceVar(&q.Projects, "project", nil, "Project key (repeatable)")
	f.StringSliceVar(&q.Statuses, "status", nil, "Status name (repeatable)")
	f.StringSliceVar(&q.Types, "type", nil, "Issue type (repeatable)")
	f.StringSliceVar(&q.Labels, "label", nil, "Label (repeatable)")
	f.StringVar(&q.Text, "text", "", "Full-text match")
	f.BoolVar(&mine, "mine", false, "Only issues assigned to you")
	f.StringVar(&q.OrderBy, "order-by", "", "Sort clause, e.g. \"created ASC\"")
	f.IntVar(&q.MaxResults, "limit", 0, "Maximum number of issues (default: profile item ceiling)")
	cmd.MarkFlagsMutuallyExclusive("jql", "project")
	cmd.MarkFlagsMutuallyExclusive("jql", "status")
	return cmd
}

func (a *app) issueCommentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <key> <markdown>...",
		Short: "Add a comment",
		Long: `Add a comment to an issue. The text is Markdown and is converted to
the deployment's body format. Use "-" to read it from stdin.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			if text == "-" {
				body, err := readAll(a.stdin)
				if err != nil {
					return err
				}
				text = body
			}

			c, err := clientFrom(cmd.Context()).AddComment(cmd.Context(), args[0], document.FromMarkdown(text))
			if err != nil {
				return a.wrap(err)
			}
			if a.json {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"id": c.ID, "issue": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s to %s\n", c.ID, args[0])
			return nil
		},
	}
}

func (a *app) issueTransitionCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "transition <key> [status or transition name]",
		Short: "Move an issue through its workflow",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFrom(ctx)
			key := args[0]

			if list || len(args) == 1 {
				transitions, err := client.GetTransitions(ctx, key)
				if err != nil {
					return a.wrap(err)
				}
				if a.json {
					return writeJSON(cmd.OutOrStdout(), transitions)
				}
				for _, t := range transitions {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s -> %s\n", t.ID, t.Name, t.TargetStatus.Name)
				}
				return nil
			}

			if err := client.TransitionIssueByName(ctx, key, args[1]); err != nil {
				return a.wrap(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", key, args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List the available transitions")
	return cmd
}
