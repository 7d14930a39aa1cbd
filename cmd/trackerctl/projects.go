package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) projectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List the projects visible to you",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return a.connect(cmd) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := clientFrom(cmd.Context()).GetProjects(cmd.Context())
			if err != nil {
				return a.wrap(err)
			}
			if a.json {
				type projectView struct {
					Key  string `json:"key"`
					Name string `json:"name"`
					Lead string `json:"lead,omitempty"`
				}
				views := make([]projectView, len(projects))
				for i, p := range projects {
					views[i] = projectView{Key: p.Key, Name: p.Name}
					if p.Lead != nil {
						views[i].Lead = p.Lead.DisplayName
					}
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\n", p.Key, p.Name)
			}
			return tw.Flush()
		},
	}
}
