package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/randalmurphal/trackerkit/document"
	"github.com/randalmurphal/trackerkit/ticket"
)

// issueView is the JSON form of an issue. Descriptions are rendered as
// Markdown.
type issueView struct {
	Key         string     `json:"key"`
	Summary     string     `json:"summary"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Updated     time.Time  `json:"updated"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
}

func viewOf(i *ticket.Issue) issueView {
	v := issueView{
		Key:      i.Key,
		Summary:  i.Summary,
		Type:     i.Type.Name,
		Status:   i.Status.Name,
		Category: string(i.Status.Category),
		Labels:   i.Labels,
		Updated:  i.Updated,
		DueDate:  i.DueDate,
		URL:      i.URL,
	}
	if i.Priority != nil {
		v.Priority = i.Priority.Name
	}
	if i.Assignee != nil {
		v.Assignee = i.Assignee.DisplayName
	}
	if !i.Description.IsEmpty() {
		v.Description = document.ToMarkdown(i.Description)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIssue(w io.Writer, i *ticket.Issue) {
	v := viewOf(i)
	fmt.Fprintf(w, "%s  %s\n", v.Key, v.Summary)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Type:\t%s\n", v.Type)
	fmt.Fprintf(tw, "Status:\t%s (%s)\n", v.Status, v.Category)
	if v.Priority != "" {
		fmt.Fprintf(tw, "Priority:\t%s\n", v.Priority)
	}
	assignee := v.Assignee
	if assignee == "" {
		assignee = "Unassigned"
	}
	fmt.Fprintf(tw, "Assignee:\t%s\n", assignee)
	if len(v.Labels) > 0 {
		fmt.Fprintf(tw, "Labels:\t%v\n", v.Labels)
	}
	fmt.Fprintf(tw, "Updated:\t%s\n", v.Updated.Format(time.DateTime))
	if v.URL != "" {
		fmt.Fprintf(tw, "URL:\t%s\n", v.URL)
	}
	tw.Flush()
	if v.Description != "" {
		fmt.Fprintf(w, "\n%s\n", v.Description)
	}
}

func printIssueTable(w io.Writer, issues []ticket.Issue) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tASSIGNEE\tSUMMARY")
	for i := range issues {
		v := viewOf(&issues[i])
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Key, v.Status, orDash(v.Assignee), v.Summary)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
