package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultOrderBy is appended to queries that carry no ORDER BY clause.
const DefaultOrderBy = "updated DESC"

// Assignee shortcuts for SearchQuery.Assignee.
const (
	AssigneeCurrentUser = "currentUser()"
	AssigneeUnassigned  = "EMPTY"
)

// SearchQuery describes an issue search. When JQL is set it is used as-is
// (plus a default ordering); otherwise the structured fields are combined
// with AND.
type SearchQuery struct {
	JQL string

	Projects []string
	Statuses []string
	Types    []string
	Labels   []string

	// Assignee is an account id (Cloud), a username (Server), or one of
	// AssigneeCurrentUser and AssigneeUnassigned.
	Assignee string

	// Text is matched against summary, description and comments.
	Text string

	UpdatedSince time.Time

	// OrderBy replaces DefaultOrderBy, e.g. "created ASC".
	OrderBy string

	// Fields limits the returned fields. Empty requests the fields the
	// canonical Issue needs.
	Fields []string

	// MaxResults caps the number of issues returned. It only narrows the
	// client's item ceiling; zero or negative values use the ceiling as is.
	MaxResults int
}

var (
	orderByRegex = regexp.MustCompile(`(?i)\border\s+by\b`)
	// jqlLiteral matches double or single quoted JQL strings, escapes included.
	jqlLiteral = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
)

// hasOrderBy reports whether raw JQL carries its own ORDER BY outside of
// string literals.
func hasOrderBy(jql string) bool {
	return orderByRegex.MatchString(jqlLiteral.ReplaceAllString(jql, `""`))
}

// BuildJQL renders the query. Structured queries always get an ORDER BY;
// raw JQL keeps its own when it has one.
func (q SearchQuery) BuildJQL() string {
	where := strings.TrimSpace(q.JQL)
	if where != "" && hasOrderBy(where) {
		return where
	}
	if where == "" {
		where = strings.Join(q.clauses(), " AND ")
	}

	order := q.OrderBy
	if order == "" {
		order = DefaultOrderBy
	}
	if where == "" {
		return "ORDER BY " + order
	}
	return where + " ORDER BY " + order
}

func (q SearchQuery) clauses() []string {
	var clauses []string
	if c := inClause("project", q.Projects); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("status", q.Statuses); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("issuetype", q.Types); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("labels", q.Labels); c != "" {
		clauses = append(clauses, c)
	}

	switch q.Assignee {
	case "":
	case AssigneeCurrentUser:
		clauses = append(clauses, "assignee = currentUser()")
	case AssigneeUnassigned:
		clauses = append(clauses, "assignee is EMPTY")
	default:
		clauses = append(clauses, "assignee = "+quoteJQL(q.Assignee))
	}

	if q.Text != "" {
		clauses = append(clauses, "text ~ "+quoteJQL(q.Text))
	}
	if !q.UpdatedSince.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated >= %s", quoteJQL(q.UpdatedSince.Format("2006-01-02 15:04"))))
	}
	return clauses
}

func inClause(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			quoted = append(quoted, quoteJQL(v))
		}
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return field + " = " + quoted[0]
	default:
		return field + " in (" + strings.Join(quoted, ", ") + ")"
	}
}

var jqlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteJQL quotes a JQL string literal.
func quoteJQL(s string) string {
	return `"` + jqlEscaper.Replace(s) + `"`
}
