// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// RepositoryIssue represents a GitHub issue fetched from the REST API with
// its essential fields.
type RepositoryIssue struct {
	// Number is the issue number in GitHub (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// State is the current state of the issue
	State string

	// CreatedAt is the timestamp when the issue was created
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the issue was last updated
	UpdatedAt time.Time

	// ClosedAt is the timestamp when the issue was closed
	ClosedAt *time.Time

	// HTMLURL is the issue's web URL
	HTMLURL string

	// Body is the full body text of the issue
	Body string

	// Labels is a slice of label names attached to the issue
	Labels []string

	// CreatedBy is the login of the issue creator
	CreatedBy string

	// ClosedBy is the login of whoever closed the issue, empty while open
	ClosedBy string

	// CommentsCount is the number of comments reported by the API
	CommentsCount int
}

// IssueComment is one comment on an issue, reduced to audit-relevant fields.
type IssueComment struct {
	CreatedAt time.Time
	Author    string
}

// TimelineEvent is one raw issue timeline entry. Only the fields relevant to
// audit-event parsing are carried; absent ones stay empty.
type TimelineEvent struct {
	Event     string
	CreatedAt time.Time
	Actor     string
	Label     string
	Assignee  string
	Milestone string
}

// formatTime renders a timestamp for persistence, empty when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
