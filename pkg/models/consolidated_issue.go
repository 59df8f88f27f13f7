package models

import (
	"context"
	"strings"

	"github.com/pavelurbanek/docmine/internal/logging"
)

// AuditFetcher provides the secondary per-issue API calls needed for audit
// enrichment. Implemented by the GitHub REST client; faked in tests.
type AuditFetcher interface {
	ListIssueComments(ctx context.Context, organizationName, repositoryName string, number int) ([]IssueComment, error)
	ListIssueTimeline(ctx context.Context, organizationName, repositoryName string, number int) ([]TimelineEvent, error)
}

// AuditEvent is one normalized audit-trail entry. Exactly one of Label,
// Assignee or Milestone is set, matching the action kind.
type AuditEvent struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor,omitempty"`
	Label     string `json:"label,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	Milestone string `json:"milestone,omitempty"`
}

// AuditData is the lazily-computed audit bundle of one consolidated issue.
type AuditData struct {
	CreatedBy       string
	ClosedBy        string
	CommentsCount   int
	LastCommentedAt string
	LastCommentedBy string
	Events          []AuditEvent
}

// relevantTimelineEvents is the fixed set of timeline event kinds kept in the
// audit trail.
var relevantTimelineEvents = map[string]struct{}{
	"labeled":      {},
	"unlabeled":    {},
	"assigned":     {},
	"unassigned":   {},
	"milestoned":   {},
	"demilestoned": {},
	"reopened":     {},
	"closed":       {},
}

// ConsolidatedIssue merges one repository issue with zero-or-more
// project-board status bundles under a single composite key. Audit data is
// fetched at most once, on first access, and cached thereafter.
type ConsolidatedIssue struct {
	repositoryID string
	issue        *RepositoryIssue
	fetcher      AuditFetcher

	IssueType IssueType

	linkedToProject bool
	projectStatuses []ProjectStatus

	// labels caches the issue's label set to avoid repeated traversal
	labels []string

	errors map[string]string

	// audit is nil until the first (and only) enrichment attempt
	audit *AuditData
}

// NewConsolidatedIssue creates the merge unit for one composite key. The
// repository issue and fetcher may be nil; all accessors then return zero
// values and audit data stays empty.
func NewConsolidatedIssue(repositoryID string, issue *RepositoryIssue, fetcher AuditFetcher) *ConsolidatedIssue {
	return &ConsolidatedIssue{
		repositoryID: repositoryID,
		issue:        issue,
		fetcher:      fetcher,
		IssueType:    TypeIssue,
		errors:       make(map[string]string),
	}
}

// RepositoryID returns the "org/repo" identifier.
func (c *ConsolidatedIssue) RepositoryID() string {
	return c.repositoryID
}

// OrganizationName returns the organization part of the repository id.
func (c *ConsolidatedIssue) OrganizationName() string {
	parts := strings.Split(c.repositoryID, "/")
	if len(parts) == 2 {
		return parts[0]
	}
	return ""
}

// RepositoryName returns the repository part of the repository id.
func (c *ConsolidatedIssue) RepositoryName() string {
	parts := strings.Split(c.repositoryID, "/")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// Number returns the issue number, 0 when no repository issue is attached.
func (c *ConsolidatedIssue) Number() int {
	if c.issue == nil {
		return 0
	}
	return c.issue.Number
}

// Title returns the issue title.
func (c *ConsolidatedIssue) Title() string {
	if c.issue == nil {
		return ""
	}
	return c.issue.Title
}

// State returns the issue state.
func (c *ConsolidatedIssue) State() string {
	if c.issue == nil {
		return ""
	}
	return c.issue.State
}

// CreatedAt returns the creation timestamp as an RFC3339 string.
func (c *ConsolidatedIssue) CreatedAt() string {
	if c.issue == nil {
		return ""
	}
	return formatTime(c.issue.CreatedAt)
}

// UpdatedAt returns the last-update timestamp as an RFC3339 string.
func (c *ConsolidatedIssue) UpdatedAt() string {
	if c.issue == nil {
		return ""
	}
	return formatTime(c.issue.UpdatedAt)
}

// ClosedAt returns the close timestamp as an RFC3339 string, empty while open.
func (c *ConsolidatedIssue) ClosedAt() string {
	if c.issue == nil || c.issue.ClosedAt == nil {
		return ""
	}
	return formatTime(*c.issue.ClosedAt)
}

// HTMLURL returns the issue's web URL.
func (c *ConsolidatedIssue) HTMLURL() string {
	if c.issue == nil {
		return ""
	}
	return c.issue.HTMLURL
}

// Body returns the issue description.
func (c *ConsolidatedIssue) Body() string {
	if c.issue == nil {
		return ""
	}
	return c.issue.Body
}

// Labels returns the issue's label names, cached after the first access.
func (c *ConsolidatedIssue) Labels() []string {
	if c.labels != nil {
		return c.labels
	}
	if c.issue == nil {
		return nil
	}
	c.labels = c.issue.Labels
	return c.labels
}

// LinkedToProject reports whether any project-board data has been merged in.
func (c *ConsolidatedIssue) LinkedToProject() bool {
	return c.linkedToProject
}

// ProjectStatuses returns the merged status bundles in merge order.
func (c *ConsolidatedIssue) ProjectStatuses() []ProjectStatus {
	return c.projectStatuses
}

// Errors returns the error bag accumulated during consolidation.
func (c *ConsolidatedIssue) Errors() map[string]string {
	return c.errors
}

// AddError records a consolidation error under its kind.
func (c *ConsolidatedIssue) AddError(kind, message string) {
	c.errors[kind] = message
}

// UpdateWithProjectData marks the issue as project-linked and appends one
// status bundle. Calling it N times yields N entries, in call order.
func (c *ConsolidatedIssue) UpdateWithProjectData(status ProjectStatus) {
	c.linkedToProject = true
	c.projectStatuses = append(c.projectStatuses, status)
}

// ensureAuditData runs the audit enrichment at most once. The audit value is
// assigned before any sub-fetch so a failing fetch is never retried. A nil
// repository issue makes this a no-op.
func (c *ConsolidatedIssue) ensureAuditData(ctx context.Context) {
	if c.audit != nil || c.issue == nil {
		return
	}

	audit := &AuditData{}
	c.audit = audit

	audit.CreatedBy = c.issue.CreatedBy
	audit.ClosedBy = c.issue.ClosedBy
	audit.CommentsCount = c.issue.CommentsCount

	if c.issue.CommentsCount > 0 && c.fetcher != nil {
		comments, err := c.fetcher.ListIssueComments(ctx, c.OrganizationName(), c.RepositoryName(), c.Number())
		if err != nil {
			logging.Debug("could not fetch issue comments",
				"repository", c.repositoryID,
				"issue_number", c.Number(),
				"error", err)
		} else if len(comments) > 0 {
			last := comments[len(comments)-1]
			audit.LastCommentedAt = formatTime(last.CreatedAt)
			audit.LastCommentedBy = last.Author
		}
	}

	audit.Events = c.fetchAuditEvents(ctx)
}

// fetchAuditEvents retrieves the issue timeline and keeps the relevant event
// kinds. An unavailable timeline (e.g. insufficient permission) yields an
// empty list.
func (c *ConsolidatedIssue) fetchAuditEvents(ctx context.Context) []AuditEvent {
	if c.issue == nil || c.fetcher == nil {
		return nil
	}

	timeline, err := c.fetcher.ListIssueTimeline(ctx, c.OrganizationName(), c.RepositoryName(), c.Number())
	if err != nil {
		logging.Debug("issue timeline not available",
			"repository", c.repositoryID,
			"issue_number", c.Number(),
			"error", err)
		return nil
	}

	var events []AuditEvent
	for _, entry := range timeline {
		if event := parseTimelineEvent(entry); event != nil {
			events = append(events, *event)
		}
	}
	return events
}

// parseTimelineEvent normalizes one timeline entry, nil for irrelevant kinds.
func parseTimelineEvent(entry TimelineEvent) *AuditEvent {
	if _, ok := relevantTimelineEvents[entry.Event]; !ok {
		return nil
	}

	event := &AuditEvent{
		Action:    entry.Event,
		Timestamp: formatTime(entry.CreatedAt),
		Actor:     entry.Actor,
	}

	switch entry.Event {
	case "labeled", "unlabeled":
		event.Label = entry.Label
	case "assigned", "unassigned":
		event.Assignee = entry.Assignee
	case "milestoned", "demilestoned":
		event.Milestone = entry.Milestone
	}

	return event
}

// GetAuditData triggers the enrichment if needed and returns only the
// non-empty audit fields. The result governs exactly which audit keys appear
// in the persisted record.
func (c *ConsolidatedIssue) GetAuditData(ctx context.Context) map[string]interface{} {
	c.ensureAuditData(ctx)

	data := map[string]interface{}{}
	if c.audit == nil {
		return data
	}

	if c.audit.CreatedBy != "" {
		data["created_by"] = c.audit.CreatedBy
	}
	if c.audit.ClosedBy != "" {
		data["closed_by"] = c.audit.ClosedBy
	}
	if c.audit.CommentsCount > 0 {
		data["comments_count"] = c.audit.CommentsCount
		if c.audit.LastCommentedAt != "" {
			data["last_commented_at"] = c.audit.LastCommentedAt
		}
		if c.audit.LastCommentedBy != "" {
			data["last_commented_by"] = c.audit.LastCommentedBy
		}
	}
	if len(c.audit.Events) > 0 {
		data["audit_events"] = c.audit.Events
	}

	return data
}

// ConvertToIssueForPersist builds the persistable record. Audit data is not
// included here; it is merged separately at write time.
func (c *ConsolidatedIssue) ConvertToIssueForPersist() *Issue {
	issue := NewIssue(c.IssueType, c.repositoryID, c.Title(), c.Number())

	issue.State = c.State()
	issue.CreatedAt = c.CreatedAt()
	issue.UpdatedAt = c.UpdatedAt()
	issue.ClosedAt = c.ClosedAt()
	issue.HTMLURL = c.HTMLURL()
	issue.Body = c.Body()
	issue.Labels = c.Labels()

	issue.LinkedToProject = c.linkedToProject
	issue.ProjectStatuses = c.projectStatuses

	issue.AddErrors(c.errors)

	return issue
}
