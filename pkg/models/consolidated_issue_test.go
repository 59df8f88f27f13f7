package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuditFetcher scripts the audit sub-fetches and counts calls.
type fakeAuditFetcher struct {
	comments      []IssueComment
	commentsErr   error
	commentCalls  int
	timeline      []TimelineEvent
	timelineErr   error
	timelineCalls int
}

func (f *fakeAuditFetcher) ListIssueComments(ctx context.Context, org, repo string, number int) ([]IssueComment, error) {
	f.commentCalls++
	return f.comments, f.commentsErr
}

func (f *fakeAuditFetcher) ListIssueTimeline(ctx context.Context, org, repo string, number int) ([]TimelineEvent, error) {
	f.timelineCalls++
	return f.timeline, f.timelineErr
}

func testRepositoryIssue() *RepositoryIssue {
	closed := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	return &RepositoryIssue{
		Number:    42,
		Title:     "Document the export flow",
		State:     "closed",
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		ClosedAt:  &closed,
		HTMLURL:   "https://github.com/acme/widgets/issues/42",
		Body:      "Exports need documentation.",
		Labels:    []string{LabelFeature, "docs"},
		CreatedBy: "alice",
		ClosedBy:  "bob",
	}
}

func TestNewConsolidatedIssueDefaults(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", testRepositoryIssue(), nil)

	assert.Equal(t, "acme/widgets", c.RepositoryID())
	assert.Equal(t, "acme", c.OrganizationName())
	assert.Equal(t, "widgets", c.RepositoryName())
	assert.Equal(t, 42, c.Number())
	assert.Equal(t, TypeIssue, c.IssueType)
	assert.False(t, c.LinkedToProject())
	assert.Empty(t, c.ProjectStatuses())
	assert.Empty(t, c.Errors())
}

func TestConsolidatedIssueNilIssue(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", nil, nil)

	assert.Equal(t, 0, c.Number())
	assert.Equal(t, "", c.Title())
	assert.Equal(t, "", c.CreatedAt())
	assert.Equal(t, "", c.ClosedAt())
	assert.Nil(t, c.Labels())
	assert.Empty(t, c.GetAuditData(context.Background()))
}

func TestUpdateWithProjectData(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", testRepositoryIssue(), nil)

	c.UpdateWithProjectData(ProjectStatus{ProjectTitle: "Roadmap", Status: "Todo"})
	c.UpdateWithProjectData(ProjectStatus{ProjectTitle: "Sprint", Status: "Done"})

	assert.True(t, c.LinkedToProject())
	require.Len(t, c.ProjectStatuses(), 2)
	assert.Equal(t, "Roadmap", c.ProjectStatuses()[0].ProjectTitle)
	assert.Equal(t, "Sprint", c.ProjectStatuses()[1].ProjectTitle)
}

func TestGetAuditDataCreatorAndCloser(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", testRepositoryIssue(), &fakeAuditFetcher{})

	data := c.GetAuditData(context.Background())

	assert.Equal(t, "alice", data["created_by"])
	assert.Equal(t, "bob", data["closed_by"])
	// no comments on the issue, so no comment keys at all
	_, ok := data["comments_count"]
	assert.False(t, ok)
	_, ok = data["last_commented_at"]
	assert.False(t, ok)
	_, ok = data["audit_events"]
	assert.False(t, ok)
}

func TestGetAuditDataWithComments(t *testing.T) {
	issue := testRepositoryIssue()
	issue.CommentsCount = 2
	fetcher := &fakeAuditFetcher{
		comments: []IssueComment{
			{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Author: "carol"},
			{CreatedAt: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Author: "dave"},
		},
	}
	c := NewConsolidatedIssue("acme/widgets", issue, fetcher)

	data := c.GetAuditData(context.Background())

	assert.Equal(t, 2, data["comments_count"])
	assert.Equal(t, "2024-03-01T11:00:00Z", data["last_commented_at"])
	assert.Equal(t, "dave", data["last_commented_by"])
}

func TestGetAuditDataCommentFetchFailure(t *testing.T) {
	issue := testRepositoryIssue()
	issue.CommentsCount = 3
	fetcher := &fakeAuditFetcher{commentsErr: errors.New("boom")}
	c := NewConsolidatedIssue("acme/widgets", issue, fetcher)

	data := c.GetAuditData(context.Background())

	// the count from the primary fetch survives, the comment detail does not
	assert.Equal(t, "alice", data["created_by"])
	assert.Equal(t, 3, data["comments_count"])
	_, ok := data["last_commented_at"]
	assert.False(t, ok)
	_, ok = data["last_commented_by"]
	assert.False(t, ok)
}

func TestGetAuditDataFetchedAtMostOnce(t *testing.T) {
	issue := testRepositoryIssue()
	issue.CommentsCount = 1
	fetcher := &fakeAuditFetcher{
		comments: []IssueComment{{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Author: "carol"}},
	}
	c := NewConsolidatedIssue("acme/widgets", issue, fetcher)

	first := c.GetAuditData(context.Background())
	second := c.GetAuditData(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.commentCalls)
	assert.Equal(t, 1, fetcher.timelineCalls)
}

func TestGetAuditDataFailureNotRetried(t *testing.T) {
	issue := testRepositoryIssue()
	issue.CommentsCount = 1
	fetcher := &fakeAuditFetcher{
		commentsErr: errors.New("boom"),
		timelineErr: errors.New("boom"),
	}
	c := NewConsolidatedIssue("acme/widgets", issue, fetcher)

	c.GetAuditData(context.Background())
	c.GetAuditData(context.Background())

	assert.Equal(t, 1, fetcher.commentCalls)
	assert.Equal(t, 1, fetcher.timelineCalls)
}

func TestGetAuditDataTimelineEvents(t *testing.T) {
	issue := testRepositoryIssue()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &fakeAuditFetcher{
		timeline: []TimelineEvent{
			{Event: "labeled", CreatedAt: ts, Actor: "alice", Label: "docs"},
			{Event: "cross-referenced", CreatedAt: ts, Actor: "bot"},
			{Event: "closed", CreatedAt: ts, Actor: "bob"},
		},
	}
	c := NewConsolidatedIssue("acme/widgets", issue, fetcher)

	data := c.GetAuditData(context.Background())

	events, ok := data["audit_events"].([]AuditEvent)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, "labeled", events[0].Action)
	assert.Equal(t, "docs", events[0].Label)
	assert.Equal(t, "closed", events[1].Action)
	assert.Equal(t, "bob", events[1].Actor)
}

func TestGetAuditDataTimelineFailure(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", testRepositoryIssue(), &fakeAuditFetcher{
		timelineErr: errors.New("403 forbidden"),
	})

	data := c.GetAuditData(context.Background())

	assert.Equal(t, "alice", data["created_by"])
	_, ok := data["audit_events"]
	assert.False(t, ok)
}

func TestParseTimelineEvent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    TimelineEvent
		expected *AuditEvent
	}{
		{
			name:  "labeled",
			entry: TimelineEvent{Event: "labeled", CreatedAt: ts, Actor: "alice", Label: "docs"},
			expected: &AuditEvent{
				Action: "labeled", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Label: "docs",
			},
		},
		{
			name:  "unlabeled",
			entry: TimelineEvent{Event: "unlabeled", CreatedAt: ts, Actor: "alice", Label: "docs"},
			expected: &AuditEvent{
				Action: "unlabeled", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Label: "docs",
			},
		},
		{
			name:  "assigned",
			entry: TimelineEvent{Event: "assigned", CreatedAt: ts, Actor: "alice", Assignee: "bob"},
			expected: &AuditEvent{
				Action: "assigned", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Assignee: "bob",
			},
		},
		{
			name:  "unassigned",
			entry: TimelineEvent{Event: "unassigned", CreatedAt: ts, Actor: "alice", Assignee: "bob"},
			expected: &AuditEvent{
				Action: "unassigned", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Assignee: "bob",
			},
		},
		{
			name:  "milestoned",
			entry: TimelineEvent{Event: "milestoned", CreatedAt: ts, Actor: "alice", Milestone: "v1.0"},
			expected: &AuditEvent{
				Action: "milestoned", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Milestone: "v1.0",
			},
		},
		{
			name:  "demilestoned",
			entry: TimelineEvent{Event: "demilestoned", CreatedAt: ts, Actor: "alice", Milestone: "v1.0"},
			expected: &AuditEvent{
				Action: "demilestoned", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Milestone: "v1.0",
			},
		},
		{
			name:  "reopened",
			entry: TimelineEvent{Event: "reopened", CreatedAt: ts, Actor: "alice"},
			expected: &AuditEvent{
				Action: "reopened", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice",
			},
		},
		{
			name:  "closed",
			entry: TimelineEvent{Event: "closed", CreatedAt: ts, Actor: "bob"},
			expected: &AuditEvent{
				Action: "closed", Timestamp: "2024-03-01T12:00:00Z", Actor: "bob",
			},
		},
		{
			name:     "irrelevant kind",
			entry:    TimelineEvent{Event: "cross-referenced", CreatedAt: ts, Actor: "bot"},
			expected: nil,
		},
		{
			name:  "labeled carries no assignee or milestone",
			entry: TimelineEvent{Event: "labeled", CreatedAt: ts, Actor: "alice", Label: "docs", Assignee: "x", Milestone: "y"},
			expected: &AuditEvent{
				Action: "labeled", Timestamp: "2024-03-01T12:00:00Z", Actor: "alice", Label: "docs",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseTimelineEvent(tt.entry))
		})
	}
}

func TestLabelsCached(t *testing.T) {
	issue := testRepositoryIssue()
	c := NewConsolidatedIssue("acme/widgets", issue, nil)

	first := c.Labels()
	issue.Labels = []string{"mutated"}
	second := c.Labels()

	assert.Equal(t, first, second)
}

func TestConvertToIssueForPersist(t *testing.T) {
	c := NewConsolidatedIssue("acme/widgets", testRepositoryIssue(), &fakeAuditFetcher{})
	c.IssueType = TypeFeature
	c.UpdateWithProjectData(ProjectStatus{ProjectTitle: "Roadmap", Status: "Todo"})
	c.AddError("multiple_labels", "too many labels")

	issue := c.ConvertToIssueForPersist()

	assert.Equal(t, "acme/widgets", issue.RepositoryID)
	assert.Equal(t, "Document the export flow", issue.Title)
	assert.Equal(t, 42, issue.IssueNumber)
	assert.Equal(t, TypeFeature, issue.IssueType)
	assert.Equal(t, "closed", issue.State)
	assert.Equal(t, "2024-03-01T08:00:00Z", issue.CreatedAt)
	assert.Equal(t, "2024-03-02T09:30:00Z", issue.ClosedAt)
	assert.True(t, issue.LinkedToProject)
	require.Len(t, issue.ProjectStatuses, 1)
	assert.Equal(t, map[string]string{"multiple_labels": "too many labels"}, issue.Errors)
	assert.True(t, issue.IsValid())

	// audit data is merged at write time, never into the record itself
	entry, err := issue.ToMap()
	require.NoError(t, err)
	_, ok := entry["created_by"]
	assert.False(t, ok)
}
