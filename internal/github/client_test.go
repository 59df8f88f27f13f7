package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServerBackedClient wires a Client against an httptest server.
func newServerBackedClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	apiClient.BaseURL = baseURL

	return &Client{client: apiClient, limiter: NewRateLimiter()}
}

func TestConvertIssue(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	closedAt := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)

	issue := &github.Issue{
		Number:    github.Int(42),
		Title:     github.String("Document the export flow"),
		State:     github.String("closed"),
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
		ClosedAt:  &closedAt,
		HTMLURL:   github.String("https://github.com/acme/widgets/issues/42"),
		Body:      github.String("Exports need documentation."),
		Labels: []*github.Label{
			{Name: github.String("DocumentedFeature")},
			{Name: github.String("docs")},
		},
		User:     &github.User{Login: github.String("alice")},
		ClosedBy: &github.User{Login: github.String("bob")},
		Comments: github.Int(3),
	}

	converted := convertIssue(issue)

	assert.Equal(t, 42, converted.Number)
	assert.Equal(t, "Document the export flow", converted.Title)
	assert.Equal(t, "closed", converted.State)
	assert.Equal(t, createdAt, converted.CreatedAt)
	assert.Equal(t, updatedAt, converted.UpdatedAt)
	require.NotNil(t, converted.ClosedAt)
	assert.Equal(t, closedAt, *converted.ClosedAt)
	assert.Equal(t, []string{"DocumentedFeature", "docs"}, converted.Labels)
	assert.Equal(t, "alice", converted.CreatedBy)
	assert.Equal(t, "bob", converted.ClosedBy)
	assert.Equal(t, 3, converted.CommentsCount)
}

func TestConvertIssueOpenWithoutCloser(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	issue := &github.Issue{
		Number:    github.Int(7),
		Title:     github.String("Open issue"),
		State:     github.String("open"),
		CreatedAt: &createdAt,
	}

	converted := convertIssue(issue)

	assert.Nil(t, converted.ClosedAt)
	assert.Equal(t, "", converted.ClosedBy)
	assert.Empty(t, converted.Labels)
}

func TestGetIssuesWithLabelPaginatesAndSkipsPullRequests(t *testing.T) {
	client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/issues", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "DocumentedFeature", r.URL.Query().Get("labels"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "" || r.URL.Query().Get("page") == "1" {
			w.Header().Set("Link", `<`+r.URL.Path+`?page=2>; rel="next"`)
			fmt.Fprint(w, `[
				{"number": 1, "title": "First", "state": "open"},
				{"number": 2, "title": "A pull request", "state": "open", "pull_request": {"url": "x"}}
			]`)
			return
		}
		fmt.Fprint(w, `[{"number": 3, "title": "Third", "state": "closed"}]`)
	}))

	issues, err := client.GetIssuesWithLabel(context.Background(), "acme", "widgets", "DocumentedFeature")
	require.NoError(t, err)

	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, 3, issues[1].Number)
}

func TestGetIssuesWithLabelServerError(t *testing.T) {
	client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetIssuesWithLabel(context.Background(), "acme", "widgets", "DocumentedFeature")
	assert.Error(t, err)
}

func TestCheckRepository(t *testing.T) {
	t.Run("accessible", func(t *testing.T) {
		client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/repos/acme/widgets", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"name": "widgets", "full_name": "acme/widgets"}`)
		}))

		assert.NoError(t, client.CheckRepository(context.Background(), "acme", "widgets"))
	})

	t.Run("not found", func(t *testing.T) {
		client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		err := client.CheckRepository(context.Background(), "acme", "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "acme/missing")
	})
}

func TestListIssueComments(t *testing.T) {
	client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/issues/42/comments", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"created_at": "2024-03-01T10:00:00Z", "user": {"login": "carol"}},
			{"created_at": "2024-03-01T11:00:00Z", "user": {"login": "dave"}}
		]`)
	}))

	comments, err := client.ListIssueComments(context.Background(), "acme", "widgets", 42)
	require.NoError(t, err)

	require.Len(t, comments, 2)
	assert.Equal(t, "carol", comments[0].Author)
	assert.Equal(t, "dave", comments[1].Author)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), comments[1].CreatedAt)
}

func TestListIssueTimeline(t *testing.T) {
	client := newServerBackedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/issues/42/timeline", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"event": "labeled", "created_at": "2024-03-01T12:00:00Z", "actor": {"login": "alice"}, "label": {"name": "docs"}},
			{"event": "closed", "created_at": "2024-03-02T09:30:00Z", "actor": {"login": "bob"}}
		]`)
	}))

	timeline, err := client.ListIssueTimeline(context.Background(), "acme", "widgets", 42)
	require.NoError(t, err)

	require.Len(t, timeline, 2)
	assert.Equal(t, "labeled", timeline[0].Event)
	assert.Equal(t, "docs", timeline[0].Label)
	assert.Equal(t, "alice", timeline[0].Actor)
	assert.Equal(t, "closed", timeline[1].Event)
	assert.Equal(t, "bob", timeline[1].Actor)
}
