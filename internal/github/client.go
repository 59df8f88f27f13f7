// Package github provides functionality for interacting with the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/pavelurbanek/docmine/internal/config"
	"github.com/pavelurbanek/docmine/internal/logging"
	"github.com/pavelurbanek/docmine/pkg/models"
)

// issuesPerPage is the platform's maximum page size for list endpoints.
const issuesPerPage = 100

// Client encapsulates the GitHub API client. All remote calls go through the
// rate limiter.
type Client struct {
	client  *github.Client
	limiter *RateLimiter
}

// NewClient creates a new GitHub API client using configuration from
// environment variables, authenticates and tests the connection.
func NewClient() (*Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return NewClientWithToken(cfg.GitHub.Token, cfg.GitHub.Domain)
}

// NewClientWithToken creates a client for the given token. An empty domain
// targets the public API, anything else a GitHub Enterprise installation.
func NewClientWithToken(token, domain string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	if domain == "" {
		domain = "github.com"
	}

	// Construct API URL based on domain
	apiURL := "https://api.github.com/"
	if domain != "github.com" {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)

	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		logging.Error("failed to test github token",
			"error", err,
			"status_code", statusCode)
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return &Client{client: client, limiter: NewRateLimiter()}, nil
}

// CheckRepository verifies that a repository exists and is accessible.
func (c *Client) CheckRepository(ctx context.Context, organizationName, repositoryName string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, resp, err := c.client.Repositories.Get(ctx, organizationName, repositoryName)
	c.limiter.Record(resp)
	if err != nil {
		return fmt.Errorf("failed to look up repository %s/%s: %w", organizationName, repositoryName, err)
	}
	return nil
}

// GetIssuesWithLabel retrieves all issues (open and closed) carrying the
// given label. Pull requests are filtered out and the GitHub API objects are
// converted to the internal model.
func (c *Client) GetIssuesWithLabel(ctx context.Context, organizationName, repositoryName, label string) ([]models.RepositoryIssue, error) {
	opts := &github.IssueListByRepoOptions{
		State:  "all",
		Labels: []string{label},
		ListOptions: github.ListOptions{
			PerPage: issuesPerPage,
		},
	}

	var allIssues []*github.Issue
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		issues, resp, err := c.client.Issues.ListByRepo(ctx, organizationName, repositoryName, opts)
		c.limiter.Record(resp)
		if err != nil {
			logging.Error("failed to fetch github issues",
				"repository", organizationName+"/"+repositoryName,
				"label", label,
				"error", err)
			return nil, fmt.Errorf("failed to fetch issues with label %q: %w", label, err)
		}

		allIssues = append(allIssues, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var result []models.RepositoryIssue
	for _, issue := range allIssues {
		// Skip pull requests (they're also returned by the Issues API)
		if issue.PullRequestLinks != nil {
			continue
		}
		result = append(result, convertIssue(issue))
	}

	return result, nil
}

// ListIssueComments retrieves all comments of an issue, in creation order.
func (c *Client) ListIssueComments(ctx context.Context, organizationName, repositoryName string, number int) ([]models.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			PerPage: issuesPerPage,
		},
	}

	var result []models.IssueComment
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		comments, resp, err := c.client.Issues.ListComments(ctx, organizationName, repositoryName, number, opts)
		c.limiter.Record(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch comments for issue %s/%s#%d: %w",
				organizationName, repositoryName, number, err)
		}

		for _, comment := range comments {
			result = append(result, models.IssueComment{
				CreatedAt: comment.GetCreatedAt(),
				Author:    comment.GetUser().GetLogin(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// ListIssueTimeline retrieves the raw timeline events of an issue.
func (c *Client) ListIssueTimeline(ctx context.Context, organizationName, repositoryName string, number int) ([]models.TimelineEvent, error) {
	opts := &github.ListOptions{PerPage: issuesPerPage}

	var result []models.TimelineEvent
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		timeline, resp, err := c.client.Issues.ListIssueTimeline(ctx, organizationName, repositoryName, number, opts)
		c.limiter.Record(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch timeline for issue %s/%s#%d: %w",
				organizationName, repositoryName, number, err)
		}

		for _, entry := range timeline {
			result = append(result, models.TimelineEvent{
				Event:     entry.GetEvent(),
				CreatedAt: entry.GetCreatedAt(),
				Actor:     entry.GetActor().GetLogin(),
				Label:     entry.GetLabel().GetName(),
				Assignee:  entry.GetAssignee().GetLogin(),
				Milestone: entry.GetMilestone().GetTitle(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// convertIssue maps a GitHub API issue to the internal model.
func convertIssue(issue *github.Issue) models.RepositoryIssue {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	var closedAt *time.Time
	if issue.ClosedAt != nil {
		t := *issue.ClosedAt
		closedAt = &t
	}

	return models.RepositoryIssue{
		Number:        issue.GetNumber(),
		Title:         issue.GetTitle(),
		State:         issue.GetState(),
		CreatedAt:     issue.GetCreatedAt(),
		UpdatedAt:     issue.GetUpdatedAt(),
		ClosedAt:      closedAt,
		HTMLURL:       issue.GetHTMLURL(),
		Body:          issue.GetBody(),
		Labels:        labelNames,
		CreatedBy:     issue.GetUser().GetLogin(),
		ClosedBy:      issue.GetClosedBy().GetLogin(),
		CommentsCount: issue.GetComments(),
	}
}
