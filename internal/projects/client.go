// Package projects provides functionality for interacting with GitHub
// Projects v2 through the GraphQL API.
package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/pavelurbanek/docmine/internal/github"
	"github.com/pavelurbanek/docmine/internal/logging"
)

// defaultEndpoint is the public GitHub GraphQL endpoint.
const defaultEndpoint = "https://api.github.com/graphql"

// rateGate gates outbound calls on the GraphQL rate-limit budget, recorded
// from response headers. Satisfied by github.RateLimiter.
type rateGate interface {
	Wait(ctx context.Context) error
	RecordHeaders(header http.Header)
}

// Client issues raw GraphQL queries against the GitHub API. All queries go
// through the rate gate; GraphQL carries its own budget, separate from REST,
// so the client keeps its own limiter.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    rateGate
}

// NewClient creates a GraphQL client authenticated with the given token. An
// empty domain targets the public endpoint, anything else the GraphQL
// endpoint of a GitHub Enterprise installation.
func NewClient(token, domain string) *Client {
	endpoint := defaultEndpoint
	if domain != "" && domain != "github.com" {
		endpoint = fmt.Sprintf("https://%s/api/graphql", domain)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return &Client{
		httpClient: oauth2.NewClient(context.Background(), ts),
		endpoint:   endpoint,
		limiter:    github.NewRateLimiter(),
	}
}

// NewClientWithEndpoint creates a client against a custom endpoint, used for
// GitHub Enterprise and for tests.
func NewClientWithEndpoint(httpClient *http.Client, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		limiter:    github.NewRateLimiter(),
	}
}

// send posts one GraphQL query and returns the decoded data member. Any
// transport, HTTP or GraphQL-level failure is logged and yields nil so
// callers degrade to an empty result instead of aborting the run.
func (c *Client) send(ctx context.Context, query string) map[string]interface{} {
	if err := c.limiter.Wait(ctx); err != nil {
		logging.Error("graphql request cancelled while waiting for rate limit", "error", err)
		return nil
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		logging.Error("failed to encode graphql query", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		logging.Error("failed to build graphql request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "docmine/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Error("graphql request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	c.limiter.RecordHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		logging.Error("graphql request returned unexpected status", "status_code", resp.StatusCode)
		return nil
	}

	var payload struct {
		Data   map[string]interface{} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logging.Error("failed to decode graphql response", "error", err)
		return nil
	}

	if len(payload.Errors) > 0 {
		messages := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			messages = append(messages, e.Message)
		}
		logging.Error("graphql query returned errors", "errors", fmt.Sprintf("%v", messages))
		return nil
	}

	return payload.Data
}
