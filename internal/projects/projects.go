package projects

import (
	"context"
	"fmt"

	"github.com/pavelurbanek/docmine/internal/logging"
	"github.com/pavelurbanek/docmine/pkg/models"
)

// GetRepositoryProjects fetches the project boards attached to a repository,
// optionally filtered by title, and resolves the single-select field option
// vocabularies of each surviving board. A missing GraphQL response at either
// step is a warning and yields an empty list for this repository only.
func (c *Client) GetRepositoryProjects(ctx context.Context, organizationName, repositoryName string, titleFilter []string) []models.GitHubProject {
	repositoryID := organizationName + "/" + repositoryName

	query, err := projectsFromRepo(organizationName, repositoryName)
	if err != nil {
		logging.Error("invalid project-boards query", "error", err)
		return nil
	}

	data := c.send(ctx, query)
	if data == nil {
		logging.Warn("no project data received for repository", "repository", repositoryID)
		return nil
	}

	nodes := jsonSlice(data, "repository", "projectsV2", "nodes")
	if nodes == nil {
		logging.Warn("repository information missing from project response", "repository", repositoryID)
		return nil
	}

	var projects []models.GitHubProject
	for _, raw := range nodes {
		node, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		title, _ := node["title"].(string)
		if len(titleFilter) > 0 && !containsTitle(titleFilter, title) {
			logging.Debug("project filtered out by title", "title", title)
			continue
		}

		number := jsonInt(node["number"])
		optionsQuery, err := projectFieldOptions(organizationName, repositoryName, number)
		if err != nil {
			logging.Error("invalid field-options query", "error", err)
			continue
		}

		fieldOptionsData := c.send(ctx, optionsQuery)
		if fieldOptionsData == nil {
			logging.Warn("no field options received for project",
				"repository", repositoryID,
				"project", title)
		}

		projects = append(projects, models.LoadGitHubProject(node, organizationName, repositoryName, fieldOptionsData))
	}

	return projects
}

// GetProjectIssues fetches all items of a project board, following the
// cursor until exhaustion. A missing response mid-pagination returns the
// nodes accumulated so far. Nodes without issue content are dropped.
func (c *Client) GetProjectIssues(ctx context.Context, project models.GitHubProject) []models.ProjectIssue {
	var issues []models.ProjectIssue
	afterArgument := ""

	for {
		query, err := issuesFromProject(project.ID, afterArgument)
		if err != nil {
			logging.Error("invalid project-items query", "error", err)
			return issues
		}

		data := c.send(ctx, query)
		if data == nil {
			return issues
		}

		items := jsonMap(data, "node", "items")
		if items == nil {
			return issues
		}

		nodes, _ := items["nodes"].([]interface{})
		logging.Debug("received project item page",
			"count", len(nodes),
			"project", project.Title)

		for _, raw := range nodes {
			node, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			issue := models.LoadProjectIssue(node, project)
			if issue == nil {
				logging.Debug("skipping project item without issue content", "project", project.Title)
				continue
			}
			issues = append(issues, *issue)
		}

		pageInfo, _ := items["pageInfo"].(map[string]interface{})
		hasNextPage, _ := pageInfo["hasNextPage"].(bool)
		if !hasNextPage {
			break
		}
		endCursor, _ := pageInfo["endCursor"].(string)
		afterArgument = fmt.Sprintf("after: %q", endCursor)
	}

	logging.Debug("loaded project issues",
		"count", len(issues),
		"project", project.Title)

	return issues
}

// jsonMap walks a decoded JSON object along the given keys.
func jsonMap(data map[string]interface{}, keys ...string) map[string]interface{} {
	current := data
	for _, key := range keys {
		if current == nil {
			return nil
		}
		current, _ = current[key].(map[string]interface{})
	}
	return current
}

// jsonSlice walks a decoded JSON object, expecting an array at the last key.
func jsonSlice(data map[string]interface{}, keys ...string) []interface{} {
	parent := jsonMap(data, keys[:len(keys)-1]...)
	if parent == nil {
		return nil
	}
	values, _ := parent[keys[len(keys)-1]].([]interface{})
	return values
}

func jsonInt(value interface{}) int {
	if v, ok := value.(float64); ok {
		return int(v)
	}
	return 0
}

func containsTitle(titles []string, target string) bool {
	for _, title := range titles {
		if title == target {
			return true
		}
	}
	return false
}
