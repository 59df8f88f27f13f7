// Package collector implements the consolidation engine: it fetches issues
// and project-board data, merges them by composite key, enriches them with
// audit data and persists one JSON snapshot per run.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pavelurbanek/docmine/internal/config"
	"github.com/pavelurbanek/docmine/internal/logging"
	"github.com/pavelurbanek/docmine/pkg/models"
)

const (
	outputSubdir   = "doc-issues"
	outputFileName = "doc-issues.json"

	generatorName = "docmine"
)

// IssueService provides the REST-side operations the engine needs. It also
// carries the audit sub-fetches so consolidated issues can enrich lazily.
type IssueService interface {
	CheckRepository(ctx context.Context, organizationName, repositoryName string) error
	GetIssuesWithLabel(ctx context.Context, organizationName, repositoryName, label string) ([]models.RepositoryIssue, error)
	models.AuditFetcher
}

// ProjectService provides the GraphQL-side operations the engine needs.
type ProjectService interface {
	GetRepositoryProjects(ctx context.Context, organizationName, repositoryName string, titleFilter []string) []models.GitHubProject
	GetProjectIssues(ctx context.Context, project models.GitHubProject) []models.ProjectIssue
}

// Collector orchestrates one full mining run.
type Collector struct {
	cfg        *config.Config
	issues     IssueService
	projects   ProjectService
	outputPath string
}

// New creates a collector writing into <cfg.OutputPath>/doc-issues.
func New(cfg *config.Config, issues IssueService, projects ProjectService) *Collector {
	return &Collector{
		cfg:        cfg,
		issues:     issues,
		projects:   projects,
		outputPath: filepath.Join(cfg.OutputPath, outputSubdir),
	}
}

// Collect runs the five stages of a mining run. The boolean is the run
// verdict: false when any persisted record carries errors or was skipped as
// invalid. The error is non-nil only for filesystem failures, which are
// fatal; every other failure degrades and is reflected in the verdict.
func (c *Collector) Collect(ctx context.Context) (bool, error) {
	if err := c.cleanOutputDirectory(); err != nil {
		return false, fmt.Errorf("failed to clean output directory: %w", err)
	}
	logging.Debug("output directory cleaned", "path", c.outputPath)

	logging.Info("fetching repository issues - started")
	repositoryIssues := c.fetchRepositoryIssues(ctx)
	logging.Info("fetching repository issues - finished")

	logging.Info("fetching project data - started")
	projectIssues := c.fetchProjectIssues(ctx)
	logging.Info("fetching project data - finished")

	logging.Info("consolidating issue and project data - started")
	consolidated := c.consolidateIssues(repositoryIssues, projectIssues)
	logging.Info("consolidating issue and project data - finished",
		"count", len(consolidated))

	logging.Info("exporting consolidated issues - started")
	ok, err := c.storeConsolidatedIssues(ctx, consolidated)
	logging.Info("exporting consolidated issues - finished")

	return ok, err
}

// cleanOutputDirectory removes and recreates the run's output directory.
// A crash later in the run therefore leaves no stale snapshot behind.
func (c *Collector) cleanOutputDirectory() error {
	if err := os.RemoveAll(c.outputPath); err != nil {
		return err
	}
	return os.MkdirAll(c.outputPath, 0o755)
}

// fetchRepositoryIssues fetches, per configured repository, all issues
// carrying any of the supported documentation labels. A failing repository
// lookup aborts the whole stage and returns an empty result for all
// repositories (all-or-nothing policy at the engine boundary).
func (c *Collector) fetchRepositoryIssues(ctx context.Context) map[string][]models.RepositoryIssue {
	issues := make(map[string][]models.RepositoryIssue)
	totalCount := 0

	for _, repository := range c.cfg.Repositories {
		repositoryID := repository.RepositoryID()

		if err := c.issues.CheckRepository(ctx, repository.OrganizationName, repository.RepositoryName); err != nil {
			logging.Error("repository lookup failed, aborting issue fetch",
				"repository", repositoryID,
				"error", err)
			return map[string][]models.RepositoryIssue{}
		}

		logging.Info("fetching repository issues", "repository", repositoryID)

		issues[repositoryID] = []models.RepositoryIssue{}
		for _, label := range models.SupportedIssueLabels {
			logging.Debug("fetching issues with label", "label", label)
			labeled, err := c.issues.GetIssuesWithLabel(ctx, repository.OrganizationName, repository.RepositoryName, label)
			if err != nil {
				logging.Error("failed to fetch labeled issues",
					"repository", repositoryID,
					"label", label,
					"error", err)
				continue
			}
			issues[repositoryID] = append(issues[repositoryID], labeled...)
		}

		totalCount += len(issues[repositoryID])
		logging.Info("fetched repository issues",
			"repository", repositoryID,
			"count", len(issues[repositoryID]))
	}

	logging.Info("loaded repository issues in total", "count", totalCount)
	return issues
}

// fetchProjectIssues fetches project-board items for every configured
// repository and keys them by composite key. An issue appearing on several
// boards accumulates several entries under one key. Returns empty when
// project mining is disabled; the repository-lookup policy matches
// fetchRepositoryIssues.
func (c *Collector) fetchProjectIssues(ctx context.Context) map[string][]models.ProjectIssue {
	allProjectIssues := make(map[string][]models.ProjectIssue)

	if !c.cfg.ProjectStateMining {
		logging.Info("fetching project data - project mining is not enabled")
		return allProjectIssues
	}
	logging.Debug("project data mining enabled")

	for _, repository := range c.cfg.Repositories {
		repositoryID := repository.RepositoryID()
		logging.Debug("filtering projects",
			"repository", repositoryID,
			"title_filter", repository.ProjectsTitleFilter)

		if err := c.issues.CheckRepository(ctx, repository.OrganizationName, repository.RepositoryName); err != nil {
			logging.Error("repository lookup failed, aborting project fetch",
				"repository", repositoryID,
				"error", err)
			return map[string][]models.ProjectIssue{}
		}

		projects := c.projects.GetRepositoryProjects(ctx, repository.OrganizationName, repository.RepositoryName, repository.ProjectsTitleFilter)
		if len(projects) > 0 {
			logging.Info("found projects for repository",
				"repository", repositoryID,
				"count", len(projects))
		} else {
			logging.Info("no project data found for repository", "repository", repositoryID)
		}

		for _, project := range projects {
			logging.Info("fetching project data", "project", project.Title)

			for _, projectIssue := range c.projects.GetProjectIssues(ctx, project) {
				key := models.MakeIssueKey(
					projectIssue.OrganizationName,
					projectIssue.RepositoryName,
					projectIssue.Number,
				)
				allProjectIssues[key] = append(allProjectIssues[key], projectIssue)
			}

			logging.Info("fetched project data", "project", project.Title)
		}
	}

	return allProjectIssues
}

// consolidateIssues merges the two keyed collections into one record per
// composite key. First writer wins: a second sighting of a key means the
// issue was fetched under more than one documentation label, which is
// recorded as an error on the existing record instead of overwriting it.
func (c *Collector) consolidateIssues(
	repositoryIssues map[string][]models.RepositoryIssue,
	projectIssues map[string][]models.ProjectIssue,
) map[string]*models.ConsolidatedIssue {
	consolidated := make(map[string]*models.ConsolidatedIssue)

	for repositoryID := range repositoryIssues {
		parts := strings.SplitN(repositoryID, "/", 2)
		if len(parts) != 2 {
			continue
		}

		issues := repositoryIssues[repositoryID]
		for i := range issues {
			issue := &issues[i]
			key := models.MakeIssueKey(parts[0], parts[1], issue.Number)

			if existing, ok := consolidated[key]; ok {
				logging.Error("issue already consolidated, multiple documentation labels used",
					"key", key,
					"labels", issue.Labels)
				existing.AddError("multiple_labels",
					"multiple documentation labels found for the same issue; use only one label per issue")
				continue
			}

			record := models.NewConsolidatedIssue(repositoryID, issue, c.issues)
			record.IssueType = models.ClassifyIssueType(record.Labels())
			consolidated[key] = record
		}
	}

	// Update consolidated records with project data, in fetch order.
	logging.Debug("updating consolidated issues with project data")
	for key, record := range consolidated {
		for _, projectIssue := range projectIssues[key] {
			record.UpdateWithProjectData(projectIssue.ProjectStatus)
		}
	}

	return consolidated
}

// storeConsolidatedIssues converts the records, skips invalid ones and
// writes the snapshot. The verdict is false when any record was skipped or
// carries a non-empty error bag.
func (c *Collector) storeConsolidatedIssues(ctx context.Context, consolidated map[string]*models.ConsolidatedIssue) (bool, error) {
	collection := models.NewIssues()
	invalidIssueDetected := false

	for key, record := range consolidated {
		issue := record.ConvertToIssueForPersist()

		if !issue.IsValid() {
			logging.Error("skipping invalid issue (repository id, title and issue number are required)",
				"key", key)
			invalidIssueDetected = true
			continue
		}

		collection.Add(key, issue)
	}

	outputFile := filepath.Join(c.outputPath, outputFileName)
	logging.Info("exporting consolidated issues", "path", outputFile)

	if err := c.saveIssuesWithAuditData(ctx, outputFile, collection, consolidated); err != nil {
		return false, fmt.Errorf("failed to write consolidated issues: %w", err)
	}

	if collection.HasErrors() || invalidIssueDetected {
		logging.Error("some consolidated issues have errors")
		return false, nil
	}

	return true, nil
}

// saveIssuesWithAuditData writes the snapshot: each record as a generic map
// with its audit data merged in, wrapped in the provenance envelope.
func (c *Collector) saveIssuesWithAuditData(ctx context.Context, path string, collection *models.Issues, consolidated map[string]*models.ConsolidatedIssue) error {
	issuesData := make(map[string]interface{}, collection.Len())

	for key, issue := range collection.All() {
		entry, err := issue.ToMap()
		if err != nil {
			return err
		}

		if record, ok := consolidated[key]; ok {
			for field, value := range record.GetAuditData(ctx) {
				entry[field] = value
			}
		}

		issuesData[key] = entry
	}

	output := map[string]interface{}{
		"metadata": c.fileMetadata(),
		"issues":   issuesData,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(output, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// fileMetadata builds the provenance envelope. Run keys come from the CI
// environment and are present only when known.
func (c *Collector) fileMetadata() map[string]interface{} {
	metadata := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"generator": map[string]string{
			"name":    generatorName,
			"version": generatorVersion(),
		},
	}

	if len(c.cfg.Repositories) > 0 {
		repositories := make([]string, 0, len(c.cfg.Repositories))
		for _, repository := range c.cfg.Repositories {
			repositories = append(repositories, repository.RepositoryID())
		}
		metadata["source"] = map[string]interface{}{
			"repositories": repositories,
		}
	}

	run := map[string]string{}
	for key, envVar := range map[string]string{
		"workflow":    "GITHUB_WORKFLOW",
		"run_id":      "GITHUB_RUN_ID",
		"run_attempt": "GITHUB_RUN_ATTEMPT",
		"actor":       "GITHUB_ACTOR",
		"ref":         "GITHUB_REF",
		"sha":         "GITHUB_SHA",
	} {
		if value := os.Getenv(envVar); value != "" {
			run[key] = value
		}
	}
	if len(run) > 0 {
		metadata["run"] = run
	}

	metadata["inputs"] = map[string]interface{}{
		"project_state_mining_enabled": c.cfg.ProjectStateMining,
	}

	return metadata
}

// generatorVersion resolves the tool version from the CI environment,
// falling back to "unknown" for local runs.
func generatorVersion() string {
	if ref := os.Getenv("GITHUB_ACTION_REF"); ref != "" {
		return ref
	}
	if sha := os.Getenv("GITHUB_SHA"); len(sha) >= 7 {
		return sha[:7]
	}
	return "unknown"
}
