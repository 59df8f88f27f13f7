package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavelurbanek/docmine/internal/config"
	"github.com/pavelurbanek/docmine/internal/github"
	"github.com/pavelurbanek/docmine/internal/logging"
	"github.com/pavelurbanek/docmine/internal/projects"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and repository access",
	Long: `Check that the environment configuration parses, that the GitHub token
authenticates, that every configured repository is accessible and that the
GraphQL query templates are well-formed. No data is fetched or written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if len(cfg.Repositories) == 0 {
			return fmt.Errorf("no repositories configured, set DOCMINE_REPOSITORIES")
		}

		// NewClientWithToken authenticates against the API, which validates the token.
		githubClient, err := github.NewClientWithToken(cfg.GitHub.Token, cfg.GitHub.Domain)
		if err != nil {
			return fmt.Errorf("failed to initialize GitHub client: %w", err)
		}

		failures := 0
		for _, repository := range cfg.Repositories {
			if err := githubClient.CheckRepository(cmd.Context(), repository.OrganizationName, repository.RepositoryName); err != nil {
				logging.Error("repository is not accessible",
					"repository", repository.RepositoryID(),
					"error", err)
				failures++
				continue
			}
			logging.Info("repository is accessible", "repository", repository.RepositoryID())
		}

		if err := projects.ValidateQueryFormats(); err != nil {
			logging.Error("graphql query templates are inconsistent", "error", err)
			failures++
		}

		if failures > 0 {
			return fmt.Errorf("validation failed with %d error(s)", failures)
		}

		logging.Info("configuration is valid",
			"repositories", len(cfg.Repositories),
			"project_state_mining", cfg.ProjectStateMining)
		return nil
	},
}
