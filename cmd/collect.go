package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavelurbanek/docmine/internal/collector"
	"github.com/pavelurbanek/docmine/internal/config"
	"github.com/pavelurbanek/docmine/internal/github"
	"github.com/pavelurbanek/docmine/internal/logging"
	"github.com/pavelurbanek/docmine/internal/projects"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one full mining pass over the configured repositories",
	Long: `Fetch documentation issues from all configured repositories, mine
project-board state when enabled, consolidate both into one record per issue
and export the snapshot to <output>/doc-issues/doc-issues.json.

The command exits non-zero when any exported record carries errors or when an
invalid record had to be skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.OutputPath = output
		}

		if len(cfg.Repositories) == 0 {
			return fmt.Errorf("no repositories configured, set DOCMINE_REPOSITORIES")
		}

		githubClient, err := github.NewClientWithToken(cfg.GitHub.Token, cfg.GitHub.Domain)
		if err != nil {
			return fmt.Errorf("failed to initialize GitHub client: %w", err)
		}
		projectsClient := projects.NewClient(cfg.GitHub.Token, cfg.GitHub.Domain)

		engine := collector.New(cfg, githubClient, projectsClient)

		ok, err := engine.Collect(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("collection finished with errors, see the log for details")
		}

		logging.Info("collection finished successfully")
		return nil
	},
}
