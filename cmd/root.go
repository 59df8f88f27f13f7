package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docmine",
	Short: "Docmine mines documentation issues from GitHub repositories",
	Long: `Docmine collects issues carrying documentation labels from configured
GitHub repositories, optionally enriches them with project-board state mined
through the GraphQL API, and writes one consolidated JSON snapshot per run.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output directory for the consolidated snapshot")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(validateCmd)
}
