// Package config provides centralized configuration management for the application.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultOutputPath is used when no output directory is configured.
const DefaultOutputPath = "./output"

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub             GitHubConfig
	Repositories       []ConfigRepository
	ProjectStateMining bool
	OutputPath         string
}

// GitHubConfig holds GitHub specific configuration. Domain is empty for
// github.com and set for GitHub Enterprise installations.
type GitHubConfig struct {
	Token  string
	Domain string
}

// ConfigRepository identifies one repository to mine, with an optional
// project-board title filter. An empty filter keeps every board.
type ConfigRepository struct {
	OrganizationName    string   `json:"organization_name"`
	RepositoryName      string   `json:"repository_name"`
	ProjectsTitleFilter []string `json:"projects_title_filter"`
}

// RepositoryID returns the "org/repo" identifier of the repository.
func (r ConfigRepository) RepositoryID() string {
	return r.OrganizationName + "/" + r.RepositoryName
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("docmine.repositories", "DOCMINE_REPOSITORIES")
	v.BindEnv("docmine.project_state_mining", "DOCMINE_PROJECT_STATE_MINING")
	v.BindEnv("docmine.output_path", "DOCMINE_OUTPUT_PATH")
	v.SetDefault("docmine.output_path", DefaultOutputPath)

	repositories, err := ParseRepositories(v.GetString("docmine.repositories"))
	if err != nil {
		return nil, err
	}

	// Create config structure
	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		Repositories:       repositories,
		ProjectStateMining: v.GetBool("docmine.project_state_mining"),
		OutputPath:         v.GetString("docmine.output_path"),
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseRepositories parses the JSON repository list from DOCMINE_REPOSITORIES.
func ParseRepositories(raw string) ([]ConfigRepository, error) {
	if raw == "" {
		return nil, nil
	}

	var repositories []ConfigRepository
	if err := json.Unmarshal([]byte(raw), &repositories); err != nil {
		return nil, fmt.Errorf("failed to parse DOCMINE_REPOSITORIES: %w", err)
	}

	for i, repository := range repositories {
		if repository.OrganizationName == "" || repository.RepositoryName == "" {
			return nil, fmt.Errorf("repository entry %d is missing organization_name or repository_name", i)
		}
	}

	return repositories, nil
}

// validateConfig ensures that all required configuration values are provided.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
