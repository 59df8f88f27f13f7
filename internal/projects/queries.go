package projects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// issuesPerPage is the platform's maximum page size for project items.
const issuesPerPage = 100

// The three fixed GraphQL query shapes. Placeholders use {name} syntax and
// are substituted through formatQuery, which validates the placeholder set.
const (
	projectsFromRepoQuery = `
query {
  repository(owner: "{organization_name}", name: "{repository_name}") {
    projectsV2(first: 100) {
      nodes {
        id
        number
        title
      }
    }
  }
}
`

	projectFieldOptionsQuery = `
query {
  repository(owner: "{organization_name}", name: "{repository_name}") {
    projectV2(number: {project_number}) {
      title
      fields(first: 100) {
        nodes {
          ... on ProjectV2SingleSelectField {
            name
            options {
              name
            }
          }
        }
      }
    }
  }
}
`

	issuesFromProjectQuery = `
query {
  node(id: "{project_id}") {
    ... on ProjectV2 {
      items(first: {issues_per_page}, {after_argument}) {
        pageInfo {
          endCursor
          hasNextPage
        }
        nodes {
          content {
            ... on Issue {
              title
              state
              number
              repository {
                name
                owner {
                  login
                }
              }
            }
          }
          fieldValues(first: 100) {
            nodes {
              __typename
              ... on ProjectV2ItemFieldSingleSelectValue {
                name
              }
            }
          }
        }
      }
    }
  }
}
`
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// formatQuery substitutes the {name} placeholders of a query template.
// Every placeholder in the template must have a value and every value must
// match a placeholder, so a drifting template fails loudly instead of
// producing a broken query.
func formatQuery(template string, values map[string]string) (string, error) {
	query := template
	substituted := make(map[string]struct{})

	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := match[1]
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("query template has no value for placeholder %q", name)
		}
		query = strings.ReplaceAll(query, "{"+name+"}", value)
		substituted[name] = struct{}{}
	}

	for name := range values {
		if _, ok := substituted[name]; !ok {
			return "", fmt.Errorf("value %q matches no placeholder in query template", name)
		}
	}

	return query, nil
}

// projectsFromRepo formats the repository project-boards query.
func projectsFromRepo(organizationName, repositoryName string) (string, error) {
	return formatQuery(projectsFromRepoQuery, map[string]string{
		"organization_name": organizationName,
		"repository_name":   repositoryName,
	})
}

// projectFieldOptions formats the field-option vocabularies query.
func projectFieldOptions(organizationName, repositoryName string, projectNumber int) (string, error) {
	return formatQuery(projectFieldOptionsQuery, map[string]string{
		"organization_name": organizationName,
		"repository_name":   repositoryName,
		"project_number":    strconv.Itoa(projectNumber),
	})
}

// issuesFromProject formats the paginated project-items query. afterArgument
// is either empty (first page) or an `after: "<cursor>"` argument.
func issuesFromProject(projectID, afterArgument string) (string, error) {
	return formatQuery(issuesFromProjectQuery, map[string]string{
		"project_id":      projectID,
		"issues_per_page": strconv.Itoa(issuesPerPage),
		"after_argument":  afterArgument,
	})
}

// ValidateQueryFormats checks that all query templates and their helpers
// still agree on the placeholder sets.
func ValidateQueryFormats() error {
	if _, err := projectsFromRepo("org", "repo"); err != nil {
		return err
	}
	if _, err := projectFieldOptions("org", "repo", 1); err != nil {
		return err
	}
	if _, err := issuesFromProject("id", ""); err != nil {
		return err
	}
	return nil
}
