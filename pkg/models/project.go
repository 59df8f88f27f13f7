package models

// Project-board field names whose single-select vocabularies are resolved
// per board and used to interpret item field values.
const (
	FieldStatus   = "Status"
	FieldPriority = "Priority"
	FieldSize     = "Size"
	FieldMoSCoW   = "MoSCoW"
)

// ProjectFieldOptions maps a field name to the set of valid option strings
// for one project board.
type ProjectFieldOptions map[string][]string

// GitHubProject is a project board identity plus its resolved single-select
// field option vocabularies.
type GitHubProject struct {
	ID               string
	Number           int
	Title            string
	OrganizationName string
	RepositoryName   string
	FieldOptions     ProjectFieldOptions
}

// ProjectStatus is one board-scoped status bundle. Fields the board does not
// define stay empty. An issue may carry several, one per board.
type ProjectStatus struct {
	ProjectTitle string `json:"project_title,omitempty"`
	Status       string `json:"status,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Size         string `json:"size,omitempty"`
	MoSCoW       string `json:"moscow,omitempty"`
}

// ProjectIssue is one (project-board-item, board) pair parsed from a raw
// GraphQL node.
type ProjectIssue struct {
	Number           int
	OrganizationName string
	RepositoryName   string
	ProjectStatus    ProjectStatus
}

// LoadGitHubProject builds a GitHubProject from a raw projectsV2 node and the
// field-options query response for that board. The response may be nil, in
// which case the board keeps empty vocabularies.
func LoadGitHubProject(node map[string]interface{}, organizationName, repositoryName string, fieldOptionsData map[string]interface{}) GitHubProject {
	project := GitHubProject{
		OrganizationName: organizationName,
		RepositoryName:   repositoryName,
		FieldOptions:     ProjectFieldOptions{},
	}

	project.ID, _ = node["id"].(string)
	project.Number = intFromJSON(node["number"])
	project.Title, _ = node["title"].(string)

	fields := nestedSlice(fieldOptionsData, "repository", "projectV2", "fields", "nodes")
	for _, raw := range fields {
		field, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := field["name"].(string)
		if name == "" {
			continue
		}

		options, _ := field["options"].([]interface{})
		var values []string
		for _, rawOption := range options {
			option, ok := rawOption.(map[string]interface{})
			if !ok {
				continue
			}
			if value, _ := option["name"].(string); value != "" {
				values = append(values, value)
			}
		}
		if len(values) > 0 {
			project.FieldOptions[name] = values
		}
	}

	return project
}

// LoadProjectIssue parses one raw project-item node into a ProjectIssue.
// Nodes without issue content (draft items, inaccessible content) yield nil.
func LoadProjectIssue(node map[string]interface{}, project GitHubProject) *ProjectIssue {
	content, ok := node["content"].(map[string]interface{})
	if !ok || len(content) == 0 {
		return nil
	}

	issue := &ProjectIssue{
		Number:        intFromJSON(content["number"]),
		ProjectStatus: ProjectStatus{ProjectTitle: project.Title},
	}

	if repository, ok := content["repository"].(map[string]interface{}); ok {
		issue.RepositoryName, _ = repository["name"].(string)
		if owner, ok := repository["owner"].(map[string]interface{}); ok {
			issue.OrganizationName, _ = owner["login"].(string)
		}
	}

	// Collect the single-select values of the item, then classify each one
	// against the board's field vocabularies.
	var fieldValues []string
	for _, raw := range nestedSlice(node, "fieldValues", "nodes") {
		value, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if typename, _ := value["__typename"].(string); typename != "ProjectV2ItemFieldSingleSelectValue" {
			continue
		}
		if name, _ := value["name"].(string); name != "" {
			fieldValues = append(fieldValues, name)
		}
	}

	for _, value := range fieldValues {
		switch {
		case containsString(project.FieldOptions[FieldStatus], value):
			issue.ProjectStatus.Status = value
		case containsString(project.FieldOptions[FieldPriority], value):
			issue.ProjectStatus.Priority = value
		case containsString(project.FieldOptions[FieldSize], value):
			issue.ProjectStatus.Size = value
		case containsString(project.FieldOptions[FieldMoSCoW], value):
			issue.ProjectStatus.MoSCoW = value
		}
	}

	return issue
}

// intFromJSON converts a decoded JSON number to an int, tolerating absence.
func intFromJSON(value interface{}) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// nestedSlice walks a decoded JSON object along the given keys, expecting the
// final value to be an array. Any missing or mistyped step yields nil.
func nestedSlice(data map[string]interface{}, keys ...string) []interface{} {
	current := data
	for i, key := range keys {
		if current == nil {
			return nil
		}
		if i == len(keys)-1 {
			values, _ := current[key].([]interface{})
			return values
		}
		current, _ = current[key].(map[string]interface{})
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
