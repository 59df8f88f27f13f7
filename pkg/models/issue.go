package models

import (
	"encoding/json"
	"fmt"
)

// Labels recognized as documentation intent. Exactly one is expected per
// issue; more than one is a consolidation error.
const (
	LabelUserStory     = "DocumentedUserStory"
	LabelFeature       = "DocumentedFeature"
	LabelFunctionality = "DocumentedFunctionality"
)

// SupportedIssueLabels is the fixed label set the collector fetches by.
var SupportedIssueLabels = []string{LabelUserStory, LabelFeature, LabelFunctionality}

// IssueType classifies a consolidated issue by its documentation label.
type IssueType string

const (
	TypeIssue         IssueType = "Issue"
	TypeUserStory     IssueType = "UserStoryIssue"
	TypeFeature       IssueType = "FeatureIssue"
	TypeFunctionality IssueType = "FunctionalityIssue"
)

// issueTypePrecedence is the classification order, highest precedence first.
var issueTypePrecedence = []struct {
	Label string
	Type  IssueType
}{
	{LabelUserStory, TypeUserStory},
	{LabelFeature, TypeFeature},
	{LabelFunctionality, TypeFunctionality},
}

// ClassifyIssueType picks the issue type from a label set. When several
// documentation labels are present, the highest-precedence one wins; with
// none present the generic type is returned.
func ClassifyIssueType(labels []string) IssueType {
	present := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		present[label] = struct{}{}
	}

	for _, entry := range issueTypePrecedence {
		if _, ok := present[entry.Label]; ok {
			return entry.Type
		}
	}
	return TypeIssue
}

// Issue is the persistable record of one consolidated issue. Audit fields are
// merged in separately at write time, keeping this record audit-agnostic.
type Issue struct {
	RepositoryID    string            `json:"repository_id"`
	Title           string            `json:"title"`
	IssueNumber     int               `json:"issue_number"`
	IssueType       IssueType         `json:"issue_type"`
	State           string            `json:"state,omitempty"`
	CreatedAt       string            `json:"created_at,omitempty"`
	UpdatedAt       string            `json:"updated_at,omitempty"`
	ClosedAt        string            `json:"closed_at,omitempty"`
	HTMLURL         string            `json:"html_url,omitempty"`
	Body            string            `json:"body,omitempty"`
	Labels          []string          `json:"labels,omitempty"`
	LinkedToProject bool              `json:"linked_to_project"`
	ProjectStatuses []ProjectStatus   `json:"project_statuses,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
}

// NewIssue is the classification-driven factory for persistable records.
func NewIssue(issueType IssueType, repositoryID, title string, issueNumber int) *Issue {
	return &Issue{
		RepositoryID: repositoryID,
		Title:        title,
		IssueNumber:  issueNumber,
		IssueType:    issueType,
	}
}

// IsValid reports whether the record carries the fields required for
// persistence: repository id, title and issue number.
func (i *Issue) IsValid() bool {
	return i.RepositoryID != "" && i.Title != "" && i.IssueNumber > 0
}

// AddErrors merges the given error bag into the record.
func (i *Issue) AddErrors(errors map[string]string) {
	if len(errors) == 0 {
		return
	}
	if i.Errors == nil {
		i.Errors = make(map[string]string, len(errors))
	}
	for kind, message := range errors {
		i.Errors[kind] = message
	}
}

// ToMap renders the record as a generic map so audit fields can be merged in
// before serialization.
func (i *Issue) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize issue %s#%d: %w", i.RepositoryID, i.IssueNumber, err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to convert issue %s#%d: %w", i.RepositoryID, i.IssueNumber, err)
	}
	return entry, nil
}
