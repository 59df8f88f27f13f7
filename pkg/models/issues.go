package models

import (
	"fmt"
)

// MakeIssueKey builds the composite key identifying one issue across both
// data sources.
func MakeIssueKey(organizationName, repositoryName string, number int) string {
	return fmt.Sprintf("%s/%s#%d", organizationName, repositoryName, number)
}

// Issues is a collection of persistable records keyed by composite key.
type Issues struct {
	issues map[string]*Issue
}

// NewIssues returns an empty collection.
func NewIssues() *Issues {
	return &Issues{issues: make(map[string]*Issue)}
}

// Add stores a record under its composite key, replacing any previous one.
func (s *Issues) Add(key string, issue *Issue) {
	s.issues[key] = issue
}

// Get returns the record stored under key, nil when absent.
func (s *Issues) Get(key string) *Issue {
	return s.issues[key]
}

// All exposes the underlying keyed records.
func (s *Issues) All() map[string]*Issue {
	return s.issues
}

// Len returns the number of stored records.
func (s *Issues) Len() int {
	return len(s.issues)
}

// HasErrors reports whether any stored record carries a non-empty error bag.
func (s *Issues) HasErrors() bool {
	for _, issue := range s.issues {
		if len(issue.Errors) > 0 {
			return true
		}
	}
	return false
}
