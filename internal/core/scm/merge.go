package scm

import "strings"

// MergeStrategy selects how a source branch is merged into a target.
type MergeStrategy string

const (
	// MergeCommit always records a merge commit (no fast-forward).
	MergeCommit MergeStrategy = "MERGE_COMMIT"
	// FastForwardIfPossible fast-forwards when the target is an ancestor of the source.
	FastForwardIfPossible MergeStrategy = "FAST_FORWARD_IF_POSSIBLE"
	// Squash folds all source changes into a single commit on the target.
	Squash MergeStrategy = "SQUASH"
)

// Valid reports whether s is a known strategy.
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeCommit, FastForwardIfPossible, Squash:
		return true
	}
	return false
}

// MergeRequest merges Source into Target.
type MergeRequest struct {
	Source   string
	Target   string
	Strategy MergeStrategy
	Message  string
	Author   Person
}

// Validate checks branches and strategy.
func (r MergeRequest) Validate() error {
	if err := ValidBranchName(r.Source); err != nil {
		return err
	}
	if err := ValidBranchName(r.Target); err != nil {
		return err
	}
	if r.Source == r.Target {
		return Invalid("cannot merge branch %q into itself", r.Source)
	}
	if !r.Strategy.Valid() {
		return Invalid("unknown merge strategy %q", r.Strategy)
	}
	if strings.TrimSpace(r.Author.Name) == "" {
		return Invalid("author is required")
	}
	return nil
}

// ConflictType classifies a merge conflict.
type ConflictType string

const (
	ConflictBothModified   ConflictType = "BOTH_MODIFIED"
	ConflictBothAdded      ConflictType = "BOTH_ADDED"
	ConflictDeletedByOurs  ConflictType = "DELETED_BY_US"
	ConflictDeletedByTheir ConflictType = "DELETED_BY_THEM"
)

// MergeConflict describes one conflicting path.
type MergeConflict struct {
	Path string       `json:"path"`
	Type ConflictType `json:"type"`
	// Diff is a unified diff between the target ("ours") and source ("theirs") sides.
	Diff string `json:"diff,omitempty"`
}

// MergeResult is the structured outcome of a merge. Conflicts are a result,
// not an error.
type MergeResult struct {
	Success   bool            `json:"success"`
	Revision  string          `json:"revision,omitempty"`
	Source    string          `json:"sourceRevision,omitempty"`
	Target    string          `json:"targetRevision,omitempty"`
	Conflicts []MergeConflict `json:"conflicts,omitempty"`
}

// ConflictPaths returns the conflicting paths in report order.
func (r MergeResult) ConflictPaths() []string {
	paths := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		paths[i] = c.Path
	}
	return paths
}

// MergeDryRunResult reports whether a merge would succeed.
type MergeDryRunResult struct {
	Mergeable bool `json:"mergeable"`
}
