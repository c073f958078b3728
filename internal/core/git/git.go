// Package git drives the git command-line tool for the operations go-git
// cannot perform: three-way merges with conflict stages and bundles.
package git

import (
	"context"

	"github.com/colonyops/scmd/internal/core/scm"
)

// MergeMode selects how `git merge` records the result.
type MergeMode int

const (
	// MergeNoFastForward always creates a merge commit.
	MergeNoFastForward MergeMode = iota
	// MergeFastForward fast-forwards when possible.
	MergeFastForward
	// MergeSquash stages the combined changes without committing.
	MergeSquash
)

// MergeOptions configures a merge in a working directory.
type MergeOptions struct {
	Mode    MergeMode
	Message string
	Author  scm.Person
}

// Stage is an index stage of a conflicted path.
type Stage int

const (
	StageBase   Stage = 1
	StageOurs   Stage = 2
	StageTheirs Stage = 3
)

// Git defines the git CLI operations the git backend needs.
type Git interface {
	// Merge merges ref into the checked out branch of dir. A conflict is not
	// an error: conflicted reports whether unmerged paths remain.
	Merge(ctx context.Context, dir, ref string, opts MergeOptions) (conflicted bool, err error)
	// AbortMerge resets an in-progress merge.
	AbortMerge(ctx context.Context, dir string) error
	// UnmergedPaths lists paths left in conflict.
	UnmergedPaths(ctx context.Context, dir string) ([]string, error)
	// ShowStage returns the content of path at the given index stage. ok is
	// false when the stage does not exist, e.g. the side deleted the file.
	ShowStage(ctx context.Context, dir string, stage Stage, path string) (content []byte, ok bool, err error)
	// Commit records the index with the given author.
	Commit(ctx context.Context, dir, message string, author scm.Person) error
	// HasStagedChanges reports whether the index differs from HEAD.
	HasStagedChanges(ctx context.Context, dir string) (bool, error)
	// Head returns the commit id HEAD points to.
	Head(ctx context.Context, dir string) (string, error)
	// BundleCreate writes a bundle of every ref in the repository at dir.
	BundleCreate(ctx context.Context, dir, file string) error
	// BundleFetch imports every ref of a bundle into the repository at dir.
	BundleFetch(ctx context.Context, dir, file string) error
	// CountCommits counts commits reachable from any ref.
	CountCommits(ctx context.Context, dir string) (int, error)
}
