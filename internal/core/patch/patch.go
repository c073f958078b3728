// Package patch reads git-style extended diffs, the format both hg and svn
// emit with --git.
package patch

import (
	"fmt"
	"io"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/colonyops/scmd/internal/core/scm"
)

// Modifications lists the paths a diff touches. Copies count as additions.
func Modifications(revision string, diff io.Reader) (scm.Modifications, error) {
	files, _, err := gitdiff.Parse(diff)
	if err != nil {
		return scm.Modifications{}, fmt.Errorf("parse diff: %w", err)
	}
	mods := scm.Modifications{Revision: revision}
	for _, f := range files {
		switch {
		case f.IsNew, f.IsCopy:
			mods.Added = append(mods.Added, f.NewName)
		case f.IsDelete:
			mods.Removed = append(mods.Removed, f.OldName)
		case f.IsRename:
			mods.Renamed = append(mods.Renamed, scm.Rename{From: f.OldName, To: f.NewName})
		default:
			mods.Modified = append(mods.Modified, f.NewName)
		}
	}
	return mods, nil
}
