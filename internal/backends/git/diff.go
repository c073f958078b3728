package git

import (
	"context"
	"io"

	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

func (p *Provider) Diff(ctx context.Context, req scm.DiffRequest, w io.Writer) error {
	r, err := p.ctx.Open()
	if err != nil {
		return err
	}

	changes, err := p.changes(ctx, r, req.Revision, req.AncestorRevision)
	if err != nil {
		return err
	}
	if req.Path != "" {
		changes = filterChanges(changes, underPath(req.Path))
	}

	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return err
	}
	return patch.Encode(w)
}

func (p *Provider) Modifications(ctx context.Context, req scm.ModificationsRequest) (scm.Modifications, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.Modifications{}, err
	}

	changes, err := p.changes(ctx, r, req.Revision, req.BaseRevision)
	if err != nil {
		return scm.Modifications{}, err
	}

	mods := scm.Modifications{Revision: req.Revision}
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return scm.Modifications{}, err
		}
		switch action {
		case merkletrie.Insert:
			mods.Added = append(mods.Added, ch.To.Name)
		case merkletrie.Delete:
			mods.Removed = append(mods.Removed, ch.From.Name)
		case merkletrie.Modify:
			if ch.From.Name != ch.To.Name {
				mods.Renamed = append(mods.Renamed, scm.Rename{From: ch.From.Name, To: ch.To.Name})
			} else {
				mods.Modified = append(mods.Modified, ch.To.Name)
			}
		}
	}
	return mods, nil
}

// changes diffs revision against base, or against its first parent when
// base is empty. Root commits diff against the empty tree.
func (p *Provider) changes(ctx context.Context, r *gitlib.Repository, revision, base string) (object.Changes, error) {
	c, err := p.resolve(r, revision)
	if err != nil {
		return nil, err
	}
	to, err := c.Tree()
	if err != nil {
		return nil, err
	}

	var from *object.Tree
	switch {
	case base != "":
		bc, err := p.resolve(r, base)
		if err != nil {
			return nil, err
		}
		if from, err = bc.Tree(); err != nil {
			return nil, err
		}
	case c.NumParents() > 0:
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		if from, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	return object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
}

func filterChanges(changes object.Changes, match func(string) bool) object.Changes {
	var out object.Changes
	for _, ch := range changes {
		if match(ch.From.Name) || match(ch.To.Name) {
			out = append(out, ch)
		}
	}
	return out
}
