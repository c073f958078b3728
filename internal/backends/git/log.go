package git

import (
	"context"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

func (p *Provider) Changeset(_ context.Context, id string) (scm.Changeset, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.Changeset{}, err
	}
	c, err := p.resolve(r, id)
	if err != nil {
		return scm.Changeset{}, err
	}
	idx, err := buildRefIndex(r)
	if err != nil {
		return scm.Changeset{}, err
	}
	return toChangeset(c, &idx), nil
}

func (p *Provider) Changesets(ctx context.Context, req scm.LogRequest) (scm.ChangesetPage, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	branch := req.Branch
	if branch == "" {
		branch = defaultBranch(r)
	}
	page := scm.ChangesetPage{Branch: branch, Changesets: []scm.Changeset{}}
	if req.Branch == "" && req.StartRevision == "" && isEmpty(r) {
		return page, nil
	}

	from, err := p.logStart(r, req)
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	var end plumbing.Hash
	if req.EndRevision != "" {
		c, err := p.resolve(r, req.EndRevision)
		if err != nil {
			return scm.ChangesetPage{}, err
		}
		end = c.Hash
	}

	var excluded map[plumbing.Hash]bool
	if req.Ancestor != "" {
		c, err := p.resolve(r, req.Ancestor)
		if err != nil {
			return scm.ChangesetPage{}, err
		}
		if excluded, err = reachable(r.Storer, c.Hash); err != nil {
			return scm.ChangesetPage{}, err
		}
	}

	opts := &gitlib.LogOptions{From: from, Order: gitlib.LogOrderCommitterTime}
	if req.Path != "" {
		opts.PathFilter = underPath(req.Path)
	}
	iter, err := r.Log(opts)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !excluded[c.Hash] {
			commits = append(commits, c)
		}
		if c.Hash == end {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	idx, err := buildRefIndex(r)
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	page.Total = len(commits)
	for _, c := range window(commits, req.Offset, req.Limit) {
		page.Changesets = append(page.Changesets, toChangeset(c, &idx))
	}
	return page, nil
}

func (p *Provider) logStart(r *gitlib.Repository, req scm.LogRequest) (plumbing.Hash, error) {
	switch {
	case req.StartRevision != "":
		c, err := p.resolve(r, req.StartRevision)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	case req.Branch != "":
		return p.branchHash(r, req.Branch)
	default:
		c, err := p.resolve(r, "")
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	}
}

func underPath(dir string) func(string) bool {
	dir = strings.Trim(dir, "/")
	return func(p string) bool {
		return p == dir || strings.HasPrefix(p, dir+"/")
	}
}

// window applies offset and limit. A limit of zero means no limit.
func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
