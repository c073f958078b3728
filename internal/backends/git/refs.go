package git

import (
	"context"
	"errors"
	"sort"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/go-git/go-git/v5/plumbing"
)

func (p *Provider) Tags(context.Context) ([]scm.Tag, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return nil, err
	}
	iter, err := r.Tags()
	if err != nil {
		return nil, err
	}

	tags := []scm.Tag{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target, err := peelTag(r, ref)
		if err != nil {
			return err
		}
		tags = append(tags, scm.Tag{Name: ref.Name().Short(), Revision: target.String()})
		return nil
	})
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, err
}

func (p *Provider) Branches(context.Context) ([]scm.Branch, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return nil, err
	}
	def := defaultBranch(r)
	iter, err := r.Branches()
	if err != nil {
		return nil, err
	}

	branches := []scm.Branch{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		b := scm.Branch{
			Name:          ref.Name().Short(),
			Revision:      ref.Hash().String(),
			DefaultBranch: ref.Name().Short() == def,
		}
		if c, err := r.CommitObject(ref.Hash()); err == nil {
			b.LastCommit = c.Committer.When
		}
		branches = append(branches, b)
		return nil
	})
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, err
}

// Branch creates a branch pointing at the head of its parent.
func (p *Provider) Branch(_ context.Context, req scm.BranchRequest) (scm.Branch, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.Branch{}, err
	}

	name := plumbing.NewBranchReferenceName(req.Name)
	if _, err := r.Reference(name, false); err == nil {
		return scm.Branch{}, scm.AlreadyExists(p.repo, req.Name)
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return scm.Branch{}, err
	}

	parent, err := p.resolve(r, req.Parent)
	if err != nil {
		return scm.Branch{}, err
	}
	if err := r.Storer.SetReference(plumbing.NewHashReference(name, parent.Hash)); err != nil {
		return scm.Branch{}, err
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("branch", req.Name).Msg("branch created")
	return scm.Branch{
		Name:       req.Name,
		Revision:   parent.Hash.String(),
		LastCommit: parent.Committer.When,
	}, nil
}

// DeleteBranch removes a branch. The default branch cannot be deleted.
func (p *Provider) DeleteBranch(_ context.Context, name string) error {
	r, err := p.ctx.Open()
	if err != nil {
		return err
	}
	if name == defaultBranch(r) {
		return scm.Invalid("cannot delete default branch %q", name)
	}
	ref := plumbing.NewBranchReferenceName(name)
	if _, err := r.Reference(ref, false); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return scm.NotFound(p.repo, "branch", name)
	} else if err != nil {
		return err
	}
	return r.Storer.RemoveReference(ref)
}
