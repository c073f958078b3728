package git

import (
	"errors"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// defaultBranch returns the branch HEAD points to.
func defaultBranch(r *gitlib.Repository) string {
	ref, err := r.Reference(plumbing.HEAD, false)
	if err != nil || ref.Type() != plumbing.SymbolicReference {
		return DefaultBranch
	}
	return ref.Target().Short()
}

// isEmpty reports whether the repository has no commits yet.
func isEmpty(r *gitlib.Repository) bool {
	_, err := r.Head()
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}

func (p *Provider) branchHash(r *gitlib.Repository, branch string) (plumbing.Hash, error) {
	ref, err := r.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, scm.NotFound(p.repo, "branch", branch)
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// resolve turns a revision, branch or tag name into a commit. An empty
// revision selects the head of the default branch.
func (p *Provider) resolve(r *gitlib.Repository, revision string) (*object.Commit, error) {
	if revision == "" {
		revision = defaultBranch(r)
	}
	hash, err := r.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, scm.NotFound(p.repo, "revision", revision)
		}
		return nil, err
	}
	c, err := r.CommitObject(*hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, scm.NotFound(p.repo, "revision", revision)
	}
	return c, err
}

// refIndex maps commit ids to the branches and tags pointing at them.
type refIndex struct {
	branches map[plumbing.Hash][]string
	tags     map[plumbing.Hash][]string
}

func buildRefIndex(r *gitlib.Repository) (refIndex, error) {
	idx := refIndex{branches: map[plumbing.Hash][]string{}, tags: map[plumbing.Hash][]string{}}

	branches, err := r.Branches()
	if err != nil {
		return idx, err
	}
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		idx.branches[ref.Hash()] = append(idx.branches[ref.Hash()], ref.Name().Short())
		return nil
	})
	if err != nil {
		return idx, err
	}

	tags, err := r.Tags()
	if err != nil {
		return idx, err
	}
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target, err := peelTag(r, ref)
		if err != nil {
			return nil
		}
		idx.tags[target] = append(idx.tags[target], ref.Name().Short())
		return nil
	})
	return idx, err
}

// peelTag returns the commit an annotated or lightweight tag points to.
func peelTag(r *gitlib.Repository, ref *plumbing.Reference) (plumbing.Hash, error) {
	tag, err := r.TagObject(ref.Hash())
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return ref.Hash(), nil
	case err != nil:
		return plumbing.ZeroHash, err
	}
	c, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.Hash, nil
}

func toChangeset(c *object.Commit, idx *refIndex) scm.Changeset {
	cs := scm.Changeset{
		ID:          c.Hash.String(),
		Author:      scm.Person{Name: c.Author.Name, Email: c.Author.Email},
		Date:        c.Author.When,
		Description: strings.TrimRight(c.Message, "\n"),
	}
	for _, parent := range c.ParentHashes {
		cs.Parents = append(cs.Parents, parent.String())
	}
	if idx != nil {
		cs.Branches = idx.branches[c.Hash]
		cs.Tags = idx.tags[c.Hash]
	}
	return cs
}

// reachable collects every commit reachable from the given heads.
func reachable(s storer.EncodedObjectStorer, heads ...plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)
	for _, h := range heads {
		if h.IsZero() || seen[h] {
			continue
		}
		c, err := object.GetCommit(s, h)
		if err != nil {
			return nil, err
		}
		err = object.NewCommitPreorderIter(c, seen, nil).ForEach(func(c *object.Commit) error {
			seen[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return seen, nil
}

// branchHeads lists the hashes of every local branch.
func branchHeads(r *gitlib.Repository) ([]plumbing.Hash, error) {
	iter, err := r.Branches()
	if err != nil {
		return nil, err
	}
	var heads []plumbing.Hash
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		heads = append(heads, ref.Hash())
		return nil
	})
	return heads, err
}
