package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/google/uuid"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const stagingPrefix = "refs/scmd/incoming/"

// staging is a namespace in the bare repository holding pushed branch heads
// until the pre-receive hook accepted them.
type staging struct {
	token string
}

func newStaging() staging { return staging{token: uuid.NewString()} }

func (s staging) ref(branch string) plumbing.ReferenceName {
	return plumbing.ReferenceName(stagingPrefix + s.token + "/heads/" + branch)
}

// refSpec maps a branch of the pushing repository into the staging namespace.
func (s staging) refSpec(src plumbing.ReferenceName, branch string) string {
	return fmt.Sprintf("+%s:%s", src, s.ref(branch))
}

// update is one branch move requested by a publish.
type update struct {
	branch string
	old    plumbing.Hash
	new    plumbing.Hash
}

// receive moves staged branch heads into place after notifying hook
// listeners. Changesets are rejected as a whole: when a pre-receive listener
// fails no branch is moved. It returns the number of new changesets.
func (p *Provider) receive(ctx context.Context, r *gitlib.Repository, st staging, branches []string, force bool) (int, error) {
	defer p.dropStaging(r, st)

	ctx = logging.WithHookToken(logging.WithRepositoryID(ctx, p.repo.ID), st.token)

	var updates []update
	for _, branch := range branches {
		staged, err := r.Reference(st.ref(branch), false)
		if err != nil {
			return 0, fmt.Errorf("staged branch %s: %w", branch, err)
		}
		u := update{branch: branch, new: staged.Hash()}
		if current, err := r.Reference(plumbing.NewBranchReferenceName(branch), false); err == nil {
			u.old = current.Hash()
		} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, err
		}
		if u.old == u.new {
			continue
		}
		if !u.old.IsZero() && !force {
			ok, err := isAncestor(r, u.old, u.new)
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, scm.Invalid("update of branch %q is not a fast-forward", branch)
			}
		}
		updates = append(updates, u)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	changesets, err := p.newChangesets(r, updates)
	if err != nil {
		return 0, err
	}

	if p.b.opts.Hooks != nil {
		pre := hook.NewContext(p.repo, hook.PreReceive, hook.StaticChangesets(changesets...), hook.WithToken(st.token))
		if res := p.b.opts.Hooks.Fire(ctx, pre); res.Rejected() {
			p.b.log.Warn().Ctx(ctx).Strs("messages", res.Lines()).Msg("pre-receive rejected")
			return 0, res.AsError(p.repo)
		}
	}

	for _, u := range updates {
		next := plumbing.NewHashReference(plumbing.NewBranchReferenceName(u.branch), u.new)
		var err error
		if u.old.IsZero() {
			err = r.Storer.SetReference(next)
		} else {
			err = r.Storer.CheckAndSetReference(next,
				plumbing.NewHashReference(plumbing.NewBranchReferenceName(u.branch), u.old))
		}
		if err != nil {
			return 0, fmt.Errorf("update branch %s: %w", u.branch, err)
		}
		p.b.log.Info().Ctx(ctx).Str("branch", u.branch).Str("old", u.old.String()).Str("new", u.new.String()).Msg("branch updated")
	}

	if p.b.opts.Hooks != nil {
		post := hook.NewContext(p.repo, hook.PostReceive, hook.StaticChangesets(changesets...), hook.WithToken(st.token))
		if res := p.b.opts.Hooks.Fire(ctx, post); res.Err != nil {
			p.b.log.Error().Ctx(ctx).Err(res.Err).Msg("post-receive listener failed")
		}
	}
	return len(changesets), nil
}

// newChangesets lists commits reachable from the updated heads that no
// existing branch reaches, oldest first.
func (p *Provider) newChangesets(r *gitlib.Repository, updates []update) ([]scm.Changeset, error) {
	heads, err := branchHeads(r)
	if err != nil {
		return nil, err
	}
	known, err := reachable(r.Storer, heads...)
	if err != nil {
		return nil, err
	}

	var out []scm.Changeset
	for _, u := range updates {
		c, err := r.CommitObject(u.new)
		if err != nil {
			return nil, err
		}
		var batch []scm.Changeset
		err = object.NewCommitPreorderIter(c, known, nil).ForEach(func(c *object.Commit) error {
			known[c.Hash] = true
			cs := toChangeset(c, nil)
			cs.Branches = []string{u.branch}
			batch = append(batch, cs)
			return nil
		})
		if err != nil {
			return nil, err
		}
		for i := len(batch) - 1; i >= 0; i-- {
			out = append(out, batch[i])
		}
	}
	return out, nil
}

func (p *Provider) dropStaging(r *gitlib.Repository, st staging) {
	iter, err := r.References()
	if err != nil {
		return
	}
	prefix := stagingPrefix + st.token + "/"
	var staged []plumbing.ReferenceName
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		if strings.HasPrefix(ref.Name().String(), prefix) {
			staged = append(staged, ref.Name())
		}
		return nil
	})
	for _, name := range staged {
		if err := r.Storer.RemoveReference(name); err != nil {
			p.b.log.Warn().Err(err).Str("ref", name.String()).Msg("failed to drop staged ref")
		}
	}
}

func isAncestor(r *gitlib.Repository, ancestor, of plumbing.Hash) (bool, error) {
	a, err := r.CommitObject(ancestor)
	if err != nil {
		return false, err
	}
	b, err := r.CommitObject(of)
	if err != nil {
		return false, err
	}
	return a.IsAncestor(b)
}
