package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

func anonymousRemote(r *gitlib.Repository, url string) (*gitlib.Remote, error) {
	return r.CreateRemoteAnonymous(&config.RemoteConfig{Name: "anonymous", URLs: []string{url}})
}

func headsSpec(branch string, force bool) config.RefSpec {
	src := "refs/heads/*"
	if branch != "" {
		src = "refs/heads/" + branch
	}
	spec := src + ":" + src
	if force {
		spec = "+" + spec
	}
	return config.RefSpec(spec)
}

// Incoming lists changesets of the remote that are not present locally.
// The remote is read into memory and the local repository is not changed.
func (p *Provider) Incoming(ctx context.Context, req scm.RemoteRequest) (scm.ChangesetPage, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	opts := &gitlib.CloneOptions{URL: req.RemoteURL, Tags: gitlib.NoTags}
	if req.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(req.Branch)
		opts.SingleBranch = true
	}
	remote, err := gitlib.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return scm.ChangesetPage{Branch: req.Branch, Changesets: []scm.Changeset{}}, nil
	}
	if err != nil {
		return scm.ChangesetPage{}, fmt.Errorf("read remote: %w", err)
	}

	localHeads, err := branchHeads(r)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	known, err := reachable(r.Storer, localHeads...)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	remoteHeads, err := branchHeads(remote)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	tracking, err := remoteTrackingHeads(remote)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	remoteHeads = append(remoteHeads, tracking...)

	commits, err := unknownCommits(remote.Storer, known, remoteHeads)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	return changesetPage(req.Branch, commits), nil
}

// Outgoing lists local changesets the remote does not have.
func (p *Provider) Outgoing(ctx context.Context, req scm.RemoteRequest) (scm.ChangesetPage, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	commits, err := p.outgoing(ctx, r, req)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	return changesetPage(req.Branch, commits), nil
}

func (p *Provider) outgoing(ctx context.Context, r *gitlib.Repository, req scm.RemoteRequest) ([]*object.Commit, error) {
	remote, err := anonymousRemote(r, req.RemoteURL)
	if err != nil {
		return nil, err
	}
	refs, err := remote.ListContext(ctx, &gitlib.ListOptions{})
	if err != nil && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil, fmt.Errorf("list remote: %w", err)
	}

	var remoteHeads []plumbing.Hash
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference || !ref.Name().IsBranch() {
			continue
		}
		if _, err := r.CommitObject(ref.Hash()); err == nil {
			remoteHeads = append(remoteHeads, ref.Hash())
		}
	}
	known, err := reachable(r.Storer, remoteHeads...)
	if err != nil {
		return nil, err
	}

	var heads []plumbing.Hash
	if req.Branch != "" {
		h, err := p.branchHash(r, req.Branch)
		if err != nil {
			return nil, err
		}
		heads = []plumbing.Hash{h}
	} else if heads, err = branchHeads(r); err != nil {
		return nil, err
	}
	return unknownCommits(r.Storer, known, heads)
}

// Push sends local branches to the remote and returns the number of
// changesets the remote did not have.
func (p *Provider) Push(ctx context.Context, req scm.RemoteRequest) (scm.PushResponse, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.PushResponse{}, err
	}
	if isEmpty(r) {
		return scm.PushResponse{}, nil
	}

	commits, err := p.outgoing(ctx, r, req)
	if err != nil {
		return scm.PushResponse{}, err
	}

	remote, err := anonymousRemote(r, req.RemoteURL)
	if err != nil {
		return scm.PushResponse{}, err
	}
	err = remote.PushContext(ctx, &gitlib.PushOptions{
		RemoteName: "anonymous",
		RefSpecs:   []config.RefSpec{headsSpec(req.Branch, req.Force)},
		Force:      req.Force,
	})
	if errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return scm.PushResponse{}, nil
	}
	if err != nil {
		return scm.PushResponse{}, fmt.Errorf("push: %w", err)
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("remote", req.RemoteURL).Int("changesets", len(commits)).Msg("pushed")
	return scm.PushResponse{Changesets: len(commits)}, nil
}

// Pull fetches branches of the remote into the staging namespace and
// receives them like a push, so hook listeners see pulled changesets.
func (p *Provider) Pull(ctx context.Context, req scm.RemoteRequest) (scm.PullResponse, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.PullResponse{}, err
	}

	st := newStaging()
	src := "refs/heads/*"
	if req.Branch != "" {
		src = "refs/heads/" + req.Branch
	}
	dst := string(st.ref("*"))
	if req.Branch != "" {
		dst = string(st.ref(req.Branch))
	}

	remote, err := anonymousRemote(r, req.RemoteURL)
	if err != nil {
		return scm.PullResponse{}, err
	}
	err = remote.FetchContext(ctx, &gitlib.FetchOptions{
		RemoteName: "anonymous",
		RefSpecs:   []config.RefSpec{config.RefSpec("+" + src + ":" + dst)},
		Tags:       gitlib.NoTags,
	})
	if errors.Is(err, gitlib.NoErrAlreadyUpToDate) || errors.Is(err, transport.ErrEmptyRemoteRepository) {
		p.dropStaging(r, st)
		return scm.PullResponse{}, nil
	}
	if err != nil {
		p.dropStaging(r, st)
		return scm.PullResponse{}, fmt.Errorf("fetch: %w", err)
	}

	p.ctx.Invalidate()
	if r, err = p.ctx.Open(); err != nil {
		return scm.PullResponse{}, err
	}
	branches, err := stagedBranches(r, st)
	if err != nil {
		p.dropStaging(r, st)
		return scm.PullResponse{}, err
	}

	n, err := p.receive(ctx, r, st, branches, req.Force)
	if err != nil {
		return scm.PullResponse{}, err
	}
	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("remote", req.RemoteURL).Int("changesets", n).Msg("pulled")
	return scm.PullResponse{Changesets: n}, nil
}

func stagedBranches(r *gitlib.Repository, st staging) ([]string, error) {
	iter, err := r.References()
	if err != nil {
		return nil, err
	}
	prefix := stagingPrefix + st.token + "/heads/"
	var branches []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if name, ok := strings.CutPrefix(ref.Name().String(), prefix); ok {
			branches = append(branches, name)
		}
		return nil
	})
	sort.Strings(branches)
	return branches, err
}

func remoteTrackingHeads(r *gitlib.Repository) ([]plumbing.Hash, error) {
	iter, err := r.References()
	if err != nil {
		return nil, err
	}
	var heads []plumbing.Hash
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsRemote() && ref.Type() == plumbing.HashReference {
			heads = append(heads, ref.Hash())
		}
		return nil
	})
	return heads, err
}

// unknownCommits walks from heads and collects commits not in known.
func unknownCommits(s storer.EncodedObjectStorer, known map[plumbing.Hash]bool, heads []plumbing.Hash) ([]*object.Commit, error) {
	seen := make(map[plumbing.Hash]bool, len(known))
	for h := range known {
		seen[h] = true
	}
	var out []*object.Commit
	for _, h := range heads {
		if seen[h] {
			continue
		}
		c, err := object.GetCommit(s, h)
		if err != nil {
			return nil, err
		}
		err = object.NewCommitPreorderIter(c, seen, nil).ForEach(func(c *object.Commit) error {
			seen[c.Hash] = true
			out = append(out, c)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Committer.When.After(out[j].Committer.When)
	})
	return out, nil
}

func changesetPage(branch string, commits []*object.Commit) scm.ChangesetPage {
	page := scm.ChangesetPage{Total: len(commits), Branch: branch, Changesets: make([]scm.Changeset, 0, len(commits))}
	for _, c := range commits {
		page.Changesets = append(page.Changesets, toChangeset(c, nil))
	}
	return page
}
