package hg

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
)

// systemUser authors the changesets scmd records on its own behalf.
var systemUser = scm.Person{Name: "scmd", Email: "noreply@scmd.local"}

// Branch starts a named branch at parent. hg records branch names in
// changesets, so creating one commits and pushes an empty changeset.
func (p *Provider) Branch(ctx context.Context, req scm.BranchRequest) (scm.Branch, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return scm.Branch{}, err
	}
	existing, err := p.branchNames(ctx, true)
	if err != nil {
		return scm.Branch{}, err
	}
	if existing[req.Name] {
		return scm.Branch{}, scm.AlreadyExists(p.repo, req.Name)
	}

	wc, err := p.b.factory.Create(ctx, p.repo, p.ctx, "")
	if err != nil {
		return scm.Branch{}, err
	}
	defer wc.Release()

	r := p.b.runner(cfg)
	dir := wc.Directory()
	if req.Parent != "" {
		if _, err := r.run(ctx, dir, nil, "update", "-r", quote(req.Parent)); err != nil {
			return scm.Branch{}, p.revisionError(err, req.Parent)
		}
	}
	if _, err := r.run(ctx, dir, nil, "branch", req.Name); err != nil {
		return scm.Branch{}, fmt.Errorf("hg branch %s: %w", req.Name, err)
	}
	if _, err := r.run(ctx, dir, nil, "commit", "-u", systemUser.String(), "-m", "Create branch "+req.Name); err != nil {
		return scm.Branch{}, fmt.Errorf("commit branch %s: %w", req.Name, err)
	}
	node, err := r.run(ctx, dir, nil, "log", "-r", ".", "-T", "{node}")
	if err != nil {
		return scm.Branch{}, err
	}
	if err := p.pushFrom(ctx, r, dir, wc.Central().Directory()); err != nil {
		return scm.Branch{}, err
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("branch", req.Name).Msg("branch created")
	return scm.Branch{Name: req.Name, Revision: strings.TrimSpace(string(node))}, nil
}

// DeleteBranch closes the head of a named branch.
func (p *Provider) DeleteBranch(ctx context.Context, name string) error {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return err
	}
	if name == cfg.DefaultBranch {
		return scm.Invalid("the default branch %q cannot be deleted", name)
	}
	open, err := p.branchNames(ctx, false)
	if err != nil {
		return err
	}
	if !open[name] {
		return scm.NotFound(p.repo, "branch", name)
	}

	wc, err := p.b.factory.Create(ctx, p.repo, p.ctx, name)
	if err != nil {
		return err
	}
	defer wc.Release()

	r := p.b.runner(cfg)
	if _, err := r.run(ctx, wc.Directory(), nil, "commit", "--close-branch", "-u", systemUser.String(), "-m", "Close branch "+name); err != nil {
		return fmt.Errorf("close branch %s: %w", name, err)
	}
	return p.pushFrom(ctx, r, wc.Directory(), wc.Central().Directory())
}

// branchNames lists branch names, including closed ones when closed is set.
func (p *Provider) branchNames(ctx context.Context, closed bool) (map[string]bool, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return nil, err
	}
	args := []string{"branches"}
	if closed {
		args = append(args, "-c")
	}
	var entries []struct {
		Branch string `json:"branch"`
	}
	if err := r.json(ctx, dir, nil, &entries, args...); err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Branch] = true
	}
	return names, nil
}

// pushFrom pushes the working directory parent of dir into central with
// the hook environment set.
func (p *Provider) pushFrom(ctx context.Context, r *runner, dir, central string) error {
	env, revoke := p.hookEnv()
	defer revoke()
	_, err := r.run(ctx, dir, env, "push", "--new-branch", "-r", ".", central)
	if noChanges(err) {
		return nil
	}
	return p.hookFailure(err)
}

func (p *Provider) Push(ctx context.Context, req scm.RemoteRequest) (scm.PushResponse, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.PushResponse{}, err
	}
	out, err := p.compare(ctx, "outgoing", req)
	if err != nil {
		return scm.PushResponse{}, err
	}
	if out.Total == 0 {
		return scm.PushResponse{}, nil
	}

	args := []string{"push", "--new-branch"}
	args = append(args, remoteArgs(req)...)
	_, err = r.run(ctx, dir, nil, args...)
	if noChanges(err) {
		return scm.PushResponse{}, nil
	}
	if err != nil {
		return scm.PushResponse{}, fmt.Errorf("hg push %s: %w", req.RemoteURL, err)
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("remote", req.RemoteURL).Int("changesets", out.Total).Msg("pushed")
	return scm.PushResponse{Changesets: out.Total}, nil
}

// Pull pulls into the central repository, so its hooks see the pulled
// changesets like pushed ones.
func (p *Provider) Pull(ctx context.Context, req scm.RemoteRequest) (scm.PullResponse, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.PullResponse{}, err
	}
	before, err := p.tipRev(ctx, r, dir)
	if err != nil {
		return scm.PullResponse{}, err
	}

	env, revoke := p.hookEnv()
	defer revoke()
	if _, err := r.run(ctx, dir, env, append([]string{"pull"}, remoteArgs(req)...)...); err != nil {
		if hookErr := p.hookFailure(err); hookErr != err {
			return scm.PullResponse{}, hookErr
		}
		return scm.PullResponse{}, fmt.Errorf("hg pull %s: %w", req.RemoteURL, err)
	}

	after, err := p.tipRev(ctx, r, dir)
	if err != nil {
		return scm.PullResponse{}, err
	}
	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Str("remote", req.RemoteURL).Int("changesets", after-before).Msg("pulled")
	return scm.PullResponse{Changesets: after - before}, nil
}

func remoteArgs(req scm.RemoteRequest) []string {
	var args []string
	if req.Force {
		args = append(args, "-f")
	}
	if req.Branch != "" {
		args = append(args, "-b", req.Branch)
	}
	return append(args, req.RemoteURL)
}

// tipRev returns the local revision number of tip, -1 for an empty
// repository. Revision numbers are dense, so tip+1 counts changesets.
func (p *Provider) tipRev(ctx context.Context, r *runner, dir string) (int, error) {
	out, err := r.run(ctx, dir, nil, "log", "-r", "tip", "-T", "{rev}")
	if err != nil {
		return 0, err
	}
	rev, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse tip revision %q: %w", out, err)
	}
	return rev, nil
}

// Bundle writes an hg bundle of every changeset to w.
func (p *Provider) Bundle(ctx context.Context, w io.Writer) (scm.BundleResponse, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.BundleResponse{}, err
	}
	empty, err := p.isEmpty(ctx, r, dir)
	if err != nil {
		return scm.BundleResponse{}, err
	}
	if empty {
		return scm.BundleResponse{}, scm.Invalid("repository %s has no changesets to bundle", p.repo.NamespaceAndName())
	}

	tmp, err := os.CreateTemp("", "scmd-bundle-*.hg")
	if err != nil {
		return scm.BundleResponse{}, err
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
	defer func() { _ = os.Remove(name) }()

	if _, err := r.run(ctx, dir, nil, "bundle", "--all", name); err != nil {
		return scm.BundleResponse{}, fmt.Errorf("hg bundle: %w", err)
	}

	f, err := os.Open(name)
	if err != nil {
		return scm.BundleResponse{}, err
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	return scm.BundleResponse{Bytes: n}, err
}

// Unbundle applies the bundle read from in to the central repository and
// returns the number of changesets it added.
func (p *Provider) Unbundle(ctx context.Context, in io.Reader) (scm.UnbundleResponse, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	tmp, err := os.CreateTemp("", "scmd-unbundle-*.hg")
	if err != nil {
		return scm.UnbundleResponse{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, err = io.Copy(tmp, in)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	before, err := p.tipRev(ctx, r, dir)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}
	env, revoke := p.hookEnv()
	defer revoke()
	if _, err := r.run(ctx, dir, env, "unbundle", tmp.Name()); err != nil {
		return scm.UnbundleResponse{}, p.hookFailure(fmt.Errorf("hg unbundle: %w", err))
	}
	after, err := p.tipRev(ctx, r, dir)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Int("changesets", after-before).Msg("unbundled")
	return scm.UnbundleResponse{Changesets: after - before}, nil
}
