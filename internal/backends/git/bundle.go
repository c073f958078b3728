package git

import (
	"context"
	"io"
	"os"

	"github.com/colonyops/scmd/internal/core/scm"
)

// Bundle writes a git bundle of every ref to w.
func (p *Provider) Bundle(ctx context.Context, w io.Writer) (scm.BundleResponse, error) {
	if p.b.opts.Git == nil {
		return scm.BundleResponse{}, scm.Unsupported(p.repo, scm.CommandBundle)
	}
	r, err := p.ctx.Open()
	if err != nil {
		return scm.BundleResponse{}, err
	}
	if isEmpty(r) {
		return scm.BundleResponse{}, scm.Invalid("repository %s has no changesets to bundle", p.repo.NamespaceAndName())
	}

	tmp, err := os.CreateTemp("", "scmd-bundle-*")
	if err != nil {
		return scm.BundleResponse{}, err
	}
	name := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(name) }()

	if err := p.b.opts.Git.BundleCreate(ctx, p.ctx.Directory(), name); err != nil {
		return scm.BundleResponse{}, err
	}

	f, err := os.Open(name)
	if err != nil {
		return scm.BundleResponse{}, err
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	return scm.BundleResponse{Bytes: n}, err
}

// Unbundle imports every ref of the bundle read from r and returns the
// number of changesets it added.
func (p *Provider) Unbundle(ctx context.Context, r io.Reader) (scm.UnbundleResponse, error) {
	cli := p.b.opts.Git
	if cli == nil {
		return scm.UnbundleResponse{}, scm.Unsupported(p.repo, scm.CommandUnbundle)
	}

	tmp, err := os.CreateTemp("", "scmd-unbundle-*")
	if err != nil {
		return scm.UnbundleResponse{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	dir := p.ctx.Directory()
	before, err := cli.CountCommits(ctx, dir)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}
	if err := cli.BundleFetch(ctx, dir, tmp.Name()); err != nil {
		return scm.UnbundleResponse{}, err
	}
	p.ctx.Invalidate()

	after, err := cli.CountCommits(ctx, dir)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Int("changesets", after-before).Msg("unbundled")
	return scm.UnbundleResponse{Changesets: after - before}, nil
}
