package svn

import (
	"context"
	"fmt"
	"io"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/pkg/executil"
)

// Bundle writes an svnadmin dump of every revision to w.
func (p *Provider) Bundle(ctx context.Context, w io.Writer) (scm.BundleResponse, error) {
	if _, err := p.ctx.URL(); err != nil {
		return scm.BundleResponse{}, err
	}
	out, err := p.b.admin(ctx, executil.Command{Args: []string{"dump", "-q", p.ctx.Directory()}})
	if err != nil {
		return scm.BundleResponse{}, fmt.Errorf("svnadmin dump: %w", err)
	}
	n, err := w.Write(out)
	return scm.BundleResponse{Bytes: int64(n)}, err
}

// Unbundle loads a dump into the repository and returns the number of
// revisions it added.
func (p *Provider) Unbundle(ctx context.Context, r io.Reader) (scm.UnbundleResponse, error) {
	before, err := p.youngest(ctx)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}
	_, err = p.b.admin(ctx, executil.Command{Stdin: r, Args: []string{"load", "-q", p.ctx.Directory()}})
	if err != nil {
		return scm.UnbundleResponse{}, fmt.Errorf("svnadmin load: %w", err)
	}
	after, err := p.youngest(ctx)
	if err != nil {
		return scm.UnbundleResponse{}, err
	}

	p.b.log.Info().Str("repository", p.repo.NamespaceAndName()).Int("changesets", after-before).Msg("unbundled")
	return scm.UnbundleResponse{Changesets: after - before}, nil
}
