// Package svn is the centralized working-copy backend. It runs svn against
// file:// URLs of local repositories and svnadmin for dumps.
package svn

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/rs/zerolog"
)

// Type is the repository type handled by this backend.
const Type = "svn"

var commands = scm.NewCommandSet(
	scm.CommandBlame, scm.CommandBrowse, scm.CommandCat, scm.CommandDiff, scm.CommandLog,
	scm.CommandModify, scm.CommandBundle, scm.CommandUnbundle, scm.CommandModifications,
)

// Options wires a Backend.
type Options struct {
	// RepositoryDir returns the repository directory of a repository id.
	RepositoryDir func(id string) string
	SvnPath       string
	SvnAdminPath  string
	Exec          executil.Executor
	Pool          *workingcopy.Pool
	Engine        *modify.Engine
	// Hooks is notified after a commit. svn commits publish directly, so
	// there is no pre-receive dispatch. It may be nil.
	Hooks *hook.Dispatcher
}

// Backend resolves providers for svn repositories.
type Backend struct {
	opts    Options
	factory *workingcopy.Factory[*Context, string, *Context]
	log     zerolog.Logger
}

// New creates the svn backend.
func New(opts Options) *Backend {
	if opts.SvnPath == "" {
		opts.SvnPath = "svn"
	}
	if opts.SvnAdminPath == "" {
		opts.SvnAdminPath = "svnadmin"
	}
	b := &Backend{opts: opts, log: logging.Component("svn")}
	b.factory = workingcopy.NewFactory(opts.Pool, b.checkout, nil)
	return b
}

func (b *Backend) Type() string { return Type }

// Provider implements scm.Resolver.
func (b *Backend) Provider(repo scm.Repository) (scm.Provider, error) {
	if repo.Type != Type {
		return nil, fmt.Errorf("repository %s is not a svn repository", repo.NamespaceAndName())
	}
	return &Provider{b: b, repo: repo, ctx: NewContext(repo, b.opts.RepositoryDir(repo.ID))}, nil
}

// Factory exposes the working copy factory.
func (b *Backend) Factory() *workingcopy.Factory[*Context, string, *Context] {
	return b.factory
}

// Create runs svnadmin create for repo.
func (b *Backend) Create(ctx context.Context, repo scm.Repository) error {
	dir := b.opts.RepositoryDir(repo.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scm.Internal(repo, "create repository directory", err)
	}
	if _, err := b.admin(ctx, executil.Command{Args: []string{"create", dir}}); err != nil {
		return scm.Internal(repo, "create repository", err)
	}
	b.log.Info().Str("repository", repo.NamespaceAndName()).Str("dir", dir).Msg("repository created")
	return nil
}

func (b *Backend) svn(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return b.opts.Exec.Output(ctx, executil.Command{
		Dir:  dir,
		Env:  []string{"LC_ALL=C"},
		Name: b.opts.SvnPath,
		Args: append([]string{"--non-interactive"}, args...),
	})
}

func (b *Backend) admin(ctx context.Context, c executil.Command) ([]byte, error) {
	c.Name = b.opts.SvnAdminPath
	c.Env = append(c.Env, "LC_ALL=C")
	return b.opts.Exec.Output(ctx, c)
}

// Provider implements every svn command for one repository.
type Provider struct {
	b    *Backend
	repo scm.Repository
	ctx  *Context
}

func (p *Provider) SupportedCommands() scm.CommandSet { return commands }
func (p *Provider) SupportedFeatures() scm.FeatureSet { return scm.NewFeatureSet() }
func (p *Provider) Close() error                      { return p.ctx.Close() }

func (p *Provider) LogCommand() scm.LogCommand                     { return p }
func (p *Provider) DiffCommand() scm.DiffCommand                   { return p }
func (p *Provider) BlameCommand() scm.BlameCommand                 { return p }
func (p *Provider) BrowseCommand() scm.BrowseCommand               { return p }
func (p *Provider) CatCommand() scm.CatCommand                     { return p }
func (p *Provider) ModifyCommand() scm.ModifyCommand               { return p }
func (p *Provider) BundleCommand() scm.BundleCommand               { return p }
func (p *Provider) UnbundleCommand() scm.UnbundleCommand           { return p }
func (p *Provider) ModificationsCommand() scm.ModificationsCommand { return p }
