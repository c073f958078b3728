// Package hg is the revision-log backend. Every operation runs the hg
// command-line tool with HGPLAIN set and reads its JSON template output.
package hg

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/kv"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/rs/zerolog"
)

// Type is the repository type handled by this backend.
const Type = "hg"

var commands = scm.NewCommandSet(
	scm.CommandBlame, scm.CommandBrowse, scm.CommandCat, scm.CommandDiff, scm.CommandLog,
	scm.CommandTags, scm.CommandBranches, scm.CommandBranch, scm.CommandIncoming,
	scm.CommandOutgoing, scm.CommandPush, scm.CommandPull, scm.CommandModify,
	scm.CommandBundle, scm.CommandUnbundle, scm.CommandModifications,
)

// Options wires a Backend.
type Options struct {
	// RepositoryDir returns the central repository directory of a repository id.
	RepositoryDir func(id string) string
	HgPath        string
	Exec          executil.Executor
	Pool          *workingcopy.Pool
	Engine        *modify.Engine
	// Configs stores per-repository configuration. It may be nil.
	Configs kv.KV
	// HookURL returns the URL of the hook endpoint, e.g.
	// http://127.0.0.1:8470/hook. Hooks are not wired while it is nil or
	// returns "".
	HookURL    func() string
	Challenges *hook.Challenges
	// HookCommand is the scmd executable written into the hgrc of new
	// repositories.
	HookCommand string
}

// Backend resolves providers for hg repositories.
type Backend struct {
	opts    Options
	factory *workingcopy.Factory[*Context, string, *Context]
	log     zerolog.Logger
}

// New creates the hg backend.
func New(opts Options) *Backend {
	if opts.HgPath == "" {
		opts.HgPath = "hg"
	}
	b := &Backend{opts: opts, log: logging.Component("hg")}
	b.factory = workingcopy.NewFactory(opts.Pool, b.cloneWorkingCopy, nil)
	return b
}

func (b *Backend) Type() string { return Type }

// Provider implements scm.Resolver.
func (b *Backend) Provider(repo scm.Repository) (scm.Provider, error) {
	if repo.Type != Type {
		return nil, fmt.Errorf("repository %s is not a hg repository", repo.NamespaceAndName())
	}
	return &Provider{b: b, repo: repo, ctx: b.context(repo)}, nil
}

func (b *Backend) context(repo scm.Repository) *Context {
	var configs *kv.TypedKV[RepositoryConfig]
	if b.opts.Configs != nil {
		configs = kv.Scoped[RepositoryConfig](b.opts.Configs, "hg")
	}
	return NewContext(repo, b.opts.RepositoryDir(repo.ID), configs)
}

// Factory exposes the working copy factory.
func (b *Backend) Factory() *workingcopy.Factory[*Context, string, *Context] {
	return b.factory
}

// Create runs hg init for repo and installs the scmd hooks.
func (b *Backend) Create(ctx context.Context, repo scm.Repository) error {
	dir := b.opts.RepositoryDir(repo.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scm.Internal(repo, "create repository directory", err)
	}
	r := b.runner(DefaultRepositoryConfig())
	if _, err := r.run(ctx, dir, nil, "init"); err != nil {
		return scm.Internal(repo, "init repository", err)
	}
	if err := installHooks(dir, b.opts.HookCommand); err != nil {
		return scm.Internal(repo, "install hooks", err)
	}
	b.log.Info().Str("repository", repo.NamespaceAndName()).Str("dir", dir).Msg("repository created")
	return nil
}

// Source implements the hook endpoint's changeset source for hg. It lists
// the changesets from node to tip. Pending sources read the transaction the
// calling hook is running in.
func (b *Backend) Source(repo scm.Repository, node string, pending bool) (hook.ChangesetSource, error) {
	if node == "" {
		return nil, fmt.Errorf("hg hook for %s did not report a node", repo.NamespaceAndName())
	}
	c := b.context(repo)
	return hook.ChangesetSourceFunc(func(ctx context.Context) ([]scm.Changeset, error) {
		cfg, err := c.Config(ctx)
		if err != nil {
			return nil, err
		}
		var env []string
		if pending {
			env = append(env, "HG_PENDING="+c.Directory())
		}
		return b.runner(cfg).log(ctx, c.Directory(), env, "log", "-r", node+":tip")
	}), nil
}

func (b *Backend) runner(cfg RepositoryConfig) *runner {
	return &runner{path: b.opts.HgPath, exec: b.opts.Exec, encoding: cfg.Encoding}
}

// Provider implements every hg command for one repository.
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
func (p *Provider) TagsCommand() scm.TagsCommand                   { return p }
func (p *Provider) BranchesCommand() scm.BranchesCommand           { return p }
func (p *Provider) BranchCommand() scm.BranchCommand               { return p }
func (p *Provider) IncomingCommand() scm.IncomingCommand           { return p }
func (p *Provider) OutgoingCommand() scm.OutgoingCommand           { return p }
func (p *Provider) PushCommand() scm.PushCommand                   { return p }
func (p *Provider) PullCommand() scm.PullCommand                   { return p }
func (p *Provider) ModifyCommand() scm.ModifyCommand               { return p }
func (p *Provider) BundleCommand() scm.BundleCommand               { return p }
func (p *Provider) UnbundleCommand() scm.UnbundleCommand           { return p }
func (p *Provider) ModificationsCommand() scm.ModificationsCommand { return p }

// hg returns a runner configured for the repository and its directory.
func (p *Provider) hg(ctx context.Context) (*runner, string, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return nil, "", err
	}
	dir, err := p.ctx.Open()
	if err != nil {
		return nil, "", err
	}
	return p.b.runner(cfg), dir, nil
}
