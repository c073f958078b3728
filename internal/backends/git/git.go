// Package git is the content-addressed object-store backend. Reads run in
// process on go-git; merges and bundles run the git command-line tool in a
// working copy.
package git

import (
	"context"
	"fmt"
	"os"
	"sync"

	gitcli "github.com/colonyops/scmd/internal/core/git"
	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/lfs"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/rs/zerolog"
)

// Type is the repository type handled by this backend.
const Type = "git"

// DefaultBranch is the branch HEAD points to in new repositories.
const DefaultBranch = "main"

var (
	commands = scm.NewCommandSet(
		scm.CommandBlame, scm.CommandBrowse, scm.CommandCat, scm.CommandDiff, scm.CommandLog,
		scm.CommandTags, scm.CommandBranches, scm.CommandBranch, scm.CommandIncoming,
		scm.CommandOutgoing, scm.CommandPush, scm.CommandPull, scm.CommandMerge,
		scm.CommandModify, scm.CommandBundle, scm.CommandUnbundle, scm.CommandModifications,
	)
	features = scm.NewFeatureSet(
		scm.FeatureIncomingRevision, scm.FeatureModificationsBetweenRevisions, scm.FeatureForcePush,
	)
)

var installTransport sync.Once

// Working copies clone from and push to local bare repositories. Serving
// the file scheme in process keeps that independent of git-upload-pack.
func useInProcessFileTransport() {
	installTransport.Do(func() {
		client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
	})
}

// Options wires a Backend.
type Options struct {
	// RepositoryDir returns the bare repository directory of a repository id.
	RepositoryDir func(id string) string
	// LFSDir returns the large file object directory of a repository id.
	LFSDir  func(id string) string
	Pool    *workingcopy.Pool
	Git     gitcli.Git
	Engine  *modify.Engine
	Hooks   *hook.Dispatcher
	Filters *lfs.FilterRegistry
}

// Backend resolves providers for git repositories.
type Backend struct {
	opts    Options
	factory *workingcopy.Factory[*Context, *gitlib.Repository, *Context]
	log     zerolog.Logger
}

// New creates the git backend.
func New(opts Options) *Backend {
	useInProcessFileTransport()
	return &Backend{
		opts:    opts,
		factory: workingcopy.NewFactory(opts.Pool, cloneWorkingCopy, nil),
		log:     logging.Component("git"),
	}
}

func (b *Backend) Type() string { return Type }

// Provider implements scm.Resolver.
func (b *Backend) Provider(repo scm.Repository) (scm.Provider, error) {
	if repo.Type != Type {
		return nil, fmt.Errorf("repository %s is not a git repository", repo.NamespaceAndName())
	}
	return &Provider{
		b:    b,
		repo: repo,
		ctx:  NewContext(repo, b.opts.RepositoryDir(repo.ID)),
		lfs:  lfs.NewStore(b.opts.LFSDir(repo.ID)),
	}, nil
}

// Factory exposes the working copy factory.
func (b *Backend) Factory() *workingcopy.Factory[*Context, *gitlib.Repository, *Context] {
	return b.factory
}

// Create initializes an empty bare repository for repo.
func (b *Backend) Create(_ context.Context, repo scm.Repository) error {
	dir := b.opts.RepositoryDir(repo.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scm.Internal(repo, "create repository directory", err)
	}
	_, err := gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
		Bare: true,
		InitOptions: gitlib.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
		},
	})
	if err != nil {
		return scm.Internal(repo, "init repository", err)
	}
	b.log.Info().Str("repository", repo.NamespaceAndName()).Str("dir", dir).Msg("repository created")
	return nil
}

// Provider implements every command for one git repository.
type Provider struct {
	b    *Backend
	repo scm.Repository
	ctx  *Context
	lfs  *lfs.Store
}

func (p *Provider) SupportedCommands() scm.CommandSet { return commands }
func (p *Provider) SupportedFeatures() scm.FeatureSet { return features }
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
func (p *Provider) MergeCommand() scm.MergeCommand                 { return &merger{p: p} }
func (p *Provider) ModifyCommand() scm.ModifyCommand               { return p }
func (p *Provider) BundleCommand() scm.BundleCommand               { return p }
func (p *Provider) UnbundleCommand() scm.UnbundleCommand           { return p }
func (p *Provider) ModificationsCommand() scm.ModificationsCommand { return p }
