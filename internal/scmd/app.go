// Package scmd composes the repository command server: storage, event bus,
// hook dispatch, the version control backends and the command facade.
package scmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/colonyops/scmd/internal/backends/git"
	"github.com/colonyops/scmd/internal/backends/hg"
	"github.com/colonyops/scmd/internal/backends/svn"
	"github.com/colonyops/scmd/internal/core/activity"
	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/eventbus"
	gitcli "github.com/colonyops/scmd/internal/core/git"
	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/lfs"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/service"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	"github.com/colonyops/scmd/internal/data/db"
	"github.com/colonyops/scmd/internal/data/stores"
	"github.com/colonyops/scmd/internal/server"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/rs/zerolog"
)

// Backend is a repository type the application can create and serve.
type Backend interface {
	scm.Resolver
	Create(ctx context.Context, repo scm.Repository) error
}

// App is the central entry point for all scmd operations. Commands consume
// App instead of cherry-picking raw dependencies.
type App struct {
	Config       *config.Config
	DB           *db.DB
	KV           *stores.KVStore
	Bus          *eventbus.EventBus
	Hooks        *hook.Dispatcher
	Challenges   *hook.Challenges
	Activity     *activity.Recorder
	Services     *service.Factory
	Repositories *RepositoryService

	Git *git.Backend
	Hg  *hg.Backend
	Svn *svn.Backend

	backends map[string]Backend
	pools    map[string]*workingcopy.Pool
	server   *server.Server
	log      zerolog.Logger

	mu      sync.RWMutex
	hookURL string
	applied *config.Config

	cancel context.CancelFunc
	done   chan struct{}
}

// Options tunes New.
type Options struct {
	// Exec runs the hg, svn and git command-line tools. Defaults to the real
	// executor.
	Exec executil.Executor
	// HookCommand is the executable hg hooks invoke. Defaults to the running
	// binary.
	HookCommand string
	// ActivityRetention is how long activity records are kept.
	ActivityRetention time.Duration
}

// New wires an App from loaded configuration and an open database. The
// event bus runs until Close.
func New(cfg *config.Config, database *db.DB, opts Options) (*App, error) {
	if opts.Exec == nil {
		opts.Exec = &executil.RealExecutor{}
	}
	if opts.HookCommand == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve scmd executable: %w", err)
		}
		opts.HookCommand = exe
	}
	if opts.ActivityRetention == 0 {
		opts.ActivityRetention = 30 * 24 * time.Hour
	}

	a := &App{
		Config:     cfg,
		applied:    cfg,
		DB:         database,
		KV:         stores.NewKVStore(database),
		Bus:        eventbus.New(256),
		Challenges: hook.NewChallenges(cfg.Hooks.ChallengeTTL),
		pools:      map[string]*workingcopy.Pool{},
		log:        logging.Component("scmd"),
		done:       make(chan struct{}),
	}
	a.Hooks = hook.NewDispatcher(a.Bus)
	a.Activity = activity.NewRecorder(a.KV, opts.ActivityRetention)
	a.Activity.Register(a.Bus)
	eventbus.NewActivityLogger(a.Bus).Register()
	eventbus.RegisterDebugLogger(a.Bus, logging.Component("eventbus"))
	a.Bus.SubscribeConfigReloaded(a.applyConfig)

	for _, typ := range []string{git.Type, hg.Type, svn.Type} {
		pool, err := workingcopy.NewPool(cfg.PoolDir(typ))
		if err != nil {
			return nil, err
		}
		a.pools[typ] = pool
	}

	engine := modify.NewEngine(a.Bus)
	a.Git = git.New(git.Options{
		RepositoryDir: cfg.RepositoryDir,
		LFSDir:        cfg.LFSDir,
		Pool:          a.pools[git.Type],
		Git:           gitcli.NewExecutor(cfg.GitPath, opts.Exec),
		Engine:        engine,
		Hooks:         a.Hooks,
		Filters:       lfs.NewFilterRegistry(cfg.LFS.Stripes),
	})
	a.Hg = hg.New(hg.Options{
		RepositoryDir: cfg.RepositoryDir,
		HgPath:        cfg.HgPath,
		Exec:          opts.Exec,
		Pool:          a.pools[hg.Type],
		Engine:        engine,
		Configs:       a.KV,
		HookURL:       a.HookURL,
		Challenges:    a.Challenges,
		HookCommand:   opts.HookCommand,
	})
	a.Svn = svn.New(svn.Options{
		RepositoryDir: cfg.RepositoryDir,
		SvnPath:       cfg.SvnPath,
		SvnAdminPath:  cfg.SvnadminPath,
		Exec:          opts.Exec,
		Pool:          a.pools[svn.Type],
		Engine:        engine,
		Hooks:         a.Hooks,
	})
	a.backends = map[string]Backend{git.Type: a.Git, hg.Type: a.Hg, svn.Type: a.Svn}

	a.Services = service.NewFactory(service.NewCaches(cfg.Cache.Size, cfg.Cache.TTL), a.Git, a.Hg, a.Svn)
	store := stores.NewRepositoryStore(database)
	a.Repositories = NewRepositoryService(store, a.Services, a.backends, a.Activity, a.KV, cfg)
	a.server = server.New(store, a.Hooks, a.Challenges, map[string]server.SourceFactory{
		hg.Type: a.Hg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.done)
		a.Bus.Start(ctx)
	}()

	return a, nil
}

// Types returns the registered repository types.
func (a *App) Types() []string {
	return slices.Sorted(maps.Keys(a.backends))
}

// PoolDirs returns the working copy pool root of every backend.
func (a *App) PoolDirs() map[string]string {
	dirs := make(map[string]string, len(a.pools))
	for typ, p := range a.pools {
		dirs[typ] = p.Root()
	}
	return dirs
}

// SupportedCommands returns the command names every backend implements.
func (a *App) SupportedCommands() map[string][]string {
	out := make(map[string][]string, len(a.backends))
	for typ, b := range a.backends {
		p, err := b.Provider(scm.Repository{Type: typ})
		if err != nil {
			continue
		}
		for _, cmd := range p.SupportedCommands().Items() {
			out[typ] = append(out[typ], string(cmd))
		}
		_ = p.Close()
	}
	return out
}

// HookURL returns the base URL of the running hook endpoint, or "" while
// none is listening.
func (a *App) HookURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hookURL
}

// ListenHooks starts the hook endpoint on addr and serves it until ctx is
// cancelled. baseURL is the address hook processes call back to; when empty
// it is derived from the listener. The returned channel yields the serve
// result.
func (a *App) ListenHooks(ctx context.Context, addr, baseURL string) (<-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if baseURL == "" {
		baseURL = "http://" + ln.Addr().String()
	}

	a.mu.Lock()
	a.hookURL = baseURL + "/hook"
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		err := a.server.ServeListener(ctx, ln)
		a.mu.Lock()
		a.hookURL = ""
		a.mu.Unlock()
		errCh <- err
	}()
	return errCh, nil
}

// applyConfig takes over the settings of a reloaded configuration that can
// change at runtime. Everything else needs a restart; the warning compares
// against the previous reload so each change is reported once.
func (a *App) applyConfig(p eventbus.ConfigReloadedPayload) {
	next := p.Config
	if next == nil {
		return
	}
	if palette, ok := styles.GetPalette(next.Theme); ok {
		styles.SetTheme(palette)
	}

	a.mu.Lock()
	cur := a.applied
	a.applied = next
	a.mu.Unlock()

	restart := cur.DataDir != next.DataDir ||
		cur.GitPath != next.GitPath ||
		cur.HgPath != next.HgPath ||
		cur.SvnPath != next.SvnPath ||
		cur.SvnadminPath != next.SvnadminPath ||
		cur.Server != next.Server ||
		cur.WorkingCopies != next.WorkingCopies ||
		cur.Cache != next.Cache ||
		cur.LFS != next.LFS ||
		cur.Database != next.Database
	if restart {
		a.log.Warn().Msg("configuration changed, restart scmd to apply path and listener settings")
	}
	a.log.Info().Str("theme", next.Theme).Msg("configuration reloaded")
}

// Close stops the event bus after delivering buffered events.
func (a *App) Close() error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	<-a.done
	a.Bus.Drain()
	a.cancel = nil
	return nil
}

// OpenDatabase opens the database in dataDir. A corrupt database is moved
// aside and recreated.
func OpenDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}
	database, err := db.Open(cfg.DataDir, opts)
	switch {
	case err == nil:
		return database, nil
	case stores.IsBusyError(err):
		return nil, fmt.Errorf("database is locked by another scmd process: %w", err)
	case stores.IsCorruptionError(err):
		l := logging.Component("scmd")
		l.Warn().Err(err).Msg("database corrupt, recreating")
		if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return db.Open(cfg.DataDir, opts)
	default:
		return nil, err
	}
}
