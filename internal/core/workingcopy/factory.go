package workingcopy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/scm"
)

// Initializer materializes a checkout of branch from the repository of
// record into dir. An empty branch selects the repository's default.
type Initializer[R, W, C any] func(ctx context.Context, repo R, dir, branch string) (W, C, error)

// Closer releases the working handle before its directory is removed.
type Closer[W any] func(W) error

// Factory creates working copies for one backend. R is the backend's
// repository context, W the handle on the working checkout and C the handle
// on the central repository.
type Factory[R, W, C any] struct {
	pool   *Pool
	init   Initializer[R, W, C]
	closer Closer[W]
	active atomic.Int64
}

// NewFactory binds a backend initializer to a pool. closer may be nil.
func NewFactory[R, W, C any](pool *Pool, init Initializer[R, W, C], closer Closer[W]) *Factory[R, W, C] {
	return &Factory[R, W, C]{pool: pool, init: init, closer: closer}
}

// Active reports the number of working copies that have not been released.
func (f *Factory[R, W, C]) Active() int {
	return int(f.active.Load())
}

// Pool returns the pool the factory allocates from.
func (f *Factory[R, W, C]) Pool() *Pool { return f.pool }

// Create allocates a directory and initializes a checkout of branch in it.
// On failure the directory is freed before the error, wrapped as an internal
// repository error, is returned.
func (f *Factory[R, W, C]) Create(ctx context.Context, repository scm.Repository, repo R, branch string) (*WorkingCopy[W, C], error) {
	dir, err := f.pool.Allocate()
	if err != nil {
		return nil, scm.Internal(repository, "create working copy", err)
	}

	working, central, err := f.init(ctx, repo, dir, branch)
	if err != nil {
		f.pool.Free(dir)
		return nil, scm.Internal(repository, "initialize working copy", err)
	}

	f.active.Add(1)
	log := logging.Component("workingcopy")
	log.Debug().Ctx(ctx).Str("dir", dir).Str("branch", branch).Msg("working copy created")

	return &WorkingCopy[W, C]{
		working:    working,
		central:    central,
		dir:        dir,
		repository: repository,
		release: func() {
			if f.closer != nil {
				if err := f.closer(working); err != nil {
					log.Error().Err(err).Str("dir", dir).Msg("failed to close working copy")
				}
			}
			f.pool.Free(dir)
			f.active.Add(-1)
		},
	}, nil
}

// WorkingCopy is a checkout scoped to one mutating invocation.
type WorkingCopy[W, C any] struct {
	working    W
	central    C
	dir        string
	repository scm.Repository
	once       sync.Once
	release    func()
}

func (w *WorkingCopy[W, C]) Working() W                 { return w.working }
func (w *WorkingCopy[W, C]) Central() C                 { return w.central }
func (w *WorkingCopy[W, C]) Directory() string          { return w.dir }
func (w *WorkingCopy[W, C]) Repository() scm.Repository { return w.repository }

// Release closes the working handle and removes the directory. It is safe to
// call more than once.
func (w *WorkingCopy[W, C]) Release() {
	w.once.Do(w.release)
}
