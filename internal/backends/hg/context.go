package hg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/colonyops/scmd/internal/core/kv"
	"github.com/colonyops/scmd/internal/core/scm"
)

// RepositoryConfig is the per-repository backend configuration.
type RepositoryConfig struct {
	DefaultBranch string `json:"defaultBranch"`
	Encoding      string `json:"encoding"`
}

// DefaultRepositoryConfig returns the configuration of repositories that
// never stored one.
func DefaultRepositoryConfig() RepositoryConfig {
	return RepositoryConfig{DefaultBranch: "default", Encoding: "UTF-8"}
}

// Context resolves the repository directory and loads its configuration on
// first use.
type Context struct {
	repo    scm.Repository
	dir     string
	configs *kv.TypedKV[RepositoryConfig]

	mu     sync.Mutex
	cfg    *RepositoryConfig
	opened bool
	closed bool
}

// NewContext creates a context. configs may be nil.
func NewContext(repo scm.Repository, dir string, configs *kv.TypedKV[RepositoryConfig]) *Context {
	return &Context{repo: repo, dir: dir, configs: configs}
}

func (c *Context) Repository() scm.Repository { return c.repo }
func (c *Context) Directory() string          { return c.dir }

// Open checks that the repository exists and returns its directory.
func (c *Context) Open() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", fmt.Errorf("repository context %s is closed", c.repo.NamespaceAndName())
	}
	if !c.opened {
		if _, err := os.Stat(filepath.Join(c.dir, ".hg")); err != nil {
			return "", scm.NotFound(c.repo, "repository", c.repo.NamespaceAndName())
		}
		c.opened = true
	}
	return c.dir, nil
}

// Config returns the repository configuration, loading it once.
func (c *Context) Config(ctx context.Context) (RepositoryConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg := DefaultRepositoryConfig()
	if c.configs != nil {
		stored, err := c.configs.Get(ctx, c.repo.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return RepositoryConfig{}, scm.Internal(c.repo, "load configuration", err)
		default:
			if stored.DefaultBranch != "" {
				cfg.DefaultBranch = stored.DefaultBranch
			}
			if stored.Encoding != "" {
				cfg.Encoding = stored.Encoding
			}
		}
	}
	c.cfg = &cfg
	return cfg, nil
}

// SetConfig stores cfg and makes it the loaded configuration.
func (c *Context) SetConfig(ctx context.Context, cfg RepositoryConfig) error {
	if c.configs == nil {
		return fmt.Errorf("no configuration store for %s", c.repo.NamespaceAndName())
	}
	if err := c.configs.Set(ctx, c.repo.ID, cfg); err != nil {
		return scm.Internal(c.repo, "store configuration", err)
	}
	c.mu.Lock()
	c.cfg = &cfg
	c.mu.Unlock()
	return nil
}

// Close marks the context closed. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
