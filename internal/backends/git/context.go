package git

import (
	"fmt"
	"sync"

	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
)

// Context owns the go-git handle of one bare repository. The handle is
// opened on first use and reused until the repository is written to by
// another handle, which calls Invalidate.
type Context struct {
	repo scm.Repository
	dir  string

	mu     sync.Mutex
	r      *gitlib.Repository
	closed bool
}

// NewContext creates a context for the bare repository in dir.
func NewContext(repo scm.Repository, dir string) *Context {
	return &Context{repo: repo, dir: dir}
}

func (c *Context) Repository() scm.Repository { return c.repo }
func (c *Context) Directory() string          { return c.dir }

// Open returns the go-git repository, opening it if needed.
func (c *Context) Open() (*gitlib.Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("repository context %s is closed", c.repo.NamespaceAndName())
	}
	if c.r != nil {
		return c.r, nil
	}
	r, err := gitlib.PlainOpen(c.dir)
	if err != nil {
		return nil, scm.Internal(c.repo, "open repository", err)
	}
	c.r = r
	return r, nil
}

// Invalidate drops the cached handle. go-git indexes pack files once per
// handle, so packs written by a push are only visible to a new one.
func (c *Context) Invalidate() {
	c.mu.Lock()
	c.r = nil
	c.mu.Unlock()
}

// Close marks the context closed. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	c.closed = true
	c.r = nil
	c.mu.Unlock()
	return nil
}
