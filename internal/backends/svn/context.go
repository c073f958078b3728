package svn

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/colonyops/scmd/internal/core/scm"
)

// Context resolves the file:// URL of a repository on first use.
type Context struct {
	repo scm.Repository
	dir  string

	mu     sync.Mutex
	url    string
	closed bool
}

func NewContext(repo scm.Repository, dir string) *Context {
	return &Context{repo: repo, dir: dir}
}

func (c *Context) Repository() scm.Repository { return c.repo }
func (c *Context) Directory() string          { return c.dir }

// URL returns the file:// URL of the repository.
func (c *Context) URL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", fmt.Errorf("repository context %s is closed", c.repo.NamespaceAndName())
	}
	if c.url != "" {
		return c.url, nil
	}
	if _, err := os.Stat(filepath.Join(c.dir, "format")); err != nil {
		return "", scm.NotFound(c.repo, "repository", c.repo.NamespaceAndName())
	}
	abs, err := filepath.Abs(c.dir)
	if err != nil {
		return "", scm.Internal(c.repo, "resolve repository directory", err)
	}
	c.url = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	return c.url, nil
}

// Close marks the context closed. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
