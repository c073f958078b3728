package hook

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/colonyops/scmd/internal/core/scm"
)

// ChangesetSource loads the changesets a hook reports on.
type ChangesetSource interface {
	Changesets(ctx context.Context) ([]scm.Changeset, error)
}

// ChangesetSourceFunc adapts a function to ChangesetSource.
type ChangesetSourceFunc func(ctx context.Context) ([]scm.Changeset, error)

func (f ChangesetSourceFunc) Changesets(ctx context.Context) ([]scm.Changeset, error) {
	return f(ctx)
}

// StaticChangesets is a ChangesetSource over an already known list.
func StaticChangesets(cs ...scm.Changeset) ChangesetSource {
	return ChangesetSourceFunc(func(context.Context) ([]scm.Changeset, error) {
		return cs, nil
	})
}

// Context describes one hook invocation handed to listeners. Changesets are
// loaded on first request and shared by all listeners.
type Context struct {
	repo    scm.Repository
	typ     Type
	token   string
	pending bool
	source  ChangesetSource

	once       sync.Once
	changesets []scm.Changeset
	loadErr    error

	mu       sync.Mutex
	messages []string
}

// Option configures a Context.
type Option func(*Context)

// WithToken attaches the backend transaction identifier.
func WithToken(token string) Option {
	return func(c *Context) { c.token = token }
}

// WithPending overrides the pending flag derived from the hook type.
func WithPending(pending bool) Option {
	return func(c *Context) { c.pending = pending }
}

// NewContext builds a hook context. Pre-receive contexts are pending unless
// overridden.
func NewContext(repo scm.Repository, typ Type, source ChangesetSource, opts ...Option) *Context {
	c := &Context{repo: repo, typ: typ, source: source, pending: typ.Pending()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) Repository() scm.Repository { return c.repo }
func (c *Context) Type() Type                  { return c.typ }
func (c *Context) Token() string               { return c.token }

// Pending reports whether the changesets are not yet durably stored.
func (c *Context) Pending() bool { return c.pending }

// Changesets returns the incoming changesets, loading them once.
func (c *Context) Changesets(ctx context.Context) ([]scm.Changeset, error) {
	c.once.Do(func() {
		if c.source == nil {
			return
		}
		c.changesets, c.loadErr = c.source.Changesets(ctx)
	})
	return c.changesets, c.loadErr
}

// AddMessage appends a line that is relayed to the pushing client.
func (c *Context) AddMessage(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
}

// Messages returns a copy of the collected messages.
func (c *Context) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}
