package service

import (
	"slices"
	"strings"
	"time"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cache = expirable.LRU[string, any]

// Caches holds one LRU per cacheable read command. Keys are prefixed with
// the repository id so a repository's entries can be evicted together.
type Caches struct {
	byCommand map[scm.Command]*cache
}

var cachedCommands = []scm.Command{
	scm.CommandLog, scm.CommandBlame, scm.CommandBrowse, scm.CommandBranches, scm.CommandTags,
}

// NewCaches creates the read caches. A size of zero returns nil, which
// disables caching.
func NewCaches(size int, ttl time.Duration) *Caches {
	if size <= 0 {
		return nil
	}
	c := &Caches{byCommand: make(map[scm.Command]*cache, len(cachedCommands))}
	for _, cmd := range cachedCommands {
		c.byCommand[cmd] = expirable.NewLRU[string, any](size, nil, ttl)
	}
	return c
}

// Evict removes every cached entry of a repository.
func (c *Caches) Evict(repositoryID string) int {
	if c == nil {
		return 0
	}
	prefix := repositoryID + "|"
	removed := 0
	for _, lru := range c.byCommand {
		for _, key := range lru.Keys() {
			if strings.HasPrefix(key, prefix) && lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of entries cached for cmd.
func (c *Caches) Len(cmd scm.Command) int {
	if c == nil || c.byCommand[cmd] == nil {
		return 0
	}
	return c.byCommand[cmd].Len()
}

func (c *Caches) get(cmd scm.Command) *cache {
	if c == nil {
		return nil
	}
	return c.byCommand[cmd]
}

// cached returns the value stored under key or loads and stores it. A nil
// lru or disabled flag bypasses the cache. Callers always get a detached copy
// so mutating a result never changes what later reads see.
func cached[T any](lru *cache, disabled bool, key string, load func() (T, error)) (T, error) {
	if lru == nil || disabled {
		return load()
	}
	if v, ok := lru.Get(key); ok {
		if t, ok := v.(T); ok {
			return detach(t), nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	lru.Add(key, v)
	return detach(v), nil
}

func detach[T any](v T) T {
	var out any
	switch x := any(v).(type) {
	case scm.Changeset:
		out = x.Clone()
	case scm.ChangesetPage:
		out = x.Clone()
	case scm.BrowserResult:
		out = x.Clone()
	case scm.BlameResult:
		out = x.Clone()
	case []scm.Tag:
		out = slices.Clone(x)
	case []scm.Branch:
		out = slices.Clone(x)
	default:
		return v
	}
	return out.(T)
}
