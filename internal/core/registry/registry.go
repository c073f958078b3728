// Package registry tracks the repositories served by this instance.
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
)

var (
	// ErrNotFound is returned when a repository is not registered.
	ErrNotFound = errors.New("repository not found")
	// ErrDuplicate is returned when namespace/name is already taken.
	ErrDuplicate = errors.New("repository already registered")
)

// Store persists repository records.
type Store interface {
	List(ctx context.Context) ([]scm.Repository, error)
	Get(ctx context.Context, id string) (scm.Repository, error)
	GetByName(ctx context.Context, namespace, name string) (scm.Repository, error)
	Save(ctx context.Context, repo scm.Repository) error
	Delete(ctx context.Context, id string) error
}

// Resolve looks up a repository by id, or by "namespace/name" when ref
// contains a slash.
func Resolve(ctx context.Context, store Store, ref string) (scm.Repository, error) {
	if namespace, name, ok := strings.Cut(ref, "/"); ok {
		return store.GetByName(ctx, namespace, name)
	}
	return store.Get(ctx, ref)
}
