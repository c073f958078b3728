package stores

import (
	"context"
	"testing"

	"github.com/colonyops/scmd/internal/core/registry"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/data/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepositoryStore(t *testing.T) *RepositoryStore {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewRepositoryStore(database)
}

func TestRepositoryStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	repo := scm.Repository{ID: "r1", Namespace: "space", Name: "hitchhiker", Type: "hg"}
	require.NoError(t, store.Save(ctx, repo))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, repo, got)

	got, err = store.GetByName(ctx, "space", "hitchhiker")
	require.NoError(t, err)
	assert.Equal(t, repo, got)
}

func TestRepositoryStore_SaveUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	repo := scm.Repository{ID: "r1", Namespace: "space", Name: "hitchhiker", Type: "git"}
	require.NoError(t, store.Save(ctx, repo))

	repo.Archived = true
	require.NoError(t, store.Save(ctx, repo))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestRepositoryStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	require.NoError(t, store.Save(ctx, scm.Repository{ID: "r1", Namespace: "space", Name: "hitchhiker", Type: "git"}))
	err := store.Save(ctx, scm.Repository{ID: "r2", Namespace: "space", Name: "hitchhiker", Type: "svn"})
	assert.ErrorIs(t, err, registry.ErrDuplicate)
}

func TestRepositoryStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	require.NoError(t, store.Save(ctx, scm.Repository{ID: "r1", Namespace: "b", Name: "one", Type: "git"}))
	require.NoError(t, store.Save(ctx, scm.Repository{ID: "r2", Namespace: "a", Name: "two", Type: "hg"}))
	require.NoError(t, store.Save(ctx, scm.Repository{ID: "r3", Namespace: "a", Name: "one", Type: "svn"}))

	repos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{repos[0].ID, repos[1].ID, repos[2].ID})
}

func TestRepositoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, err = store.GetByName(ctx, "space", "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), registry.ErrNotFound)
}

func TestRepositoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestRepositoryStore(t)

	require.NoError(t, store.Save(ctx, scm.Repository{ID: "r1", Namespace: "space", Name: "hitchhiker", Type: "git"}))
	require.NoError(t, store.Delete(ctx, "r1"))

	_, err := store.Get(ctx, "r1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
