package kv_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/colonyops/scmd/internal/core/kv"
	"github.com/colonyops/scmd/internal/data/db"
	"github.com/colonyops/scmd/internal/data/stores"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) kv.KV {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return stores.NewKVStore(database)
}

type repoSettings struct {
	DefaultBranch string `json:"defaultBranch"`
	Encoding      string `json:"encoding,omitempty"`
}

func TestTypedKV_SetAndGet(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[repoSettings](newTestKV(t), "hg")

	require.NoError(t, typed.Set(ctx, "r1", repoSettings{DefaultBranch: "stable", Encoding: "latin1"}))

	got, err := typed.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "stable", got.DefaultBranch)
	assert.Equal(t, "latin1", got.Encoding)
}

func TestTypedKV_ScopedPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	hg := kv.Scoped[repoSettings](store, "hg")
	svn := kv.Scoped[repoSettings](store, "svn")

	require.NoError(t, hg.Set(ctx, "r1", repoSettings{DefaultBranch: "default"}))
	require.NoError(t, svn.Set(ctx, "r1", repoSettings{DefaultBranch: "trunk"}))

	a, err := hg.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "default", a.DefaultBranch)

	b, err := svn.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "trunk", b.DefaultBranch)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hg:r1", "svn:r1"}, keys)
}

func TestTypedKV_MissingKey(t *testing.T) {
	typed := kv.Scoped[repoSettings](newTestKV(t), "hg")

	_, err := typed.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTypedKV_DeleteAndHas(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[repoSettings](newTestKV(t), "hg")

	has, err := typed.Has(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, typed.Set(ctx, "r1", repoSettings{DefaultBranch: "default"}))
	has, err = typed.Has(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, typed.Delete(ctx, "r1"))
	has, err = typed.Has(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTypedKV_TTL(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[string](newTestKV(t), "activity")

	require.NoError(t, typed.SetTTL(ctx, "r1", "modify", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := typed.Get(ctx, "r1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
