package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repo = scm.Repository{ID: "r1", Namespace: "space", Name: "hitchhiker", Type: "fake"}

type fakeProvider struct {
	commands scm.CommandSet
	features scm.FeatureSet
	logCalls int
	tagCalls int
	closes   int
	logErr   error
	modified []scm.ModifyRequest
	pushes   []scm.RemoteRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		commands: scm.NewCommandSet(scm.CommandLog, scm.CommandTags, scm.CommandModify, scm.CommandPush, scm.CommandMerge),
		features: scm.NewFeatureSet(),
	}
}

func (p *fakeProvider) SupportedCommands() scm.CommandSet { return p.commands }
func (p *fakeProvider) SupportedFeatures() scm.FeatureSet { return p.features }
func (p *fakeProvider) Close() error                      { p.closes++; return nil }

func (p *fakeProvider) LogCommand() scm.LogCommand       { return p }
func (p *fakeProvider) TagsCommand() scm.TagsCommand     { return p }
func (p *fakeProvider) ModifyCommand() scm.ModifyCommand { return p }
func (p *fakeProvider) PushCommand() scm.PushCommand     { return p }

func (p *fakeProvider) Changeset(_ context.Context, id string) (scm.Changeset, error) {
	p.logCalls++
	return scm.Changeset{ID: id}, p.logErr
}

func (p *fakeProvider) Changesets(_ context.Context, req scm.LogRequest) (scm.ChangesetPage, error) {
	p.logCalls++
	if p.logErr != nil {
		return scm.ChangesetPage{}, p.logErr
	}
	return scm.ChangesetPage{Total: 1, Branch: req.Branch, Changesets: []scm.Changeset{{ID: "abc"}}}, nil
}

func (p *fakeProvider) Tags(context.Context) ([]scm.Tag, error) {
	p.tagCalls++
	return []scm.Tag{{Name: "1.0", Revision: "abc"}}, nil
}

func (p *fakeProvider) Execute(_ context.Context, req scm.ModifyRequest) (string, error) {
	p.modified = append(p.modified, req)
	return "def", nil
}

func (p *fakeProvider) Push(_ context.Context, req scm.RemoteRequest) (scm.PushResponse, error) {
	p.pushes = append(p.pushes, req)
	return scm.PushResponse{Changesets: 2}, nil
}

type fakeResolver struct{ provider *fakeProvider }

func (r fakeResolver) Type() string { return "fake" }

func (r fakeResolver) Provider(scm.Repository) (scm.Provider, error) { return r.provider, nil }

func newService(t *testing.T, p *fakeProvider, caches *Caches) *Service {
	t.Helper()
	svc, err := NewFactory(caches, fakeResolver{provider: p}).Create(repo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestFactory_UnknownType(t *testing.T) {
	f := NewFactory(nil, fakeResolver{provider: newFakeProvider()})

	_, err := f.Create(scm.Repository{ID: "x", Namespace: "a", Name: "b", Type: "cvs"})

	assert.ErrorIs(t, err, scm.ErrUnsupported)
	assert.Equal(t, []string{"fake"}, f.Types())
}

func TestService_Negotiation(t *testing.T) {
	svc := newService(t, newFakeProvider(), nil)

	assert.True(t, svc.IsSupported(scm.CommandLog))
	assert.False(t, svc.IsSupported(scm.CommandBlame))
	assert.False(t, svc.IsFeatureSupported(scm.FeatureForcePush))

	_, err := svc.Blame()
	assert.ErrorIs(t, err, scm.ErrUnsupported)
	assert.EqualError(t, err, "BLAME is not supported by fake repository space/hitchhiker")

	// declared but not implemented
	_, err = svc.Merge()
	assert.ErrorIs(t, err, scm.ErrUnsupported)
}

func TestService_LogCaching(t *testing.T) {
	p := newFakeProvider()
	svc := newService(t, p, NewCaches(16, time.Minute))

	for range 3 {
		b, err := svc.Log()
		require.NoError(t, err)
		page, err := b.Branch("main").Page(0, 10).Changesets(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "main", page.Branch)
	}
	assert.Equal(t, 1, p.logCalls)

	b, err := svc.Log()
	require.NoError(t, err)
	_, err = b.Branch("main").Page(0, 10).DisableCache().Changesets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.logCalls)

	b, err = svc.Log()
	require.NoError(t, err)
	_, err = b.Branch("develop").Changesets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, p.logCalls, "different parameters use different keys")
}

func TestService_CachedResultsAreDetached(t *testing.T) {
	p := newFakeProvider()
	svc := newService(t, p, NewCaches(16, time.Minute))
	ctx := context.Background()

	b, err := svc.Log()
	require.NoError(t, err)
	page, err := b.Branch("main").Changesets(ctx)
	require.NoError(t, err)
	page.Changesets[0].ID = "mutated"

	tb, err := svc.Tags()
	require.NoError(t, err)
	tags, err := tb.Tags(ctx)
	require.NoError(t, err)
	tags[0].Name = "mutated"

	b, err = svc.Log()
	require.NoError(t, err)
	page, err = b.Branch("main").Changesets(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", page.Changesets[0].ID)

	tb, err = svc.Tags()
	require.NoError(t, err)
	tags, err = tb.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0", tags[0].Name)

	assert.Equal(t, 1, p.logCalls)
	assert.Equal(t, 1, p.tagCalls)
}

func TestService_NoCaches(t *testing.T) {
	p := newFakeProvider()
	svc := newService(t, p, nil)

	for range 2 {
		b, err := svc.Tags()
		require.NoError(t, err)
		_, err = b.Tags(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.tagCalls)
}

func TestService_ModifyEvictsRepositoryCache(t *testing.T) {
	p := newFakeProvider()
	caches := NewCaches(16, time.Minute)
	svc := newService(t, p, caches)

	other, err := NewFactory(caches, fakeResolver{provider: newFakeProvider()}).
		Create(scm.Repository{ID: "r2", Namespace: "space", Name: "other", Type: "fake"})
	require.NoError(t, err)

	for _, s := range []*Service{svc, other} {
		b, err := s.Tags()
		require.NoError(t, err)
		_, err = b.Tags(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, caches.Len(scm.CommandTags))

	m, err := svc.Modify()
	require.NoError(t, err)
	revision, err := m.Branch("main").
		Message("add file").
		Author(scm.Person{Name: "Arthur Dent"}).
		CreateFile("a.txt", strings.NewReader("a"), false).
		DeleteFile("b.txt").
		Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "def", revision)
	require.Len(t, p.modified, 1)
	assert.Len(t, p.modified[0].Requests, 2)
	assert.Equal(t, 1, caches.Len(scm.CommandTags), "only r1 entries are evicted")
}

func TestService_Validation(t *testing.T) {
	p := newFakeProvider()
	svc := newService(t, p, nil)
	ctx := context.Background()

	log, err := svc.Log()
	require.NoError(t, err)
	_, err = log.Page(-1, 10).Changesets(ctx)
	assert.ErrorIs(t, err, scm.ErrInvalidRequest)

	log, err = svc.Log()
	require.NoError(t, err)
	_, err = log.Branch("bad branch").Changesets(ctx)
	assert.ErrorIs(t, err, scm.ErrInvalidRequest)

	m, err := svc.Modify()
	require.NoError(t, err)
	_, err = m.Author(scm.Person{Name: "Arthur"}).DeleteFile("a").Execute(ctx)
	assert.ErrorIs(t, err, scm.ErrInvalidRequest, "empty message")

	m, err = svc.Modify()
	require.NoError(t, err)
	_, err = m.Author(scm.Person{Name: "Arthur"}).Message("msg").Execute(ctx)
	assert.ErrorIs(t, err, scm.ErrInvalidRequest, "empty batch")

	assert.Empty(t, p.modified)
	assert.Equal(t, 0, p.logCalls)
}

func TestService_ForcePushNeedsFeature(t *testing.T) {
	p := newFakeProvider()
	svc := newService(t, p, nil)

	push, err := svc.Push()
	require.NoError(t, err)
	_, err = push.Force().Run(context.Background(), "https://example.com/repo")
	assert.ErrorIs(t, err, scm.ErrUnsupported)
	assert.Empty(t, p.pushes)

	p.features = scm.NewFeatureSet(scm.FeatureForcePush)
	push, err = svc.Push()
	require.NoError(t, err)
	res, err := push.Force().Run(context.Background(), "https://example.com/repo")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Changesets)
	assert.True(t, p.pushes[0].Force)
}

func TestService_WrapsNativeErrors(t *testing.T) {
	p := newFakeProvider()
	p.logErr = errors.New("object not found in pack")
	svc := newService(t, p, NewCaches(4, 0))

	log, err := svc.Log()
	require.NoError(t, err)
	_, err = log.Changesets(context.Background())

	assert.ErrorIs(t, err, scm.ErrInternal)
	var ie *scm.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, repo, ie.Repository)

	p.logErr = scm.NotFound(repo, "revision", "zzz")
	_, err = log.DisableCache().Changeset(context.Background(), "zzz")
	assert.ErrorIs(t, err, scm.ErrNotFound)
	assert.NotErrorIs(t, err, scm.ErrInternal)
}

func TestService_CloseOnce(t *testing.T) {
	p := newFakeProvider()
	svc, err := NewFactory(nil, fakeResolver{provider: p}).Create(repo)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
	assert.Equal(t, 1, p.closes)
}

func TestService_ArchivedRejectsWrites(t *testing.T) {
	archived := repo
	archived.Archived = true
	svc, err := NewFactory(nil, fakeResolver{provider: newFakeProvider()}).Create(archived)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	_, err = svc.Modify()
	assert.ErrorIs(t, err, scm.ErrInvalidRequest)
	assert.ErrorContains(t, err, "archived")

	_, err = svc.Push()
	assert.ErrorIs(t, err, scm.ErrInvalidRequest)

	_, err = svc.Log()
	assert.NoError(t, err)

	// capability negotiation wins over the archive check
	_, err = svc.Branch()
	assert.ErrorIs(t, err, scm.ErrUnsupported)
	assert.NotErrorIs(t, err, scm.ErrInvalidRequest)

	_, err = svc.Merge()
	assert.ErrorIs(t, err, scm.ErrUnsupported)
}
