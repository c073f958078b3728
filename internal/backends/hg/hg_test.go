package hg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	"github.com/colonyops/scmd/internal/data/db"
	"github.com/colonyops/scmd/internal/data/stores"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = scm.Repository{ID: "r1", Namespace: "space", Name: "heartOfGold", Type: Type}

const (
	node1 = "1111111111111111111111111111111111111111"
	node2 = "2222222222222222222222222222222222222222"
)

// exitError fakes the status of a failed hg process.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }
func (e exitError) ExitCode() int { return e.code }

// fakeHg answers hg invocations by their joined argument line.
type fakeHg struct {
	mu       sync.Mutex
	handlers map[string]func(executil.RecordedCommand) ([]byte, error)
}

func (f *fakeHg) on(prefix string, fn func(executil.RecordedCommand) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[prefix] = fn
}

func (f *fakeHg) reply(prefix, out string) {
	f.on(prefix, func(executil.RecordedCommand) ([]byte, error) { return []byte(out), nil })
}

func (f *fakeHg) handle(rc executil.RecordedCommand) ([]byte, error) {
	line := strings.Join(rc.Args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	best := ""
	for prefix := range f.handlers {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil
	}
	return f.handlers[best](rc)
}

type fixture struct {
	backend    *Backend
	exec       *executil.RecordingExecutor
	hg         *fakeHg
	challenges *hook.Challenges
	pool       *workingcopy.Pool
	dir        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "repositories", testRepo.ID)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hg"), 0o755))

	pool, err := workingcopy.NewPool(filepath.Join(root, "work"))
	require.NoError(t, err)

	f := &fixture{
		hg:         &fakeHg{handlers: map[string]func(executil.RecordedCommand) ([]byte, error){}},
		challenges: hook.NewChallenges(0),
		pool:       pool,
		dir:        dir,
	}
	f.exec = &executil.RecordingExecutor{Handler: f.hg.handle}
	f.backend = New(Options{
		RepositoryDir: func(string) string { return dir },
		Exec:          f.exec,
		Pool:          pool,
		Engine:        modify.NewEngine(nil),
		HookURL:       func() string { return "http://127.0.0.1:8420/hook/" },
		Challenges:    f.challenges,
		HookCommand:   "/usr/local/bin/scmd",
	})
	return f
}

func (f *fixture) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := f.backend.Provider(testRepo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p.(*Provider)
}

func logJSON(entries ...string) string {
	return "[" + strings.Join(entries, ",") + "]"
}

func entry(node, branch, desc string, parents ...string) string {
	if len(parents) == 0 {
		parents = []string{nullNode}
	}
	return fmt.Sprintf(`{"rev":0,"node":%q,"branch":%q,"user":"Arthur Dent <arthur@hitchhiker.com>","date":[1700000000,-3600],"desc":%q,"bookmarks":[],"tags":["tip"],"parents":["%s"]}`,
		node, branch, desc, strings.Join(parents, `","`))
}

func TestProvider_RejectsOtherTypes(t *testing.T) {
	f := newFixture(t)
	_, err := f.backend.Provider(scm.Repository{ID: "r2", Type: "git"})
	assert.Error(t, err)
}

func TestChangeset(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -r '"+node2+"'", logJSON(entry(node2, "default", "second\n", node1)))

	cs, err := f.provider(t).Changeset(context.Background(), node2)
	require.NoError(t, err)

	assert.Equal(t, node2, cs.ID)
	assert.Equal(t, []string{node1}, cs.Parents)
	assert.Equal(t, "second", cs.Description)
	assert.Equal(t, scm.Person{Name: "Arthur Dent", Email: "arthur@hitchhiker.com"}, cs.Author)
	assert.Equal(t, []string{"default"}, cs.Branches)
	assert.Empty(t, cs.Tags, "tip is not a tag")
	_, offset := cs.Date.Zone()
	assert.Equal(t, 3600, offset)
}

func TestChangeset_UnknownRevision(t *testing.T) {
	f := newFixture(t)
	f.hg.on("log -r 'nope'", func(executil.RecordedCommand) ([]byte, error) {
		return nil, exitError{code: 255, msg: "abort: unknown revision 'nope'"}
	})

	_, err := f.provider(t).Changeset(context.Background(), "nope")
	assert.ErrorIs(t, err, scm.ErrNotFound)
}

func TestChangesets_RevsetAndPaging(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -l 1", logJSON(entry(node2, "default", "second")))
	f.hg.reply("log -r reverse(", logJSON(
		entry(node2, "default", "second", node1),
		entry(node1, "default", "first"),
	))

	page, err := f.provider(t).Changesets(context.Background(), scm.LogRequest{
		Ancestor: node1,
		Path:     "/docs/",
		Limit:    1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "default", page.Branch)
	require.Len(t, page.Changesets, 1)
	assert.Equal(t, node2, page.Changesets[0].ID)

	lines := f.exec.Lines()
	assert.Contains(t, lines, "hg log -r reverse(ancestors(max(branch('default'))) and not ancestors('"+node1+"')) path:docs -Tjson")
}

func TestChangesets_EmptyRepository(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -l 1", "[]")

	page, err := f.provider(t).Changesets(context.Background(), scm.LogRequest{})
	require.NoError(t, err)

	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Changesets)
	assert.Len(t, f.exec.Commands, 1)
}

func TestRunner_Environment(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("tags", "[]")

	_, err := f.provider(t).Tags(context.Background())
	require.NoError(t, err)

	require.Len(t, f.exec.Commands, 1)
	cmd := f.exec.Commands[0]
	assert.Equal(t, "hg", cmd.Cmd)
	assert.Equal(t, f.dir, cmd.Dir)
	assert.Contains(t, cmd.Env, "HGPLAIN=1")
	assert.Contains(t, cmd.Env, "HGENCODING=UTF-8")
}

func TestLogRevset(t *testing.T) {
	tests := []struct {
		name string
		req  scm.LogRequest
		want string
	}{
		{
			name: "branch head",
			req:  scm.LogRequest{},
			want: "reverse(ancestors(max(branch('feature'))))",
		},
		{
			name: "start and end",
			req:  scm.LogRequest{StartRevision: "b", EndRevision: "a"},
			want: "reverse(ancestors('b') and descendants('a'))",
		},
		{
			name: "quoted",
			req:  scm.LogRequest{StartRevision: `it's`},
			want: `reverse(ancestors('it\'s'))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logRevset("feature", tt.req))
		})
	}
}

const sampleDiff = `diff --git a/added.txt b/added.txt
new file mode 100644
--- /dev/null
+++ b/added.txt
@@ -0,0 +1,1 @@
+hello
diff --git a/removed.txt b/removed.txt
deleted file mode 100644
--- a/removed.txt
+++ /dev/null
@@ -1,1 +0,0 @@
-bye
diff --git a/old.txt b/new.txt
rename from old.txt
rename to new.txt
diff --git a/changed.txt b/changed.txt
--- a/changed.txt
+++ b/changed.txt
@@ -1,1 +1,1 @@
-a
+b
`

func TestModifications_Between(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("diff --git", sampleDiff)

	mods, err := f.provider(t).Modifications(context.Background(), scm.ModificationsRequest{Revision: node2, BaseRevision: node1})
	require.NoError(t, err)

	assert.Equal(t, []string{"hg diff --git -r '" + node1 + "' -r '" + node2 + "'"}, f.exec.Lines())
	assert.Equal(t, []string{"added.txt"}, mods.Added)
	assert.Equal(t, []scm.Rename{{From: "old.txt", To: "new.txt"}}, mods.Renamed)
}

func TestBuildTree(t *testing.T) {
	files := []fileEntry{
		{Path: "README.md", Size: 10},
		{Path: "docs/guide.md", Size: 20},
		{Path: "docs/api/index.md", Size: 30},
	}

	t.Run("top level", func(t *testing.T) {
		root, ok := buildTree("", node1, files, false)
		require.True(t, ok)

		require.Len(t, root.Children, 2)
		assert.Equal(t, "README.md", root.Children[0].Name)
		assert.Equal(t, int64(10), root.Children[0].Length)
		assert.Equal(t, "docs", root.Children[1].Name)
		assert.True(t, root.Children[1].Directory)
		assert.Empty(t, root.Children[1].Children)
	})

	t.Run("recursive below a directory", func(t *testing.T) {
		root, ok := buildTree("docs", node1, files, true)
		require.True(t, ok)

		assert.Equal(t, "docs", root.Path)
		require.Len(t, root.Children, 2)
		assert.Equal(t, "api", root.Children[0].Name)
		require.Len(t, root.Children[0].Children, 1)
		assert.Equal(t, "docs/api/index.md", root.Children[0].Children[0].Path)
		assert.Equal(t, "guide.md", root.Children[1].Name)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, ok := buildTree("nope", node1, files, true)
		assert.False(t, ok)
	})
}

func TestBlame(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -r max(", logJSON(entry(node2, "default", "second", node1)))
	f.hg.reply("annotate", `[{"path":"a.txt","lines":[
		{"date":[1700000000,0],"line":"one\n","node":"`+node1+`","user":"Trillian <trillian@hitchhiker.com>","lineno":1},
		{"date":[1700000100,0],"line":"two\n","node":"`+node2+`","user":"Arthur Dent <arthur@hitchhiker.com>","lineno":2}
	]}]`)
	f.hg.reply("log -r "+node1, logJSON(entry(node1, "default", "first"), entry(node2, "default", "second", node1)))

	result, err := f.provider(t).Blame(context.Background(), scm.BlameRequest{Path: "a.txt"})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, 1, result.Lines[0].LineNumber)
	assert.Equal(t, "one", result.Lines[0].Code)
	assert.Equal(t, "first", result.Lines[0].Description)
	assert.Equal(t, "Trillian", result.Lines[0].Author.Name)
	assert.Equal(t, node2, result.Lines[1].Revision)
	assert.Equal(t, "second", result.Lines[1].Description)
}

func TestCat_MissingFile(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -r max(", logJSON(entry(node1, "default", "first")))
	f.hg.on("cat", func(executil.RecordedCommand) ([]byte, error) {
		return nil, exitError{code: 1, msg: "a.txt: no such file in rev 111111111111"}
	})

	err := f.provider(t).Cat(context.Background(), scm.CatRequest{Path: "a.txt"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, scm.ErrNotFound)
}

func TestTagsAndBranches(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("tags", `[{"tag":"tip","node":"`+node2+`"},{"tag":"v1.0","node":"`+node1+`"}]`)
	f.hg.reply("branches", `[{"branch":"feature","node":"`+node2+`"},{"branch":"default","node":"`+node1+`"}]`)
	f.hg.reply("log -r "+node2, logJSON(entry(node2, "feature", "f", node1), entry(node1, "default", "first")))

	p := f.provider(t)
	tags, err := p.Tags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []scm.Tag{{Name: "v1.0", Revision: node1}}, tags)

	branches, err := p.Branches(context.Background())
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "default", branches[0].Name)
	assert.True(t, branches[0].DefaultBranch)
	assert.Equal(t, "feature", branches[1].Name)
	assert.False(t, branches[1].DefaultBranch)
	assert.False(t, branches[1].LastCommit.IsZero())
}

func TestDeleteBranch_Rules(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("branches", `[{"branch":"default","node":"`+node1+`"}]`)
	p := f.provider(t)

	assert.ErrorIs(t, p.DeleteBranch(context.Background(), "default"), scm.ErrInvalidRequest)
	assert.ErrorIs(t, p.DeleteBranch(context.Background(), "missing"), scm.ErrNotFound)
}

func TestIncoming_NothingToPull(t *testing.T) {
	f := newFixture(t)
	f.hg.on("incoming", func(executil.RecordedCommand) ([]byte, error) {
		return nil, exitError{code: 1, msg: "no changes found"}
	})

	page, err := f.provider(t).Incoming(context.Background(), scm.RemoteRequest{RemoteURL: "https://hg.example.com/r"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Changesets)
}

func TestPull_CountsAndCarriesHookEnvironment(t *testing.T) {
	f := newFixture(t)
	tip := "0"
	f.hg.on("log -r tip", func(executil.RecordedCommand) ([]byte, error) { return []byte(tip), nil })
	f.hg.on("pull", func(rc executil.RecordedCommand) ([]byte, error) {
		assert.Len(t, rc.Env, 6)
		assert.Equal(t, 1, f.challenges.Len())
		tip = "3"
		return nil, nil
	})

	resp, err := f.provider(t).Pull(context.Background(), scm.RemoteRequest{RemoteURL: "https://hg.example.com/r", Branch: "default"})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Changesets)
	assert.Zero(t, f.challenges.Len(), "challenge is revoked after the pull")
	assert.Contains(t, f.exec.Lines(), "hg pull -b default https://hg.example.com/r")
}

func TestExecute_CommitsAndPublishes(t *testing.T) {
	f := newFixture(t)
	head := nullNode
	var pushEnv []string

	f.hg.reply("clone", "")
	f.hg.reply("log -l 1", "[]")
	f.hg.on("log -r . -T {node}", func(executil.RecordedCommand) ([]byte, error) { return []byte(head), nil })
	f.hg.reply("status -mar", "A hello.txt\n")
	f.hg.on("commit", func(executil.RecordedCommand) ([]byte, error) {
		head = node1
		return nil, nil
	})
	f.hg.on("push", func(rc executil.RecordedCommand) ([]byte, error) {
		pushEnv = rc.Env
		return nil, nil
	})

	revision, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		CommitMessage: "say hello",
		Author:        scm.Person{Name: "Trillian", Email: "trillian@hitchhiker.com"},
		Requests:      []scm.PartialRequest{scm.CreateFile{Path: "hello.txt", Content: strings.NewReader("hello")}},
	})
	require.NoError(t, err)
	assert.Equal(t, node1, revision)

	lines := f.exec.Lines()
	assert.Contains(t, lines, "hg add path:hello.txt")
	assert.Contains(t, lines, "hg commit -u Trillian <trillian@hitchhiker.com> -m say hello")

	assert.Contains(t, pushEnv, EnvHookURL+"=http://127.0.0.1:8420/hook/hg/r1")
	assert.Contains(t, pushEnv, EnvRepositoryID+"=r1")
	assert.Zero(t, f.challenges.Len())

	entries, err := f.pool.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "working copy is released")
}

func TestExecute_MoveUsesLiteralSource(t *testing.T) {
	f := newFixture(t)
	head := nullNode
	f.hg.reply("log -l 1", "[]")
	f.hg.on("log -r . -T {node}", func(executil.RecordedCommand) ([]byte, error) { return []byte(head), nil })
	f.hg.reply("status -mar", "A b.txt\n")
	f.hg.on("commit", func(executil.RecordedCommand) ([]byte, error) {
		head = node1
		return nil, nil
	})

	_, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		CommitMessage: "rename",
		Author:        scm.Person{Name: "Trillian"},
		Requests: []scm.PartialRequest{
			scm.CreateFile{Path: "[a].txt", Content: strings.NewReader("glob")},
			scm.MoveFile{From: "[a].txt", To: "b.txt"},
		},
	})
	require.NoError(t, err)

	lines := f.exec.Lines()
	assert.Contains(t, lines, "hg add path:[a].txt")
	assert.Contains(t, lines, "hg mv -- path:[a].txt b.txt")
}

func TestExecute_HookRejection(t *testing.T) {
	f := newFixture(t)
	head := nullNode
	f.hg.reply("log -l 1", "[]")
	f.hg.on("log -r . -T {node}", func(executil.RecordedCommand) ([]byte, error) { return []byte(head), nil })
	f.hg.reply("status -mar", "A hello.txt\n")
	f.hg.on("commit", func(executil.RecordedCommand) ([]byte, error) {
		head = node1
		return nil, nil
	})
	f.hg.on("push", func(executil.RecordedCommand) ([]byte, error) {
		return nil, exitError{code: 255, msg: "abort: pretxnchangegroup.scmd hook exited with status 1"}
	})

	_, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		CommitMessage: "say hello",
		Author:        scm.Person{Name: "Trillian"},
		Requests:      []scm.PartialRequest{scm.CreateFile{Path: "hello.txt", Content: strings.NewReader("hello")}},
	})
	assert.ErrorIs(t, err, scm.ErrHookRejected)
}

func TestSource_PendingReadsTransaction(t *testing.T) {
	f := newFixture(t)
	f.hg.reply("log -r "+node1+":tip", logJSON(entry(node1, "default", "first")))

	src, err := f.backend.Source(testRepo, node1, true)
	require.NoError(t, err)
	changesets, err := src.Changesets(context.Background())
	require.NoError(t, err)

	require.Len(t, changesets, 1)
	assert.Contains(t, f.exec.Commands[0].Env, "HG_PENDING="+f.dir)

	_, err = f.backend.Source(testRepo, "", false)
	assert.Error(t, err)
}

func TestInstallHooks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hg"), 0o755))

	require.NoError(t, installHooks(dir, "/usr/local/bin/scmd"))

	data, err := os.ReadFile(filepath.Join(dir, ".hg", "hgrc"))
	require.NoError(t, err)
	assert.Equal(t, "[hooks]\n"+
		`pretxnchangegroup.scmd = "/usr/local/bin/scmd" hook hg --type pretxnchangegroup`+"\n"+
		`changegroup.scmd = "/usr/local/bin/scmd" hook hg --type changegroup`+"\n", string(data))

	empty := t.TempDir()
	require.NoError(t, installHooks(empty, ""))
	assert.NoFileExists(t, filepath.Join(empty, ".hg", "hgrc"))
}

func TestContext_Config(t *testing.T) {
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	f := newFixture(t)
	f.backend.opts.Configs = stores.NewKVStore(database)
	ctx := context.Background()

	c := f.backend.context(testRepo)
	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultRepositoryConfig(), cfg)

	require.NoError(t, c.SetConfig(ctx, RepositoryConfig{DefaultBranch: "stable", Encoding: "latin1"}))

	reloaded, err := f.backend.context(testRepo).Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stable", reloaded.DefaultBranch)
	assert.Equal(t, "latin1", reloaded.Encoding)
}

func TestContext_MissingRepository(t *testing.T) {
	c := NewContext(testRepo, t.TempDir(), nil)
	_, err := c.Open()
	assert.ErrorIs(t, err, scm.ErrNotFound)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
