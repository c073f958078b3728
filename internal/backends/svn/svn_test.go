package svn

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
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
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = scm.Repository{ID: "r1", Namespace: "space", Name: "restaurant", Type: Type}

type fixture struct {
	backend *Backend
	exec    *executil.RecordingExecutor
	pool    *workingcopy.Pool
	dir     string
	url     string

	mu       sync.Mutex
	head     int
	handlers map[string]func(executil.RecordedCommand) ([]byte, error)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "repositories", testRepo.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "format"), []byte("5\n"), 0o644))

	pool, err := workingcopy.NewPool(filepath.Join(root, "work"))
	require.NoError(t, err)

	f := &fixture{
		pool:     pool,
		dir:      dir,
		url:      "file://" + filepath.ToSlash(dir),
		handlers: map[string]func(executil.RecordedCommand) ([]byte, error){},
	}
	f.exec = &executil.RecordingExecutor{Handler: f.handle}
	f.on("svn info --xml file:", func(executil.RecordedCommand) ([]byte, error) {
		return []byte(fmt.Sprintf(`<?xml version="1.0"?><info><entry kind="dir" path="r1" revision="%d"></entry></info>`, f.youngest())), nil
	})
	f.backend = New(Options{
		RepositoryDir: func(string) string { return dir },
		Exec:          f.exec,
		Pool:          pool,
		Engine:        modify.NewEngine(nil),
	})
	return f
}

func (f *fixture) youngest() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head
}

func (f *fixture) setHead(n int) {
	f.mu.Lock()
	f.head = n
	f.mu.Unlock()
}

// on registers a handler for command lines starting with prefix. The
// --non-interactive flag is left out of the matched line.
func (f *fixture) on(prefix string, fn func(executil.RecordedCommand) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[prefix] = fn
}

func (f *fixture) reply(prefix, out string) {
	f.on(prefix, func(executil.RecordedCommand) ([]byte, error) { return []byte(out), nil })
}

func (f *fixture) handle(rc executil.RecordedCommand) ([]byte, error) {
	line := strings.Replace(rc.Line(), " --non-interactive", "", 1)
	f.mu.Lock()
	best := ""
	for prefix := range f.handlers {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	fn := f.handlers[best]
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(rc)
}

func (f *fixture) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := f.backend.Provider(testRepo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p.(*Provider)
}

func (f *fixture) lines() []string {
	var out []string
	for _, l := range f.exec.Lines() {
		out = append(out, strings.Replace(l, " --non-interactive", "", 1))
	}
	return out
}

func logXML(revs ...int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><log>`)
	for _, r := range revs {
		fmt.Fprintf(&b, `<logentry revision="%d"><author>trillian</author><date>2024-03-0%dT10:00:00.000000Z</date><msg>change %d</msg></logentry>`, r, r, r)
	}
	b.WriteString(`</log>`)
	return b.String()
}

func TestContext_URL(t *testing.T) {
	f := newFixture(t)
	c := NewContext(testRepo, f.dir)

	u, err := c.URL()
	require.NoError(t, err)
	assert.Equal(t, f.url, u)

	_, err = NewContext(testRepo, t.TempDir()).URL()
	assert.ErrorIs(t, err, scm.ErrNotFound)

	require.NoError(t, c.Close())
	_, err = c.URL()
	assert.Error(t, err)
}

func TestChangesets(t *testing.T) {
	f := newFixture(t)
	f.setHead(3)
	f.reply("svn log --xml -r", logXML(3, 2))

	page, err := f.provider(t).Changesets(context.Background(), scm.LogRequest{Ancestor: "1", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Changesets, 1)
	cs := page.Changesets[0]
	assert.Equal(t, "3", cs.ID)
	assert.Equal(t, []string{"2"}, cs.Parents)
	assert.Equal(t, "trillian", cs.Author.Name)
	assert.Equal(t, "change 3", cs.Description)
	assert.Equal(t, 2024, cs.Date.Year())

	assert.Contains(t, f.lines(), "svn log --xml -r 3:2 "+f.url+"@3")
}

func TestChangesets_EmptyRepository(t *testing.T) {
	f := newFixture(t)

	page, err := f.provider(t).Changesets(context.Background(), scm.LogRequest{})
	require.NoError(t, err)

	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Changesets)
}

func TestChangesets_AncestorIsHead(t *testing.T) {
	f := newFixture(t)
	f.setHead(3)

	page, err := f.provider(t).Changesets(context.Background(), scm.LogRequest{Ancestor: "3"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestChangeset_UnknownRevision(t *testing.T) {
	f := newFixture(t)
	f.setHead(3)
	p := f.provider(t)

	for _, id := range []string{"9", "abc", "-1"} {
		_, err := p.Changeset(context.Background(), id)
		assert.ErrorIs(t, err, scm.ErrNotFound, id)
	}
}

func TestModifications_FromLog(t *testing.T) {
	f := newFixture(t)
	f.setHead(4)
	f.reply("svn log --xml -v -r 4", `<?xml version="1.0"?><log><logentry revision="4">
		<paths>
			<path action="A" kind="file">/docs/new.txt</path>
			<path action="M" kind="file">/README.md</path>
			<path action="D" kind="file">/old.txt</path>
			<path action="A" kind="file" copyfrom-path="/a.txt" copyfrom-rev="3">/b.txt</path>
			<path action="D" kind="file">/a.txt</path>
			<path action="A" kind="dir">/docs</path>
		</paths><msg>mixed</msg></logentry></log>`)

	mods, err := f.provider(t).Modifications(context.Background(), scm.ModificationsRequest{Revision: "4"})
	require.NoError(t, err)

	assert.Equal(t, "4", mods.Revision)
	assert.Equal(t, []string{"docs/new.txt"}, mods.Added)
	assert.Equal(t, []string{"README.md"}, mods.Modified)
	assert.Equal(t, []string{"old.txt"}, mods.Removed)
	assert.Equal(t, []scm.Rename{{From: "a.txt", To: "b.txt"}}, mods.Renamed)
}

func TestModifications_BetweenRevisionsReadsDiff(t *testing.T) {
	f := newFixture(t)
	f.setHead(4)
	f.reply("svn diff --git -r 2:4", "Index: a.txt\n===================================================================\n"+
		"diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-a\n+b\n")

	mods, err := f.provider(t).Modifications(context.Background(), scm.ModificationsRequest{Revision: "4", BaseRevision: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, mods.Modified)
}

const listXML = `<?xml version="1.0"?><lists><list path="x">
	<entry kind="file"><name>README.md</name><size>12</size><commit revision="1"><author>trillian</author><date>2024-03-01T10:00:00Z</date></commit></entry>
	<entry kind="dir"><name>docs</name><commit revision="2"><author>trillian</author><date>2024-03-02T10:00:00Z</date></commit></entry>
	<entry kind="file"><name>docs/guide.md</name><size>40</size><commit revision="2"><author>trillian</author><date>2024-03-02T10:00:00Z</date></commit></entry>
</list></lists>`

func TestBrowse_Recursive(t *testing.T) {
	f := newFixture(t)
	f.setHead(2)
	f.reply("svn list --xml -R", listXML)

	result, err := f.provider(t).Browse(context.Background(), scm.BrowseRequest{Recursive: true})
	require.NoError(t, err)

	assert.Equal(t, "2", result.Revision)
	root := result.File
	require.Len(t, root.Children, 2)
	assert.Equal(t, "README.md", root.Children[0].Name)
	assert.Equal(t, int64(12), root.Children[0].Length)
	docs := root.Children[1]
	assert.True(t, docs.Directory)
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "docs/guide.md", docs.Children[0].Path)
	assert.Equal(t, "2", docs.Children[0].Revision)
}

func TestBrowse_FileIsNotADirectory(t *testing.T) {
	f := newFixture(t)
	f.setHead(2)
	f.reply("svn list --xml", `<?xml version="1.0"?><lists><list path="x"><entry kind="file"><name>README.md</name><size>12</size><commit revision="1"></commit></entry></list></lists>`)

	_, err := f.provider(t).Browse(context.Background(), scm.BrowseRequest{Path: "README.md"})
	assert.ErrorIs(t, err, scm.ErrNotFound)
}

func TestBlame(t *testing.T) {
	f := newFixture(t)
	f.setHead(2)
	f.reply("svn blame --xml", `<?xml version="1.0"?><blame><target path="a.txt">
		<entry line-number="1"><commit revision="1"><author>trillian</author><date>2024-03-01T10:00:00Z</date></commit></entry>
		<entry line-number="2"><commit revision="2"><author>arthur</author><date>2024-03-02T10:00:00Z</date></commit></entry>
	</target></blame>`)
	f.reply("svn cat", "one\ntwo\n")
	f.reply("svn log --xml "+f.url+"/a.txt@2", logXML(2, 1))

	result, err := f.provider(t).Blame(context.Background(), scm.BlameRequest{Path: "a.txt"})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, scm.BlameLine{
		LineNumber:  2,
		Revision:    "2",
		Author:      scm.Person{Name: "arthur"},
		When:        result.Lines[1].When,
		Description: "change 2",
		Code:        "two",
	}, result.Lines[1])
	assert.Equal(t, "one", result.Lines[0].Code)
	assert.Equal(t, "change 1", result.Lines[0].Description)
}

func TestCat(t *testing.T) {
	f := newFixture(t)
	f.setHead(2)
	f.reply("svn cat "+f.url+"/docs/my%20guide.md@1", "content")
	f.on("svn cat "+f.url+"/missing.txt", func(executil.RecordedCommand) ([]byte, error) {
		return nil, errors.New("exec svn: svn: E200009: Could not cat all targets because some targets don't exist")
	})
	p := f.provider(t)

	var buf bytes.Buffer
	require.NoError(t, p.Cat(context.Background(), scm.CatRequest{Revision: "1", Path: "docs/my guide.md"}, &buf))
	assert.Equal(t, "content", buf.String())

	err := p.Cat(context.Background(), scm.CatRequest{Path: "missing.txt"}, &buf)
	assert.ErrorIs(t, err, scm.ErrNotFound)
}

func TestExecute_CommitsAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.setHead(3)

	dispatcher := hook.NewDispatcher(nil)
	var received []scm.Changeset
	dispatcher.Register(hook.ListenerFunc(func(ctx context.Context, hc *hook.Context) error {
		assert.Equal(t, hook.PostReceive, hc.Type())
		cs, err := hc.Changesets(ctx)
		received = cs
		return err
	}))
	f.backend.opts.Hooks = dispatcher

	f.reply("svn info --xml .", `<?xml version="1.0"?><info><entry kind="dir" path="." revision="3"></entry></info>`)
	f.reply("svn status -q", "A       hello.txt\n")
	f.on("svn commit", func(executil.RecordedCommand) ([]byte, error) {
		f.setHead(4)
		return []byte("Adding         hello.txt\nTransmitting file data .done\nCommitting transaction...\nCommitted revision 4.\n"), nil
	})
	f.reply("svn log --xml -r 4", logXML(4))

	revision, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		ExpectedRevision: "3",
		CommitMessage:    "say hello",
		Author:           scm.Person{Name: "trillian"},
		Requests:         []scm.PartialRequest{scm.CreateFile{Path: "hello.txt", Content: strings.NewReader("hello")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "4", revision)

	lines := f.lines()
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "svn checkout -q "+f.url+" "+f.pool.Root()), lines[0])
	assert.Contains(t, lines, "svn add -q --parents hello.txt")
	assert.Contains(t, lines, "svn commit --username trillian -m say hello")

	require.Len(t, received, 1)
	assert.Equal(t, "4", received[0].ID)

	entries, err := f.pool.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_PathsWithAt(t *testing.T) {
	f := newFixture(t)
	f.setHead(3)
	f.reply("svn info --xml .", `<?xml version="1.0"?><info><entry kind="dir" path="." revision="3"></entry></info>`)
	f.reply("svn status -q", "A       mail/user@host.txt\n")
	f.on("svn commit", func(executil.RecordedCommand) ([]byte, error) {
		f.setHead(4)
		return []byte("Committed revision 4.\n"), nil
	})
	f.reply("svn log --xml -r 4", logXML(4))

	_, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		ExpectedRevision: "3",
		CommitMessage:    "mail",
		Author:           scm.Person{Name: "trillian"},
		Requests: []scm.PartialRequest{
			scm.CreateFile{Path: "user@host.txt", Content: strings.NewReader("hi")},
			scm.MoveFile{From: "user@host.txt", To: "mail/user@host.txt"},
		},
	})
	require.NoError(t, err)

	lines := f.lines()
	assert.Contains(t, lines, "svn add -q --parents user@host.txt@")
	assert.Contains(t, lines, "svn mv -q --parents user@host.txt@ mail/user@host.txt@")
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "docs/readme.md", target("docs/readme.md"))
	assert.Equal(t, "user@host.txt@", target("user@host.txt"))
	assert.Equal(t, "a@b/c@d@", target("a@b/c@d"))
}

func TestExecute_StaleRevision(t *testing.T) {
	f := newFixture(t)
	f.reply("svn info --xml .", `<?xml version="1.0"?><info><entry kind="dir" path="." revision="5"></entry></info>`)

	_, err := f.provider(t).Execute(context.Background(), scm.ModifyRequest{
		ExpectedRevision: "3",
		CommitMessage:    "say hello",
		Author:           scm.Person{Name: "trillian"},
		Requests:         []scm.PartialRequest{scm.DeleteFile{Path: "hello.txt"}},
	})
	assert.ErrorIs(t, err, scm.ErrConcurrentModification)
}

func TestBundleAndUnbundle(t *testing.T) {
	f := newFixture(t)
	f.setHead(2)
	f.reply("svnadmin dump", "SVN-fs-dump-format-version: 2\n")
	f.on("svnadmin load", func(executil.RecordedCommand) ([]byte, error) {
		f.setHead(5)
		return nil, nil
	})
	p := f.provider(t)

	var buf bytes.Buffer
	bundle, err := p.Bundle(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), bundle.Bytes)

	unbundle, err := p.Unbundle(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, unbundle.Changesets)
	assert.Contains(t, f.lines(), "svnadmin load -q "+f.dir)
}

func TestLogEntry_DirectoryRename(t *testing.T) {
	var log xmlLog
	require.NoError(t, xml.Unmarshal([]byte(`<log><logentry revision="7"><paths>
		<path action="A" kind="dir" copyfrom-path="/src" copyfrom-rev="6">/lib</path>
		<path action="D" kind="dir">/src</path>
	</paths></logentry></log>`), &log))

	mods := log.Entries[0].modifications()
	assert.Equal(t, []scm.Rename{{From: "src", To: "lib"}}, mods.Renamed)
	assert.Empty(t, mods.Removed)
}
