package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/scmd"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func newTestFlags(t *testing.T) *Flags {
	t.Helper()
	dataDir := t.TempDir()

	cfg, err := config.Load("", dataDir)
	require.NoError(t, err)

	flags := &Flags{DataDir: dataDir, Config: cfg}
	flags.Open = func(context.Context) (*scmd.App, error) {
		database, err := scmd.OpenDatabase(cfg)
		if err != nil {
			return nil, err
		}
		app, err := scmd.New(cfg, database, scmd.Options{
			Exec:        &executil.RecordingExecutor{},
			HookCommand: "/usr/local/bin/scmd",
		})
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		t.Cleanup(func() {
			_ = app.Close()
			_ = database.Close()
		})
		return app, nil
	}
	return flags
}

// run executes args against a root command carrying the repository
// commands and returns stdout.
func run(t *testing.T, flags *Flags, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := &cli.Command{
		Name:           "scmd",
		Writer:         &out,
		ErrWriter:      &out,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	root = NewRepoCmd(flags).Register(root)
	root = NewLogCmd(flags).Register(root)
	root = NewBrowseCmd(flags).Register(root)
	root = NewDiffCmd(flags).Register(root)
	root = NewRefsCmd(flags).Register(root)
	root = NewModifyCmd(flags).Register(root)

	err := root.Run(context.Background(), append([]string{"scmd"}, args...))
	return out.String(), err
}

func writeInput(t *testing.T, in ModifyInput) string {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRepoCommands_CreateAndList(t *testing.T) {
	flags := newTestFlags(t)

	out, err := run(t, flags, "repo", "create", "--type", "git", "--json", "space/heart-of-gold")
	require.NoError(t, err)

	var created scm.Repository
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "space", created.Namespace)
	assert.Equal(t, "heart-of-gold", created.Name)
	assert.Equal(t, "git", created.Type)

	out, err = run(t, flags, "repo", "ls", "--json")
	require.NoError(t, err)

	scanner := bufio.NewScanner(strings.NewReader(out))
	var rows []repoRow
	for scanner.Scan() {
		var row repoRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, created.ID, rows[0].ID)

	out, err = run(t, flags, "repo", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "space/heart-of-gold")
	assert.Contains(t, out, "active")
}

func TestRepoCommands_CreateRequiresNamespace(t *testing.T) {
	flags := newTestFlags(t)

	_, err := run(t, flags, "repo", "create", "heart-of-gold")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<namespace>/<name>")
}

func TestModifyLogCat(t *testing.T) {
	flags := newTestFlags(t)

	_, err := run(t, flags, "repo", "create", "space/hitchhiker")
	require.NoError(t, err)

	input := writeInput(t, ModifyInput{
		Message: "initial import",
		Author:  scm.Person{Name: "Trillian", Email: "trillian@hitchhiker.com"},
		Changes: []FileChange{
			{Action: actionCreate, Path: "README.md", Content: "don't panic\n"},
			{Action: actionCreate, Path: "docs/guide.md", ContentBase64: "Z3VpZGUK"},
		},
	})
	out, err := run(t, flags, "modify", "-f", input, "space/hitchhiker")
	require.NoError(t, err)

	var result ModifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Revision, 40)

	out, err = run(t, flags, "log", "--json", "space/hitchhiker")
	require.NoError(t, err)
	var page scm.ChangesetPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, result.Revision, page.Changesets[0].ID)
	assert.Equal(t, "initial import", page.Changesets[0].Description)

	out, err = run(t, flags, "cat", "space/hitchhiker", "docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "guide\n", out)

	out, err = run(t, flags, "modifications", "--json", "-r", result.Revision, "space/hitchhiker")
	require.NoError(t, err)
	var mods scm.Modifications
	require.NoError(t, json.Unmarshal([]byte(out), &mods))
	assert.ElementsMatch(t, []string{"README.md", "docs/guide.md"}, mods.Added)

	out, err = run(t, flags, "branches", "--json", "space/hitchhiker")
	require.NoError(t, err)
	var branches []scm.Branch
	require.NoError(t, json.Unmarshal([]byte(out), &branches))
	require.Len(t, branches, 1)
	assert.True(t, branches[0].DefaultBranch)
	assert.Equal(t, result.Revision, branches[0].Revision)
}

func TestModify_StaleExpectedRevision(t *testing.T) {
	flags := newTestFlags(t)

	_, err := run(t, flags, "repo", "create", "space/hitchhiker")
	require.NoError(t, err)

	first := writeInput(t, ModifyInput{
		Message: "first",
		Author:  scm.Person{Name: "Arthur"},
		Changes: []FileChange{{Action: actionCreate, Path: "a.txt", Content: "a\n"}},
	})
	_, err = run(t, flags, "modify", "-f", first, "space/hitchhiker")
	require.NoError(t, err)

	stale := writeInput(t, ModifyInput{
		Message:          "second",
		Author:           scm.Person{Name: "Arthur"},
		ExpectedRevision: strings.Repeat("0", 40),
		Changes:          []FileChange{{Action: actionModify, Path: "a.txt", Content: "b\n"}},
	})
	_, err = run(t, flags, "modify", "-f", stale, "space/hitchhiker")
	require.Error(t, err)
	assert.ErrorIs(t, err, scm.ErrConcurrentModification)
}

func TestLog_UnknownRepository(t *testing.T) {
	flags := newTestFlags(t)

	_, err := run(t, flags, "log", "space/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, scm.ErrNotFound)
}
