package git

import (
	"context"
	"errors"
	"testing"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_MergeArgs(t *testing.T) {
	tests := []struct {
		name string
		opts MergeOptions
		want string
	}{
		{
			name: "merge commit",
			opts: MergeOptions{Mode: MergeNoFastForward, Message: "merge feature"},
			want: "git merge --no-edit --no-ff -m merge feature origin/feature",
		},
		{
			name: "fast forward",
			opts: MergeOptions{Mode: MergeFastForward},
			want: "git merge --no-edit --ff origin/feature",
		},
		{
			name: "squash ignores message",
			opts: MergeOptions{Mode: MergeSquash, Message: "ignored"},
			want: "git merge --no-edit --squash origin/feature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &executil.RecordingExecutor{}
			e := NewExecutor("git", rec)

			conflicted, err := e.Merge(context.Background(), "/wc", "origin/feature", tt.opts)
			require.NoError(t, err)

			assert.False(t, conflicted)
			require.Len(t, rec.Commands, 1)
			assert.Equal(t, tt.want, rec.Commands[0].Line())
			assert.Equal(t, "/wc", rec.Commands[0].Dir)
		})
	}
}

func TestExecutor_MergeAuthorIdentity(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	e := NewExecutor("git", rec)

	_, err := e.Merge(context.Background(), "/wc", "main", MergeOptions{Author: scm.Person{Name: "Trillian"}})
	require.NoError(t, err)

	env := rec.Commands[0].Env
	assert.Contains(t, env, "GIT_AUTHOR_NAME=Trillian")
	assert.Contains(t, env, "GIT_COMMITTER_EMAIL=noreply@scmd.local")
}

func TestExecutor_MergeConflict(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Errors:  map[string]error{"git merge": errors.New("exit status 1")},
		Outputs: map[string][]byte{"git diff": []byte("a.txt\x00src/b.go\x00")},
	}
	e := NewExecutor("git", rec)

	conflicted, err := e.Merge(context.Background(), "/wc", "origin/feature", MergeOptions{})
	require.NoError(t, err)
	assert.True(t, conflicted)

	paths, err := e.UnmergedPaths(context.Background(), "/wc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "src/b.go"}, paths)
}

func TestExecutor_UnmergedPathsKeepsNamesVerbatim(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Outputs: map[string][]byte{"git diff": []byte("café.txt\x00 padded name.txt \x00dir/tab\there.txt\x00")},
	}
	e := NewExecutor("git", rec)

	paths, err := e.UnmergedPaths(context.Background(), "/wc")
	require.NoError(t, err)
	assert.Equal(t, []string{"café.txt", " padded name.txt ", "dir/tab\there.txt"}, paths)
	assert.Equal(t, "git diff --name-only -z --diff-filter=U", rec.Lines()[0])
}

func TestExecutor_MergeFailureWithoutConflict(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Errors: map[string]error{"git merge": errors.New("not something we can merge")},
	}
	e := NewExecutor("git", rec)

	conflicted, err := e.Merge(context.Background(), "/wc", "nope", MergeOptions{})
	require.Error(t, err)
	assert.False(t, conflicted)
	assert.Contains(t, err.Error(), "not something we can merge")
}

func TestExecutor_ShowStage(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(rc executil.RecordedCommand) ([]byte, error) {
			switch rc.Args[0] {
			case "ls-files":
				return []byte("100644 aaa 1\ta.txt\x00100644 bbb 2\ta.txt\x00"), nil
			case "show":
				return []byte("ours\n"), nil
			}
			return nil, nil
		},
	}
	e := NewExecutor("git", rec)

	content, ok, err := e.ShowStage(context.Background(), "/wc", StageOurs, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ours\n", string(content))
	assert.Equal(t, "git show :2:a.txt", rec.Lines()[1])

	_, ok, err = e.ShowStage(context.Background(), "/wc", StageTheirs, "a.txt")
	require.NoError(t, err)
	assert.False(t, ok, "deleted on their side")
}

func TestExecutor_CountCommits(t *testing.T) {
	rec := &executil.RecordingExecutor{Outputs: map[string][]byte{"git rev-list": []byte("42\n")}}
	e := NewExecutor("git", rec)

	n, err := e.CountCommits(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestExecutor_BundleFetch(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	e := NewExecutor("/usr/bin/git", rec)

	require.NoError(t, e.BundleFetch(context.Background(), "/repo", "/tmp/x.bundle"))
	assert.Equal(t, []string{
		"/usr/bin/git bundle verify /tmp/x.bundle",
		"/usr/bin/git fetch /tmp/x.bundle +refs/heads/*:refs/heads/* +refs/tags/*:refs/tags/*",
	}, rec.Lines())
}

func TestHasStage(t *testing.T) {
	out := "100644 aaa 1\tf.txt\x00100644 ccc 3\tf.txt\x00"
	assert.True(t, hasStage(out, StageBase))
	assert.False(t, hasStage(out, StageOurs))
	assert.True(t, hasStage(out, StageTheirs))
	assert.False(t, hasStage("", StageOurs))
}
