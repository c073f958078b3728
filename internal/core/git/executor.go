package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/pkg/executil"
)

// Executor implements Git using the git command-line tool.
type Executor struct {
	gitPath string
	exec    executil.Executor
}

// NewExecutor creates a new git executor with the specified git binary path.
func NewExecutor(gitPath string, exec executil.Executor) *Executor {
	return &Executor{gitPath: gitPath, exec: exec}
}

// Path returns the git binary the executor runs.
func (e *Executor) Path() string { return e.gitPath }

func (e *Executor) run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error) {
	return e.exec.Output(ctx, executil.Command{Dir: dir, Env: env, Name: e.gitPath, Args: args})
}

// identity returns the environment that makes person both author and
// committer, so merges never depend on a global git config.
func identity(p scm.Person) []string {
	email := p.Email
	if email == "" {
		email = "noreply@scmd.local"
	}
	return []string{
		"GIT_AUTHOR_NAME=" + p.Name,
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_COMMITTER_NAME=" + p.Name,
		"GIT_COMMITTER_EMAIL=" + email,
	}
}

func (e *Executor) Merge(ctx context.Context, dir, ref string, opts MergeOptions) (bool, error) {
	args := []string{"merge", "--no-edit"}
	switch opts.Mode {
	case MergeNoFastForward:
		args = append(args, "--no-ff")
	case MergeFastForward:
		args = append(args, "--ff")
	case MergeSquash:
		args = append(args, "--squash")
	default:
		return false, fmt.Errorf("unknown merge mode: %d", opts.Mode)
	}
	if opts.Message != "" && opts.Mode != MergeSquash {
		args = append(args, "-m", opts.Message)
	}
	args = append(args, ref)

	_, mergeErr := e.run(ctx, dir, identity(opts.Author), args...)
	if mergeErr == nil {
		return false, nil
	}

	unmerged, err := e.UnmergedPaths(ctx, dir)
	if err != nil {
		return false, errors.Join(mergeErr, err)
	}
	if len(unmerged) > 0 {
		return true, nil
	}
	return false, fmt.Errorf("git merge %s: %w", ref, mergeErr)
}

func (e *Executor) AbortMerge(ctx context.Context, dir string) error {
	if _, err := e.run(ctx, dir, nil, "merge", "--abort"); err != nil {
		return fmt.Errorf("git merge --abort: %w", err)
	}
	return nil
}

func (e *Executor) UnmergedPaths(ctx context.Context, dir string) ([]string, error) {
	out, err := e.run(ctx, dir, nil, "diff", "--name-only", "-z", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("git diff --diff-filter=U: %w", err)
	}
	return splitNUL(string(out)), nil
}

func (e *Executor) ShowStage(ctx context.Context, dir string, stage Stage, path string) ([]byte, bool, error) {
	out, err := e.run(ctx, dir, nil, "ls-files", "-u", "-z", "--", path)
	if err != nil {
		return nil, false, fmt.Errorf("git ls-files -u: %w", err)
	}
	if !hasStage(string(out), stage) {
		return nil, false, nil
	}

	content, err := e.run(ctx, dir, nil, "show", fmt.Sprintf(":%d:%s", stage, path))
	if err != nil {
		return nil, false, fmt.Errorf("git show stage %d of %s: %w", stage, path, err)
	}
	return content, true, nil
}

func (e *Executor) Commit(ctx context.Context, dir, message string, author scm.Person) error {
	if _, err := e.run(ctx, dir, identity(author), "commit", "--no-verify", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

func (e *Executor) HasStagedChanges(ctx context.Context, dir string) (bool, error) {
	_, err := e.run(ctx, dir, nil, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}

func (e *Executor) Head(ctx context.Context, dir string) (string, error) {
	out, err := e.run(ctx, dir, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) BundleCreate(ctx context.Context, dir, file string) error {
	if _, err := e.run(ctx, dir, nil, "bundle", "create", file, "--all"); err != nil {
		return fmt.Errorf("git bundle create: %w", err)
	}
	return nil
}

func (e *Executor) BundleFetch(ctx context.Context, dir, file string) error {
	if _, err := e.run(ctx, dir, nil, "bundle", "verify", file); err != nil {
		return fmt.Errorf("git bundle verify: %w", err)
	}
	if _, err := e.run(ctx, dir, nil, "fetch", file, "+refs/heads/*:refs/heads/*", "+refs/tags/*:refs/tags/*"); err != nil {
		return fmt.Errorf("git fetch bundle: %w", err)
	}
	return nil
}

func (e *Executor) CountCommits(ctx context.Context, dir string) (int, error) {
	out, err := e.run(ctx, dir, nil, "rev-list", "--all", "--count")
	if err != nil {
		return 0, fmt.Errorf("git rev-list: %w", err)
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

// splitNUL splits -z output into records. Paths are kept verbatim, so
// whitespace and non-ASCII names survive.
func splitNUL(s string) []string {
	var records []string
	for _, rec := range strings.Split(s, "\x00") {
		if rec != "" {
			records = append(records, rec)
		}
	}
	return records
}

// hasStage reports whether `git ls-files -u -z` output lists stage.
// Records look like "100644 <blob> 2\tpath".
func hasStage(lsFiles string, stage Stage) bool {
	want := strconv.Itoa(int(stage))
	for _, line := range splitNUL(lsFiles) {
		meta, _, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) == 3 && fields[2] == want {
			return true
		}
	}
	return false
}
