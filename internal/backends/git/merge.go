package git

import (
	"context"
	"errors"
	"fmt"

	gitcli "github.com/colonyops/scmd/internal/core/git"
	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/pmezard/go-difflib/difflib"
)

// merger runs merges with the git command-line tool inside a working copy
// of the target branch, then publishes the result like a push.
type merger struct {
	p *Provider
}

var modes = map[scm.MergeStrategy]gitcli.MergeMode{
	scm.MergeCommit:           gitcli.MergeNoFastForward,
	scm.FastForwardIfPossible: gitcli.MergeFastForward,
	scm.Squash:                gitcli.MergeSquash,
}

// prepared is a working copy of the target with the source fetched.
type prepared struct {
	wc     *gitWorkingCopy
	source string
	target string
}

func (m *merger) prepare(ctx context.Context, req scm.MergeRequest) (*prepared, error) {
	p := m.p
	if p.b.opts.Git == nil {
		return nil, scm.Unsupported(p.repo, scm.CommandMerge)
	}
	r, err := p.ctx.Open()
	if err != nil {
		return nil, err
	}
	source, err := p.branchHash(r, req.Source)
	if err != nil {
		return nil, err
	}
	target, err := p.branchHash(r, req.Target)
	if err != nil {
		return nil, err
	}

	wc, _, err := p.checkout(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	spec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", req.Source, req.Source))
	err = wc.Working().FetchContext(ctx, &gitlib.FetchOptions{RemoteName: "origin", RefSpecs: []config.RefSpec{spec}})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		wc.Release()
		return nil, fmt.Errorf("fetch source branch: %w", err)
	}
	return &prepared{wc: wc, source: source.String(), target: target.String()}, nil
}

func (m *merger) Merge(ctx context.Context, req scm.MergeRequest) (scm.MergeResult, error) {
	p := m.p
	prep, err := m.prepare(ctx, req)
	if err != nil {
		return scm.MergeResult{}, err
	}
	defer prep.wc.Release()

	cli := p.b.opts.Git
	dir := prep.wc.Directory()
	message := req.Message
	if message == "" {
		message = fmt.Sprintf("Merge branch '%s' into %s", req.Source, req.Target)
	}
	result := scm.MergeResult{Source: prep.source, Target: prep.target}

	conflicted, err := cli.Merge(ctx, dir, "origin/"+req.Source, gitcli.MergeOptions{
		Mode:    modes[req.Strategy],
		Message: message,
		Author:  req.Author,
	})
	if err != nil {
		return scm.MergeResult{}, err
	}
	if conflicted {
		result.Conflicts, err = conflicts(ctx, cli, dir)
		if abortErr := cli.AbortMerge(ctx, dir); abortErr != nil {
			p.b.log.Warn().Err(abortErr).Str("dir", dir).Msg("failed to abort merge")
		}
		return result, err
	}

	if req.Strategy == scm.Squash {
		staged, err := cli.HasStagedChanges(ctx, dir)
		if err != nil {
			return scm.MergeResult{}, err
		}
		if !staged {
			return scm.MergeResult{}, scm.NoChanges(p.repo)
		}
		if err := cli.Commit(ctx, dir, message, req.Author); err != nil {
			return scm.MergeResult{}, err
		}
	}

	head, err := cli.Head(ctx, dir)
	if err != nil {
		return scm.MergeResult{}, err
	}
	if head == prep.target {
		return scm.MergeResult{}, scm.NoChanges(p.repo)
	}

	// The command-line tool wrote objects and refs behind the clone's back.
	working, err := gitlib.PlainOpen(dir)
	if err != nil {
		return scm.MergeResult{}, err
	}
	if _, err := p.publish(ctx, working, []string{req.Target}, false); err != nil {
		return scm.MergeResult{}, err
	}

	p.b.log.Info().
		Str("repository", p.repo.NamespaceAndName()).
		Str("source", req.Source).
		Str("target", req.Target).
		Str("strategy", string(req.Strategy)).
		Str("revision", head).
		Msg("merged")

	result.Success = true
	result.Revision = head
	return result, nil
}

// DryRun merges in a throwaway working copy and reports whether the merge
// would be free of conflicts.
func (m *merger) DryRun(ctx context.Context, req scm.MergeRequest) (scm.MergeDryRunResult, error) {
	prep, err := m.prepare(ctx, req)
	if err != nil {
		return scm.MergeDryRunResult{}, err
	}
	defer prep.wc.Release()

	cli := m.p.b.opts.Git
	conflicted, err := cli.Merge(ctx, prep.wc.Directory(), "origin/"+req.Source, gitcli.MergeOptions{
		Mode:   modes[req.Strategy],
		Author: req.Author,
	})
	if err != nil {
		return scm.MergeDryRunResult{}, err
	}
	return scm.MergeDryRunResult{Mergeable: !conflicted}, nil
}

func conflicts(ctx context.Context, cli gitcli.Git, dir string) ([]scm.MergeConflict, error) {
	paths, err := cli.UnmergedPaths(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]scm.MergeConflict, 0, len(paths))
	for _, path := range paths {
		_, hasBase, err := cli.ShowStage(ctx, dir, gitcli.StageBase, path)
		if err != nil {
			return nil, err
		}
		ours, hasOurs, err := cli.ShowStage(ctx, dir, gitcli.StageOurs, path)
		if err != nil {
			return nil, err
		}
		theirs, hasTheirs, err := cli.ShowStage(ctx, dir, gitcli.StageTheirs, path)
		if err != nil {
			return nil, err
		}

		c := scm.MergeConflict{Path: path}
		switch {
		case !hasOurs:
			c.Type = scm.ConflictDeletedByOurs
		case !hasTheirs:
			c.Type = scm.ConflictDeletedByTheir
		case hasBase:
			c.Type = scm.ConflictBothModified
		default:
			c.Type = scm.ConflictBothAdded
		}
		c.Diff, err = conflictDiff(path, ours, theirs)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func conflictDiff(path string, ours, theirs []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(ours)),
		B:        difflib.SplitLines(string(theirs)),
		FromFile: "ours/" + path,
		ToFile:   "theirs/" + path,
		Context:  3,
	})
}
