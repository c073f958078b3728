package hg

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
)

func (p *Provider) Changeset(ctx context.Context, id string) (scm.Changeset, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.Changeset{}, err
	}
	changesets, err := r.log(ctx, dir, nil, "log", "-r", quote(id))
	if err != nil {
		return scm.Changeset{}, p.revisionError(err, id)
	}
	if len(changesets) == 0 {
		return scm.Changeset{}, scm.NotFound(p.repo, "revision", id)
	}
	return changesets[0], nil
}

func (p *Provider) Changesets(ctx context.Context, req scm.LogRequest) (scm.ChangesetPage, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.ChangesetPage{}, err
	}

	branch := req.Branch
	if branch == "" {
		branch = cfg.DefaultBranch
	}
	page := scm.ChangesetPage{Branch: branch, Changesets: []scm.Changeset{}}
	if req.Branch == "" && req.StartRevision == "" {
		empty, err := p.isEmpty(ctx, r, dir)
		if err != nil {
			return scm.ChangesetPage{}, err
		}
		if empty {
			return page, nil
		}
	}

	args := []string{"log", "-r", logRevset(branch, req)}
	if req.Path != "" {
		args = append(args, "path:"+strings.Trim(req.Path, "/"))
	}
	changesets, err := r.log(ctx, dir, nil, args...)
	if err != nil {
		return scm.ChangesetPage{}, p.revisionError(err, firstNonEmpty(req.StartRevision, req.EndRevision, req.Ancestor, branch))
	}

	page.Total = len(changesets)
	page.Changesets = append(page.Changesets, window(changesets, req.Offset, req.Limit)...)
	return page, nil
}

// logRevset selects the ancestors of the start revision, or of the head of
// branch, newest first.
func logRevset(branch string, req scm.LogRequest) string {
	head := fmt.Sprintf("max(branch(%s))", quote(branch))
	if req.StartRevision != "" {
		head = quote(req.StartRevision)
	}
	set := fmt.Sprintf("ancestors(%s)", head)
	if req.EndRevision != "" {
		set += fmt.Sprintf(" and descendants(%s)", quote(req.EndRevision))
	}
	if req.Ancestor != "" {
		set += fmt.Sprintf(" and not ancestors(%s)", quote(req.Ancestor))
	}
	return "reverse(" + set + ")"
}

func (p *Provider) Incoming(ctx context.Context, req scm.RemoteRequest) (scm.ChangesetPage, error) {
	return p.compare(ctx, "incoming", req)
}

func (p *Provider) Outgoing(ctx context.Context, req scm.RemoteRequest) (scm.ChangesetPage, error) {
	return p.compare(ctx, "outgoing", req)
}

// compare runs hg incoming or outgoing against the remote. Both exit with
// status 1 when the repositories are in sync.
func (p *Provider) compare(ctx context.Context, command string, req scm.RemoteRequest) (scm.ChangesetPage, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	args := []string{command}
	if req.Branch != "" {
		args = append(args, "-b", req.Branch)
	}
	if command == "outgoing" && req.Force {
		args = append(args, "-f")
	}
	args = append(args, req.RemoteURL)

	changesets, err := r.log(ctx, dir, nil, args...)
	if noChanges(err) {
		changesets, err = nil, nil
	}
	if err != nil {
		return scm.ChangesetPage{}, fmt.Errorf("hg %s %s: %w", command, req.RemoteURL, err)
	}
	slices.Reverse(changesets)

	page := scm.ChangesetPage{Total: len(changesets), Branch: req.Branch, Changesets: []scm.Changeset{}}
	page.Changesets = append(page.Changesets, changesets...)
	return page, nil
}

func (p *Provider) isEmpty(ctx context.Context, r *runner, dir string) (bool, error) {
	changesets, err := r.log(ctx, dir, nil, "log", "-l", "1")
	if err != nil {
		return false, scm.Internal(p.repo, "read tip", err)
	}
	return len(changesets) == 0, nil
}

func (p *Provider) revisionError(err error, id string) error {
	if isUnknownRevision(err) {
		return scm.NotFound(p.repo, "revision", id)
	}
	return err
}

// quote renders s as a revset string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// window applies offset and limit. A limit of zero means no limit.
func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
