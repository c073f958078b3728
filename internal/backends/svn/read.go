package svn

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/colonyops/scmd/internal/core/patch"
	"github.com/colonyops/scmd/internal/core/scm"
)

func (p *Provider) Changeset(ctx context.Context, id string) (scm.Changeset, error) {
	rev, err := p.revision(ctx, id)
	if err != nil {
		return scm.Changeset{}, err
	}
	root, err := p.ctx.URL()
	if err != nil {
		return scm.Changeset{}, err
	}
	var log xmlLog
	if err := p.xml(ctx, &log, "log", "--xml", "-r", rev, root); err != nil {
		return scm.Changeset{}, p.notFound(err, "revision", id)
	}
	if len(log.Entries) == 0 {
		return scm.Changeset{}, scm.NotFound(p.repo, "revision", id)
	}
	return log.Entries[0].changeset(), nil
}

// Changesets lists the history of the repository root or of a path, newest
// first. Revisions are numbered densely, so the ancestor and end bounds are
// applied to the revision range.
func (p *Provider) Changesets(ctx context.Context, req scm.LogRequest) (scm.ChangesetPage, error) {
	page := scm.ChangesetPage{Changesets: []scm.Changeset{}}

	head, err := p.youngest(ctx)
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	if head == 0 {
		return page, nil
	}

	start := head
	if req.StartRevision != "" {
		if start, err = p.number(req.StartRevision, head); err != nil {
			return scm.ChangesetPage{}, err
		}
	}
	lower := 1
	if req.EndRevision != "" {
		if lower, err = p.number(req.EndRevision, head); err != nil {
			return scm.ChangesetPage{}, err
		}
	}
	if req.Ancestor != "" {
		ancestor, err := p.number(req.Ancestor, head)
		if err != nil {
			return scm.ChangesetPage{}, err
		}
		lower = max(lower, ancestor+1)
	}
	if lower > start {
		return page, nil
	}

	target, err := p.target(req.Path, strconv.Itoa(start))
	if err != nil {
		return scm.ChangesetPage{}, err
	}
	var log xmlLog
	if err := p.xml(ctx, &log, "log", "--xml", "-r", strconv.Itoa(start)+":"+strconv.Itoa(lower), target); err != nil {
		return scm.ChangesetPage{}, p.notFound(err, "path", req.Path)
	}

	page.Total = len(log.Entries)
	for _, e := range window(log.Entries, req.Offset, req.Limit) {
		page.Changesets = append(page.Changesets, e.changeset())
	}
	return page, nil
}

func (p *Provider) Diff(ctx context.Context, req scm.DiffRequest, w io.Writer) error {
	out, err := p.diff(ctx, req.Revision, req.AncestorRevision, req.Path)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func (p *Provider) diff(ctx context.Context, revision, base, dir string) ([]byte, error) {
	rev, err := p.revision(ctx, revision)
	if err != nil {
		return nil, err
	}
	args := []string{"diff", "--git", "-c", rev}
	if base != "" {
		from, err := p.revision(ctx, base)
		if err != nil {
			return nil, err
		}
		args = []string{"diff", "--git", "-r", from + ":" + rev}
	}
	target, err := p.target(dir, "")
	if err != nil {
		return nil, err
	}
	out, err := p.b.svn(ctx, "", append(args, target)...)
	if err != nil {
		return nil, p.notFound(err, "path", dir)
	}
	return out, nil
}

// Modifications reads the changed paths of the revision log, which records
// copies. Between two revisions it reads the diff instead.
func (p *Provider) Modifications(ctx context.Context, req scm.ModificationsRequest) (scm.Modifications, error) {
	if req.BaseRevision != "" {
		out, err := p.diff(ctx, req.Revision, req.BaseRevision, "")
		if err != nil {
			return scm.Modifications{}, err
		}
		return patch.Modifications(req.Revision, bytes.NewReader(out))
	}

	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return scm.Modifications{}, err
	}
	root, err := p.ctx.URL()
	if err != nil {
		return scm.Modifications{}, err
	}
	var log xmlLog
	if err := p.xml(ctx, &log, "log", "--xml", "-v", "-r", rev, root); err != nil {
		return scm.Modifications{}, p.notFound(err, "revision", req.Revision)
	}
	if len(log.Entries) == 0 {
		return scm.Modifications{}, scm.NotFound(p.repo, "revision", req.Revision)
	}
	return log.Entries[0].modifications(), nil
}

func (p *Provider) Blame(ctx context.Context, req scm.BlameRequest) (scm.BlameResult, error) {
	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return scm.BlameResult{}, err
	}
	target, err := p.target(req.Path, rev)
	if err != nil {
		return scm.BlameResult{}, err
	}

	var blame xmlBlame
	if err := p.xml(ctx, &blame, "blame", "--xml", target); err != nil {
		return scm.BlameResult{}, p.notFound(err, "path", req.Path)
	}
	content, err := p.b.svn(ctx, "", "cat", target)
	if err != nil {
		return scm.BlameResult{}, p.notFound(err, "path", req.Path)
	}
	var history xmlLog
	if err := p.xml(ctx, &history, "log", "--xml", target); err != nil {
		return scm.BlameResult{}, err
	}
	messages := make(map[int]string, len(history.Entries))
	for _, e := range history.Entries {
		messages[e.Revision] = strings.TrimRight(e.Msg, "\n")
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	result := scm.BlameResult{Lines: []scm.BlameLine{}}
	if len(blame.Targets) == 0 {
		return result, nil
	}
	for i, e := range blame.Targets[0].Entries {
		line := scm.BlameLine{
			LineNumber:  e.LineNumber,
			Revision:    strconv.Itoa(e.Commit.Revision),
			Author:      scm.Person{Name: e.Commit.Author},
			When:        parseDate(e.Commit.Date),
			Description: messages[e.Commit.Revision],
		}
		if i < len(lines) {
			line.Code = strings.TrimSuffix(lines[i], "\r")
		}
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func (p *Provider) Browse(ctx context.Context, req scm.BrowseRequest) (scm.BrowserResult, error) {
	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return scm.BrowserResult{}, err
	}
	base := strings.Trim(req.Path, "/")
	target, err := p.target(base, rev)
	if err != nil {
		return scm.BrowserResult{}, err
	}

	args := []string{"list", "--xml"}
	if req.Recursive {
		args = append(args, "-R")
	}
	var lists xmlLists
	if err := p.xml(ctx, &lists, append(args, target)...); err != nil {
		return scm.BrowserResult{}, p.notFound(err, "path", req.Path)
	}
	var entries []xmlListEntry
	for _, l := range lists.Lists {
		entries = append(entries, l.Entries...)
	}
	if base != "" && len(entries) == 1 && entries[0].Kind == "file" && entries[0].Name == path.Base(base) {
		return scm.BrowserResult{}, scm.NotFound(p.repo, "path", req.Path)
	}

	return scm.BrowserResult{Revision: rev, File: buildTree(base, rev, entries)}, nil
}

// buildTree nests the entries of svn list, whose names are relative to
// base, below a root for base.
func buildTree(base, rev string, entries []xmlListEntry) *scm.FileObject {
	root := &scm.FileObject{Name: path.Base("/" + base), Path: base, Directory: true, Revision: rev}
	dirs := map[string]*scm.FileObject{"": root}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		parent, ok := dirs[parentOf(e.Name)]
		if !ok {
			parent = root
		}
		f := &scm.FileObject{
			Name:      path.Base(e.Name),
			Path:      path.Join(base, e.Name),
			Directory: e.Kind == "dir",
			Revision:  strconv.Itoa(e.Commit.Revision),
		}
		if !f.Directory {
			f.Length = e.Size
		} else {
			dirs[e.Name] = f
		}
		parent.Children = append(parent.Children, f)
	}
	return root
}

func parentOf(name string) string {
	dir := path.Dir(name)
	if dir == "." {
		return ""
	}
	return dir
}

func (p *Provider) Cat(ctx context.Context, req scm.CatRequest, w io.Writer) error {
	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return err
	}
	target, err := p.target(req.Path, rev)
	if err != nil {
		return err
	}
	out, err := p.b.svn(ctx, "", "cat", target)
	if err != nil {
		return p.notFound(err, "path", req.Path)
	}
	_, err = w.Write(out)
	return err
}

func (p *Provider) xml(ctx context.Context, dest any, args ...string) error {
	out, err := p.b.svn(ctx, "", args...)
	if err != nil {
		return err
	}
	return decode(out, dest)
}

// youngest returns the newest revision number, 0 for an empty repository.
func (p *Provider) youngest(ctx context.Context) (int, error) {
	root, err := p.ctx.URL()
	if err != nil {
		return 0, err
	}
	var info xmlInfo
	if err := p.xml(ctx, &info, "info", "--xml", root); err != nil {
		return 0, scm.Internal(p.repo, "read repository info", err)
	}
	if len(info.Entries) == 0 {
		return 0, nil
	}
	return info.Entries[0].Revision, nil
}

// revision resolves an empty revision to the youngest one and checks that
// any other is a revision number of the repository.
func (p *Provider) revision(ctx context.Context, rev string) (string, error) {
	head, err := p.youngest(ctx)
	if err != nil {
		return "", err
	}
	if rev == "" {
		return strconv.Itoa(head), nil
	}
	n, err := p.number(rev, head)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}

func (p *Provider) number(rev string, head int) (int, error) {
	if strings.EqualFold(rev, "HEAD") {
		return head, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rev, "r"))
	if err != nil || n < 0 || n > head {
		return 0, scm.NotFound(p.repo, "revision", rev)
	}
	return n, nil
}

// target returns the URL of a repository path, pegged at rev when rev is
// set.
func (p *Provider) target(repoPath, rev string) (string, error) {
	root, err := p.ctx.URL()
	if err != nil {
		return "", err
	}
	u := root
	for _, seg := range strings.Split(strings.Trim(repoPath, "/"), "/") {
		if seg != "" {
			u += "/" + url.PathEscape(seg)
		}
	}
	if rev != "" {
		u += "@" + rev
	}
	return u, nil
}

// notFound maps the svn errors for missing paths and revisions.
func (p *Provider) notFound(err error, kind, id string) error {
	msg := err.Error()
	for _, code := range []string{"E160013", "E200009", "E170000", "E195012"} {
		if strings.Contains(msg, code) {
			return scm.NotFound(p.repo, kind, id)
		}
	}
	if strings.Contains(msg, "E160006") {
		return scm.NotFound(p.repo, "revision", id)
	}
	return err
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
