package hg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/colonyops/scmd/internal/core/patch"
	"github.com/colonyops/scmd/internal/core/scm"
)

func (p *Provider) Diff(ctx context.Context, req scm.DiffRequest, w io.Writer) error {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return err
	}
	out, err := r.run(ctx, dir, nil, diffArgs(req.Revision, req.AncestorRevision, req.Path)...)
	if err != nil {
		return p.revisionError(err, req.Revision)
	}
	_, err = w.Write(out)
	return err
}

func diffArgs(revision, base, dir string) []string {
	args := []string{"diff", "--git"}
	if base != "" {
		args = append(args, "-r", quote(base), "-r", quote(revision))
	} else {
		args = append(args, "-c", quote(revision))
	}
	if dir = strings.Trim(dir, "/"); dir != "" {
		args = append(args, "path:"+dir)
	}
	return args
}

// Modifications reads the git-style diff of a changeset. hg records copies
// and renames, which the extended headers carry.
func (p *Provider) Modifications(ctx context.Context, req scm.ModificationsRequest) (scm.Modifications, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.Modifications{}, err
	}
	out, err := r.run(ctx, dir, nil, diffArgs(req.Revision, req.BaseRevision, "")...)
	if err != nil {
		return scm.Modifications{}, p.revisionError(err, req.Revision)
	}
	return patch.Modifications(req.Revision, bytes.NewReader(out))
}

type annotateEntry struct {
	Path  string `json:"path"`
	Lines []struct {
		Date   [2]float64 `json:"date"`
		Line   string     `json:"line"`
		Node   string     `json:"node"`
		User   string     `json:"user"`
		LineNo int        `json:"lineno"`
	} `json:"lines"`
}

func (p *Provider) Blame(ctx context.Context, req scm.BlameRequest) (scm.BlameResult, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.BlameResult{}, err
	}
	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return scm.BlameResult{}, err
	}

	var entries []annotateEntry
	err = r.json(ctx, dir, nil, &entries, "annotate", "-u", "-d", "-c", "-l", "-r", quote(rev), "path:"+req.Path)
	if isMissingFile(err) || (err == nil && len(entries) == 0) {
		return scm.BlameResult{}, scm.NotFound(p.repo, "path", req.Path)
	}
	if err != nil {
		return scm.BlameResult{}, p.revisionError(err, rev)
	}

	descriptions, err := p.descriptions(ctx, r, dir, entries[0])
	if err != nil {
		return scm.BlameResult{}, err
	}

	result := scm.BlameResult{Lines: make([]scm.BlameLine, 0, len(entries[0].Lines))}
	for i, l := range entries[0].Lines {
		result.Lines = append(result.Lines, scm.BlameLine{
			LineNumber:  i + 1,
			Revision:    l.Node,
			Author:      parseUser(l.User),
			When:        parseDate(l.Date),
			Description: descriptions[l.Node],
			Code:        strings.TrimRight(l.Line, "\r\n"),
		})
	}
	return result, nil
}

// descriptions loads the message of every changeset an annotation names in
// a single log call.
func (p *Provider) descriptions(ctx context.Context, r *runner, dir string, e annotateEntry) (map[string]string, error) {
	seen := map[string]string{}
	args := []string{"log"}
	for _, l := range e.Lines {
		if _, ok := seen[l.Node]; !ok {
			seen[l.Node] = ""
			args = append(args, "-r", l.Node)
		}
	}
	if len(seen) == 0 {
		return seen, nil
	}
	changesets, err := r.log(ctx, dir, nil, args...)
	if err != nil {
		return nil, err
	}
	for _, cs := range changesets {
		seen[cs.ID] = cs.Description
	}
	return seen, nil
}

type fileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (p *Provider) Browse(ctx context.Context, req scm.BrowseRequest) (scm.BrowserResult, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return scm.BrowserResult{}, err
	}
	r, dir, err := p.hg(ctx)
	if err != nil {
		return scm.BrowserResult{}, err
	}

	base := strings.Trim(req.Path, "/")
	if req.Revision == "" {
		empty, err := p.isEmpty(ctx, r, dir)
		if err != nil {
			return scm.BrowserResult{}, err
		}
		if empty {
			return scm.BrowserResult{
				Branch: cfg.DefaultBranch,
				File:   &scm.FileObject{Name: path.Base("/" + base), Path: base, Directory: true},
			}, nil
		}
	}

	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return scm.BrowserResult{}, err
	}
	var files []fileEntry
	if err := r.json(ctx, dir, nil, &files, "files", "-v", "-r", quote(rev)); err != nil {
		return scm.BrowserResult{}, p.revisionError(err, rev)
	}

	root, ok := buildTree(base, rev, files, req.Recursive)
	if !ok {
		return scm.BrowserResult{}, scm.NotFound(p.repo, "path", req.Path)
	}
	result := scm.BrowserResult{Revision: rev, File: root}
	if req.Revision == "" {
		result.Branch = cfg.DefaultBranch
	}
	return result, nil
}

// buildTree turns the flat manifest into the directory tree below base. ok
// is false when base is not a directory of the manifest.
func buildTree(base, rev string, files []fileEntry, recursive bool) (*scm.FileObject, bool) {
	root := &scm.FileObject{Name: path.Base("/" + base), Path: base, Directory: true, Revision: rev}
	dirs := map[string]*scm.FileObject{base: root}
	found := base == ""

	var ensure func(dir string) *scm.FileObject
	ensure = func(dir string) *scm.FileObject {
		if d, ok := dirs[dir]; ok {
			return d
		}
		up := path.Dir(dir)
		if up == "." {
			up = ""
		}
		parent := ensure(up)
		d := &scm.FileObject{Name: path.Base(dir), Path: dir, Directory: true}
		parent.Children = append(parent.Children, d)
		dirs[dir] = d
		return d
	}

	for _, f := range files {
		rel := f.Path
		if base != "" {
			if !strings.HasPrefix(f.Path, base+"/") {
				continue
			}
			rel = strings.TrimPrefix(f.Path, base+"/")
		}
		found = true

		parentRel := path.Dir(rel)
		if !recursive && parentRel != "." {
			first, _, _ := strings.Cut(rel, "/")
			ensure(path.Join(base, first))
			continue
		}
		parent := root
		if parentRel != "." {
			parent = ensure(path.Join(base, parentRel))
		}
		parent.Children = append(parent.Children, &scm.FileObject{
			Name:   path.Base(f.Path),
			Path:   f.Path,
			Length: f.Size,
		})
	}
	if !found {
		return nil, false
	}
	sortTree(root)
	return root, true
}

func sortTree(f *scm.FileObject) {
	sort.Slice(f.Children, func(i, j int) bool { return f.Children[i].Name < f.Children[j].Name })
	for _, c := range f.Children {
		if c.Directory {
			sortTree(c)
		}
	}
}

func (p *Provider) Cat(ctx context.Context, req scm.CatRequest, w io.Writer) error {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return err
	}
	rev, err := p.revision(ctx, req.Revision)
	if err != nil {
		return err
	}
	out, err := r.run(ctx, dir, nil, "cat", "-r", quote(rev), "path:"+req.Path)
	if isMissingFile(err) {
		return scm.NotFound(p.repo, "path", req.Path)
	}
	if err != nil {
		return p.revisionError(err, rev)
	}
	_, err = w.Write(out)
	return err
}

func (p *Provider) Tags(ctx context.Context) ([]scm.Tag, error) {
	r, dir, err := p.hg(ctx)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Tag  string `json:"tag"`
		Node string `json:"node"`
	}
	if err := r.json(ctx, dir, nil, &entries, "tags"); err != nil {
		return nil, err
	}
	tags := []scm.Tag{}
	for _, e := range entries {
		if e.Tag == "tip" {
			continue
		}
		tags = append(tags, scm.Tag{Name: e.Tag, Revision: e.Node})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (p *Provider) Branches(ctx context.Context) ([]scm.Branch, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return nil, err
	}
	r, dir, err := p.hg(ctx)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Branch string `json:"branch"`
		Node   string `json:"node"`
	}
	if err := r.json(ctx, dir, nil, &entries, "branches"); err != nil {
		return nil, err
	}

	branches := []scm.Branch{}
	if len(entries) == 0 {
		return branches, nil
	}
	args := []string{"log"}
	for _, e := range entries {
		args = append(args, "-r", e.Node)
	}
	heads, err := r.log(ctx, dir, nil, args...)
	if err != nil {
		return nil, err
	}
	dates := map[string]scm.Changeset{}
	for _, h := range heads {
		dates[h.ID] = h
	}

	for _, e := range entries {
		branches = append(branches, scm.Branch{
			Name:          e.Branch,
			Revision:      e.Node,
			DefaultBranch: e.Branch == cfg.DefaultBranch,
			LastCommit:    dates[e.Node].Date,
		})
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// revision resolves an empty revision to the head of the default branch
// and any other revision to its node.
func (p *Provider) revision(ctx context.Context, rev string) (string, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return "", err
	}
	r, dir, err := p.hg(ctx)
	if err != nil {
		return "", err
	}
	set := quote(rev)
	if rev == "" {
		set = fmt.Sprintf("max(branch(%s))", quote(cfg.DefaultBranch))
	}
	changesets, err := r.log(ctx, dir, nil, "log", "-r", set)
	if err != nil {
		return "", p.revisionError(err, firstNonEmpty(rev, cfg.DefaultBranch))
	}
	if len(changesets) == 0 {
		return "", scm.NotFound(p.repo, "revision", firstNonEmpty(rev, cfg.DefaultBranch))
	}
	return changesets[0].ID, nil
}
