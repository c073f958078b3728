package git

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/colonyops/scmd/internal/core/lfs"
	"github.com/colonyops/scmd/internal/core/scm"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func (p *Provider) Blame(_ context.Context, req scm.BlameRequest) (scm.BlameResult, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.BlameResult{}, err
	}
	c, err := p.resolve(r, req.Revision)
	if err != nil {
		return scm.BlameResult{}, err
	}

	res, err := gitlib.Blame(c, strings.Trim(req.Path, "/"))
	if errors.Is(err, object.ErrFileNotFound) {
		return scm.BlameResult{}, scm.NotFound(p.repo, "path", req.Path)
	}
	if err != nil {
		return scm.BlameResult{}, err
	}

	descriptions := map[string]string{}
	out := scm.BlameResult{Lines: make([]scm.BlameLine, 0, len(res.Lines))}
	for i, line := range res.Lines {
		id := line.Hash.String()
		desc, ok := descriptions[id]
		if !ok {
			if lc, err := r.CommitObject(line.Hash); err == nil {
				desc = strings.TrimRight(lc.Message, "\n")
			}
			descriptions[id] = desc
		}
		out.Lines = append(out.Lines, scm.BlameLine{
			LineNumber:  i + 1,
			Revision:    id,
			Author:      scm.Person{Name: line.AuthorName, Email: line.Author},
			When:        line.Date,
			Description: desc,
			Code:        line.Text,
		})
	}
	return out, nil
}

func (p *Provider) Browse(ctx context.Context, req scm.BrowseRequest) (scm.BrowserResult, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return scm.BrowserResult{}, err
	}

	dir := strings.Trim(req.Path, "/")
	if isEmpty(r) && req.Revision == "" {
		return scm.BrowserResult{
			Branch: defaultBranch(r),
			File:   &scm.FileObject{Name: path.Base("/" + dir), Path: dir, Directory: true},
		}, nil
	}

	c, err := p.resolve(r, req.Revision)
	if err != nil {
		return scm.BrowserResult{}, err
	}
	tree, err := c.Tree()
	if err != nil {
		return scm.BrowserResult{}, err
	}
	if dir != "" {
		tree, err = tree.Tree(dir)
		if errors.Is(err, object.ErrDirectoryNotFound) {
			return scm.BrowserResult{}, scm.NotFound(p.repo, "path", req.Path)
		}
		if err != nil {
			return scm.BrowserResult{}, err
		}
	}

	root := &scm.FileObject{Name: path.Base("/" + dir), Path: dir, Directory: true, Revision: c.Hash.String()}
	if err := walkTree(ctx, tree, root, req.Recursive); err != nil {
		return scm.BrowserResult{}, err
	}

	result := scm.BrowserResult{Revision: c.Hash.String(), File: root}
	if req.Revision == "" {
		result.Branch = defaultBranch(r)
	}
	return result, nil
}

func walkTree(ctx context.Context, tree *object.Tree, parent *scm.FileObject, recursive bool) error {
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := &scm.FileObject{
			Name:      entry.Name,
			Path:      path.Join(parent.Path, entry.Name),
			Directory: entry.Mode == filemode.Dir,
		}
		if child.Directory {
			if recursive {
				sub, err := tree.Tree(entry.Name)
				if err != nil {
					return err
				}
				if err := walkTree(ctx, sub, child, true); err != nil {
					return err
				}
			}
		} else if f, err := tree.TreeEntryFile(&entry); err == nil {
			child.Length = f.Size
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}

// Cat writes the content of a file. Large file pointers are replaced by the
// stored object when it is available.
func (p *Provider) Cat(_ context.Context, req scm.CatRequest, w io.Writer) error {
	r, err := p.ctx.Open()
	if err != nil {
		return err
	}
	c, err := p.resolve(r, req.Revision)
	if err != nil {
		return err
	}

	f, err := c.File(strings.Trim(req.Path, "/"))
	if errors.Is(err, object.ErrFileNotFound) {
		return scm.NotFound(p.repo, "path", req.Path)
	}
	if err != nil {
		return err
	}

	if f.Size <= maxPointerSize {
		contents, err := f.Contents()
		if err != nil {
			return err
		}
		if ptr, ok := lfs.DecodePointer([]byte(contents)); ok && p.lfs.Has(ptr.OID) {
			obj, err := p.lfs.Open(ptr.OID)
			if err != nil {
				return err
			}
			defer obj.Close()
			_, err = io.Copy(w, obj)
			return err
		}
		_, err = io.Copy(w, bytes.NewReader([]byte(contents)))
		return err
	}

	rc, err := f.Reader()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

const maxPointerSize = 1024
