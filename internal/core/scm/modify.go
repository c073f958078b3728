package scm

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ModifyWorker is the per-backend capability the modify transaction drives
// inside a working copy. Paths are slash separated and relative to the
// working directory.
type ModifyWorker interface {
	CreateFile(ctx context.Context, path string, content io.Reader, overwrite bool) error
	ModifyFile(ctx context.Context, path string, content io.Reader) error
	DeleteFile(ctx context.Context, path string) error
	MoveFile(ctx context.Context, from, to string, overwrite bool) error
	CurrentRevision(ctx context.Context) (string, error)
	WorkingDirectory() string
}

// PartialRequest is one step of a ModifyRequest.
type PartialRequest interface {
	Apply(ctx context.Context, w ModifyWorker) error
	fmt.Stringer
}

// CreateFile writes a new file.
type CreateFile struct {
	Path      string
	Content   io.Reader
	Overwrite bool
}

func (c CreateFile) Apply(ctx context.Context, w ModifyWorker) error {
	return w.CreateFile(ctx, c.Path, c.Content, c.Overwrite)
}

func (c CreateFile) String() string { return "create " + c.Path }

// ModifyFile replaces the content of an existing file.
type ModifyFile struct {
	Path    string
	Content io.Reader
}

func (m ModifyFile) Apply(ctx context.Context, w ModifyWorker) error {
	return w.ModifyFile(ctx, m.Path, m.Content)
}

func (m ModifyFile) String() string { return "modify " + m.Path }

// DeleteFile removes a file or directory.
type DeleteFile struct {
	Path string
}

func (d DeleteFile) Apply(ctx context.Context, w ModifyWorker) error {
	return w.DeleteFile(ctx, d.Path)
}

func (d DeleteFile) String() string { return "delete " + d.Path }

// MoveFile renames a file or directory.
type MoveFile struct {
	From      string
	To        string
	Overwrite bool
}

func (m MoveFile) Apply(ctx context.Context, w ModifyWorker) error {
	return w.MoveFile(ctx, m.From, m.To, m.Overwrite)
}

func (m MoveFile) String() string { return "move " + m.From + " -> " + m.To }

// ModifyRequest is an ordered batch of file operations committed as one revision.
type ModifyRequest struct {
	Branch string
	// ExpectedRevision, when set, must equal the branch head at execution time.
	ExpectedRevision string
	CommitMessage    string
	Author           Person
	Requests         []PartialRequest
}

// Validate checks the request before a working copy is allocated.
func (r ModifyRequest) Validate() error {
	if strings.TrimSpace(r.CommitMessage) == "" {
		return Invalid("commit message is required")
	}
	if strings.TrimSpace(r.Author.Name) == "" {
		return Invalid("author is required")
	}
	if len(r.Requests) == 0 {
		return Invalid("modify request contains no changes")
	}
	if r.Branch != "" {
		if err := ValidBranchName(r.Branch); err != nil {
			return err
		}
	}
	return nil
}

// CleanPath normalizes a request path and rejects paths that would escape
// the working directory or point into version control metadata.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", Invalid("path is required")
	}
	if strings.HasPrefix(p, "/") {
		return "", Invalid("path %q must be relative", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", Invalid("path %q escapes the repository", p)
	}
	first, _, _ := strings.Cut(cleaned, "/")
	switch first {
	case ".git", ".hg", ".svn":
		return "", Invalid("path %q points into repository metadata", p)
	}
	return cleaned, nil
}
