package scm

import (
	"fmt"
	"strings"
)

// LogRequest selects changesets for the LOG command.
type LogRequest struct {
	Branch        string
	Path          string
	StartRevision string
	EndRevision   string
	// Ancestor excludes changesets reachable from this revision.
	Ancestor string
	Offset   int
	Limit    int
}

// Validate checks paging bounds.
func (r LogRequest) Validate() error {
	if r.Offset < 0 {
		return Invalid("log offset must not be negative")
	}
	if r.Limit < 0 {
		return Invalid("log limit must not be negative")
	}
	return nil
}

// CacheKey returns a stable key for the request's parameters.
func (r LogRequest) CacheKey() string {
	return fmt.Sprintf("log|%s|%s|%s|%s|%s|%d|%d",
		r.Branch, r.Path, r.StartRevision, r.EndRevision, r.Ancestor, r.Offset, r.Limit)
}

// DiffRequest selects the DIFF of a revision, optionally against an ancestor.
type DiffRequest struct {
	Revision         string
	AncestorRevision string
	Path             string
}

// Validate requires a revision.
func (r DiffRequest) Validate() error {
	if strings.TrimSpace(r.Revision) == "" {
		return Invalid("diff requires a revision")
	}
	return nil
}

// BlameRequest selects the file to annotate.
type BlameRequest struct {
	Revision string
	Path     string
}

// Validate requires a path.
func (r BlameRequest) Validate() error {
	return validPath("blame", r.Path)
}

// CacheKey returns a stable key for the request's parameters.
func (r BlameRequest) CacheKey() string {
	return "blame|" + r.Revision + "|" + r.Path
}

// BrowseRequest selects a directory listing.
type BrowseRequest struct {
	Revision  string
	Path      string
	Recursive bool
}

// CacheKey returns a stable key for the request's parameters.
func (r BrowseRequest) CacheKey() string {
	return fmt.Sprintf("browse|%s|%s|%t", r.Revision, r.Path, r.Recursive)
}

// CatRequest selects a file's content.
type CatRequest struct {
	Revision string
	Path     string
}

// Validate requires a path.
func (r CatRequest) Validate() error {
	return validPath("cat", r.Path)
}

// BranchRequest creates a branch from a parent.
type BranchRequest struct {
	Name   string
	Parent string
}

// Validate checks the branch name.
func (r BranchRequest) Validate() error {
	return ValidBranchName(r.Name)
}

// RemoteRequest addresses another repository for PUSH, PULL, INCOMING and OUTGOING.
type RemoteRequest struct {
	RemoteURL string
	Branch    string
	Force     bool
}

// Validate requires a remote.
func (r RemoteRequest) Validate() error {
	if strings.TrimSpace(r.RemoteURL) == "" {
		return Invalid("remote url is required")
	}
	return nil
}

// ValidBranchName rejects names no backend can store.
func ValidBranchName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return Invalid("branch name is required")
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return Invalid("branch name %q is malformed", name)
	case strings.Contains(name, ".."), strings.ContainsAny(name, " ~^:?*[\\"):
		return Invalid("branch name %q contains illegal characters", name)
	}
	return nil
}

func validPath(op, path string) error {
	if strings.TrimSpace(path) == "" {
		return Invalid("%s requires a path", op)
	}
	return nil
}
