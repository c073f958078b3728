package scm

import (
	"slices"
	"time"
)

// Person is an author or committer.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (p Person) String() string {
	if p.Email == "" {
		return p.Name
	}
	return p.Name + " <" + p.Email + ">"
}

// Changeset is a single revision.
type Changeset struct {
	ID          string    `json:"id"`
	Parents     []string  `json:"parents,omitempty"`
	Author      Person    `json:"author"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Branches    []string  `json:"branches,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// ChangesetPage is a window of a changeset listing.
// Clone returns a copy that shares no slices with c.
func (c Changeset) Clone() Changeset {
	c.Parents = slices.Clone(c.Parents)
	c.Branches = slices.Clone(c.Branches)
	c.Tags = slices.Clone(c.Tags)
	return c
}

type ChangesetPage struct {
	Total      int         `json:"total"`
	Branch     string      `json:"branch,omitempty"`
	Changesets []Changeset `json:"changesets"`
}

// Branch is a named line of development.
func (p ChangesetPage) Clone() ChangesetPage {
	if p.Changesets != nil {
		out := make([]Changeset, len(p.Changesets))
		for i, c := range p.Changesets {
			out[i] = c.Clone()
		}
		p.Changesets = out
	}
	return p
}

type Branch struct {
	Name          string    `json:"name"`
	Revision      string    `json:"revision"`
	DefaultBranch bool      `json:"defaultBranch"`
	LastCommit    time.Time `json:"lastCommitDate,omitempty"`
}

// Tag is a named revision.
type Tag struct {
	Name     string `json:"name"`
	Revision string `json:"revision"`
}

// FileObject is a node of a browse result.
type FileObject struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Directory bool          `json:"directory"`
	Length    int64         `json:"length,omitempty"`
	Revision  string        `json:"revision,omitempty"`
	Children  []*FileObject `json:"children,omitempty"`
}

// BrowserResult is the root of a browse call.
// Clone copies the whole tree below f.
func (f *FileObject) Clone() *FileObject {
	if f == nil {
		return nil
	}
	out := *f
	if f.Children != nil {
		out.Children = make([]*FileObject, len(f.Children))
		for i, child := range f.Children {
			out.Children[i] = child.Clone()
		}
	}
	return &out
}

type BrowserResult struct {
	Revision string      `json:"revision"`
	Branch   string      `json:"branch,omitempty"`
	File     *FileObject `json:"file"`
}

// BlameLine is one annotated line.
func (r BrowserResult) Clone() BrowserResult {
	r.File = r.File.Clone()
	return r
}

type BlameLine struct {
	LineNumber  int       `json:"lineNumber"`
	Revision    string    `json:"revision"`
	Author      Person    `json:"author"`
	When        time.Time `json:"when"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code"`
}

// BlameResult is the annotation of a whole file.
type BlameResult struct {
	Lines []BlameLine `json:"blameLines"`
}

func (r BlameResult) Clone() BlameResult {
	r.Lines = slices.Clone(r.Lines)
	return r
}

// Rename records a moved path.
type Rename struct {
	From string `json:"oldPath"`
	To   string `json:"newPath"`
}

// Modifications lists the paths a changeset touched.
type Modifications struct {
	Revision string   `json:"revision"`
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Renamed  []Rename `json:"renamed,omitempty"`
}

// IsEmpty reports whether no path was touched.
func (m Modifications) IsEmpty() bool {
	return len(m.Added) == 0 && len(m.Modified) == 0 && len(m.Removed) == 0 && len(m.Renamed) == 0
}

// PushResponse reports how many changesets were transferred.
type PushResponse struct {
	Changesets int `json:"changesetCount"`
}

// PullResponse reports how many changesets were transferred.
type PullResponse struct {
	Changesets int `json:"changesetCount"`
}
