package scm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrowserResult_Clone(t *testing.T) {
	orig := BrowserResult{
		Revision: "abc",
		File: &FileObject{Directory: true, Children: []*FileObject{
			{Name: "docs", Path: "docs", Directory: true, Children: []*FileObject{{Name: "a.md", Path: "docs/a.md"}}},
		}},
	}

	c := orig.Clone()
	c.File.Children[0].Name = "changed"
	c.File.Children[0].Children[0].Path = "changed"
	c.File.Children = append(c.File.Children, &FileObject{Name: "extra"})

	assert.Equal(t, "docs", orig.File.Children[0].Name)
	assert.Equal(t, "docs/a.md", orig.File.Children[0].Children[0].Path)
	assert.Len(t, orig.File.Children, 1)
	assert.Nil(t, BrowserResult{}.Clone().File)
}

func TestChangesetPage_Clone(t *testing.T) {
	orig := ChangesetPage{Total: 1, Changesets: []Changeset{{ID: "abc", Parents: []string{"p1"}, Tags: []string{"v1"}}}}

	c := orig.Clone()
	c.Changesets[0].ID = "changed"
	c.Changesets[0].Parents[0] = "changed"
	c.Changesets[0].Tags[0] = "changed"

	assert.Equal(t, "abc", orig.Changesets[0].ID)
	assert.Equal(t, "p1", orig.Changesets[0].Parents[0])
	assert.Equal(t, "v1", orig.Changesets[0].Tags[0])
	assert.Nil(t, ChangesetPage{}.Clone().Changesets)
}
