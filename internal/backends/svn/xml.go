package svn

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/scmd/internal/core/scm"
)

type xmlCommit struct {
	Revision int    `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
}

type xmlLog struct {
	Entries []xmlLogEntry `xml:"logentry"`
}

type xmlLogEntry struct {
	Revision int       `xml:"revision,attr"`
	Author   string    `xml:"author"`
	Date     string    `xml:"date"`
	Msg      string    `xml:"msg"`
	Paths    []xmlPath `xml:"paths>path"`
}

type xmlPath struct {
	Action       string `xml:"action,attr"`
	Kind         string `xml:"kind,attr"`
	CopyFromPath string `xml:"copyfrom-path,attr"`
	Path         string `xml:",chardata"`
}

type xmlInfo struct {
	Entries []struct {
		Revision int       `xml:"revision,attr"`
		Kind     string    `xml:"kind,attr"`
		Commit   xmlCommit `xml:"commit"`
	} `xml:"entry"`
}

type xmlLists struct {
	Lists []struct {
		Entries []xmlListEntry `xml:"entry"`
	} `xml:"list"`
}

type xmlListEntry struct {
	Kind   string    `xml:"kind,attr"`
	Name   string    `xml:"name"`
	Size   int64     `xml:"size"`
	Commit xmlCommit `xml:"commit"`
}

type xmlBlame struct {
	Targets []struct {
		Entries []struct {
			LineNumber int       `xml:"line-number,attr"`
			Commit     xmlCommit `xml:"commit"`
		} `xml:"entry"`
	} `xml:"target"`
}

func decode(out []byte, dest any) error {
	if err := xml.Unmarshal(out, dest); err != nil {
		return fmt.Errorf("decode svn xml: %w", err)
	}
	return nil
}

func (e xmlLogEntry) changeset() scm.Changeset {
	cs := scm.Changeset{
		ID:          strconv.Itoa(e.Revision),
		Author:      scm.Person{Name: e.Author},
		Date:        parseDate(e.Date),
		Description: strings.TrimRight(e.Msg, "\n"),
	}
	if e.Revision > 1 {
		cs.Parents = []string{strconv.Itoa(e.Revision - 1)}
	}
	return cs
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// modifications classifies the changed paths of a log entry. An added path
// copied from a path deleted in the same revision is a rename.
func (e xmlLogEntry) modifications() scm.Modifications {
	mods := scm.Modifications{Revision: strconv.Itoa(e.Revision)}
	deleted := map[string]bool{}
	for _, p := range e.Paths {
		if p.Action == "D" {
			deleted[p.Path] = true
		}
	}
	renamed := map[string]bool{}
	for _, p := range e.Paths {
		if p.Action == "A" && p.CopyFromPath != "" && deleted[p.CopyFromPath] {
			renamed[p.CopyFromPath] = true
		}
	}

	for _, p := range e.Paths {
		if p.Kind == "dir" && p.Action == "A" && p.CopyFromPath == "" {
			continue
		}
		name := strings.TrimPrefix(p.Path, "/")
		switch p.Action {
		case "A", "R":
			if p.CopyFromPath != "" && renamed[p.CopyFromPath] {
				mods.Renamed = append(mods.Renamed, scm.Rename{From: strings.TrimPrefix(p.CopyFromPath, "/"), To: name})
				continue
			}
			mods.Added = append(mods.Added, name)
		case "M":
			mods.Modified = append(mods.Modified, name)
		case "D":
			if !renamed[p.Path] {
				mods.Removed = append(mods.Removed, name)
			}
		}
	}
	return mods
}
