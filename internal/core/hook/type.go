// Package hook normalizes pre- and post-receive notifications from every
// backend into a single listener protocol.
package hook

import "fmt"

// Type is the moment a hook fires relative to accepting new revisions.
type Type string

const (
	PreReceive  Type = "PRE_RECEIVE"
	PostReceive Type = "POST_RECEIVE"
)

// hg hook names installed into a central repository's hgrc.
const (
	HgPreReceive  = "pretxnchangegroup"
	HgPostReceive = "changegroup"
)

// ParseType resolves a hook type from either its canonical name or the hg
// hook name that triggers it.
func ParseType(s string) (Type, error) {
	switch s {
	case string(PreReceive), HgPreReceive:
		return PreReceive, nil
	case string(PostReceive), HgPostReceive:
		return PostReceive, nil
	}
	return "", fmt.Errorf("unknown hook type %q", s)
}

// Pending reports whether changesets are visible only inside the open
// transaction when a hook of this type fires.
func (t Type) Pending() bool { return t == PreReceive }
