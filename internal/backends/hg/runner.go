package hg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/pkg/executil"
)

// nullNode is the id hg reports for the parent of a root changeset.
const nullNode = "0000000000000000000000000000000000000000"

type runner struct {
	path     string
	exec     executil.Executor
	encoding string
}

func (r *runner) env(extra []string) []string {
	env := []string{"HGPLAIN=1"}
	if r.encoding != "" {
		env = append(env, "HGENCODING="+r.encoding)
	}
	return append(env, extra...)
}

func (r *runner) run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error) {
	return r.exec.Output(ctx, executil.Command{Dir: dir, Env: r.env(env), Name: r.path, Args: args})
}

// json runs a command with -Tjson and decodes its output into dest.
func (r *runner) json(ctx context.Context, dir string, env []string, dest any, args ...string) error {
	out, err := r.run(ctx, dir, env, append(args, "-Tjson")...)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, dest); err != nil {
		return fmt.Errorf("decode hg %s output: %w", args[0], err)
	}
	return nil
}

func (r *runner) log(ctx context.Context, dir string, env []string, args ...string) ([]scm.Changeset, error) {
	var entries []logEntry
	if err := r.json(ctx, dir, env, &entries, args...); err != nil {
		return nil, err
	}
	out := make([]scm.Changeset, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.changeset())
	}
	return out, nil
}

// logEntry is one element of `hg log -Tjson`.
type logEntry struct {
	Rev       int        `json:"rev"`
	Node      string     `json:"node"`
	Branch    string     `json:"branch"`
	User      string     `json:"user"`
	Date      [2]float64 `json:"date"`
	Desc      string     `json:"desc"`
	Bookmarks []string   `json:"bookmarks"`
	Tags      []string   `json:"tags"`
	Parents   []string   `json:"parents"`
}

func (e logEntry) changeset() scm.Changeset {
	cs := scm.Changeset{
		ID:          e.Node,
		Author:      parseUser(e.User),
		Date:        parseDate(e.Date),
		Description: strings.TrimRight(e.Desc, "\n"),
		Branches:    []string{e.Branch},
	}
	for _, p := range e.Parents {
		if p != nullNode {
			cs.Parents = append(cs.Parents, p)
		}
	}
	for _, t := range e.Tags {
		if t != "tip" {
			cs.Tags = append(cs.Tags, t)
		}
	}
	return cs
}

// parseUser splits "Name <email>".
func parseUser(user string) scm.Person {
	name, rest, ok := strings.Cut(user, "<")
	if !ok {
		return scm.Person{Name: strings.TrimSpace(user)}
	}
	return scm.Person{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ">")),
	}
}

// parseDate converts hg's [unixtime, offset] pair. The offset is in seconds
// west of UTC.
func parseDate(d [2]float64) time.Time {
	offset := int(d[1])
	return time.Unix(int64(d[0]), 0).In(time.FixedZone("", -offset))
}

// exitCode returns the exit status of a failed process, or -1.
func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

// noChanges reports the exit status hg uses for incoming, outgoing and push
// when there is nothing to transfer.
func noChanges(err error) bool {
	return exitCode(err) == 1
}

func isUnknownRevision(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unknown revision") || strings.Contains(msg, "filtered revision")
}

func isMissingFile(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such file in rev") || strings.Contains(msg, "not found in manifest")
}
