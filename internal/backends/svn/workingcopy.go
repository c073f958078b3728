package svn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
)

type svnWorkingCopy = workingcopy.WorkingCopy[string, *Context]

// checkout checks out the repository root into dir. svn repositories use a
// single line of history, so branch is ignored.
func (b *Backend) checkout(ctx context.Context, c *Context, dir, _ string) (string, *Context, error) {
	root, err := c.URL()
	if err != nil {
		return "", nil, err
	}
	if _, err := b.svn(ctx, "", "checkout", "-q", root, dir); err != nil {
		return "", nil, fmt.Errorf("checkout %s: %w", c.Repository().NamespaceAndName(), err)
	}
	return dir, c, nil
}

// Execute runs a modify transaction in a fresh checkout. The commit is the
// publish step, so Publish only notifies post-receive listeners.
func (p *Provider) Execute(ctx context.Context, req scm.ModifyRequest) (string, error) {
	opener := modify.OpenerFunc(func(ctx context.Context, _ string) (modify.Session, error) {
		if _, err := p.ctx.URL(); err != nil {
			return nil, err
		}
		wc, err := p.b.factory.Create(ctx, p.repo, p.ctx, "")
		if err != nil {
			return nil, err
		}
		return &session{p: p, wc: wc}, nil
	})
	return p.b.opts.Engine.Execute(ctx, p.repo, opener, req)
}

type session struct {
	p         *Provider
	wc        *svnWorkingCopy
	committed scm.Changeset
}

func (s *session) WorkingDirectory() string { return s.wc.Directory() }

func (s *session) svn(ctx context.Context, args ...string) ([]byte, error) {
	return s.p.b.svn(ctx, s.wc.Directory(), args...)
}

// CurrentRevision reports the revision of the checkout. Revision 0 is the
// empty repository and reads as no revision.
func (s *session) CurrentRevision(ctx context.Context) (string, error) {
	var info xmlInfo
	out, err := s.svn(ctx, "info", "--xml", ".")
	if err != nil {
		return "", err
	}
	if err := decode(out, &info); err != nil {
		return "", err
	}
	if len(info.Entries) == 0 || info.Entries[0].Revision == 0 {
		return "", nil
	}
	return strconv.Itoa(info.Entries[0].Revision), nil
}

func (s *session) abs(p string) string {
	return filepath.Join(s.wc.Directory(), filepath.FromSlash(p))
}

func (s *session) exists(p string) bool {
	_, err := os.Lstat(s.abs(p))
	return err == nil
}

// target protects a working-copy path from peg revision parsing: svn reads
// the last '@' of an argument as a peg revision unless a trailing '@' ends it.
func target(p string) string {
	if strings.Contains(p, "@") {
		return p + "@"
	}
	return p
}

func (s *session) CreateFile(ctx context.Context, p string, content io.Reader, overwrite bool) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	existed := s.exists(p)
	if existed && !overwrite {
		return scm.AlreadyExists(s.p.repo, p)
	}
	if err := s.write(p, content); err != nil {
		return err
	}
	if existed {
		return nil
	}
	_, err = s.svn(ctx, "add", "-q", "--parents", target(p))
	return err
}

func (s *session) ModifyFile(_ context.Context, p string, content io.Reader) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(s.abs(p))
	if err != nil || info.IsDir() {
		return scm.NotFound(s.p.repo, "path", p)
	}
	return s.write(p, content)
}

func (s *session) write(p string, content io.Reader) error {
	target := s.abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	return errors.Join(err, f.Close())
}

func (s *session) DeleteFile(ctx context.Context, p string) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	if !s.exists(p) {
		return scm.NotFound(s.p.repo, "path", p)
	}
	_, err = s.svn(ctx, "rm", "-q", "--force", target(p))
	return err
}

func (s *session) MoveFile(ctx context.Context, from, to string, overwrite bool) error {
	from, err := scm.CleanPath(from)
	if err != nil {
		return err
	}
	if to, err = scm.CleanPath(to); err != nil {
		return err
	}
	if !s.exists(from) {
		return scm.NotFound(s.p.repo, "path", from)
	}
	if s.exists(to) {
		if !overwrite {
			return scm.AlreadyExists(s.p.repo, to)
		}
		if _, err := s.svn(ctx, "rm", "-q", "--force", target(to)); err != nil {
			return err
		}
	}
	_, err = s.svn(ctx, "mv", "-q", "--parents", target(from), target(to))
	return err
}

func (s *session) HasChanges(ctx context.Context) (bool, error) {
	out, err := s.svn(ctx, "status", "-q")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

var committedRevision = regexp.MustCompile(`Committed revision (\d+)\.`)

func (s *session) Commit(ctx context.Context, author scm.Person, message string) (string, error) {
	out, err := s.svn(ctx, "commit", "--username", author.Name, "-m", message)
	if err != nil {
		return "", err
	}
	m := committedRevision.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("svn commit did not report a revision: %q", strings.TrimSpace(string(out)))
	}
	s.committed = scm.Changeset{ID: string(m[1]), Author: author, Description: message}
	return s.committed.ID, nil
}

func (s *session) Publish(ctx context.Context) error {
	hooks := s.p.b.opts.Hooks
	if hooks == nil {
		return nil
	}
	cs, err := s.p.Changeset(ctx, s.committed.ID)
	if err != nil {
		cs = s.committed
	}
	res := hooks.Fire(ctx, hook.NewContext(s.p.repo, hook.PostReceive, hook.StaticChangesets(cs)))
	if res.Rejected() {
		s.p.b.log.Warn().Ctx(ctx).Err(res.Err).Str("revision", cs.ID).Msg("post-receive listener failed")
	}
	return nil
}

func (s *session) Release() { s.wc.Release() }
