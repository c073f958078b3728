package hg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
)

type hgWorkingCopy = workingcopy.WorkingCopy[string, *Context]

// cloneWorkingCopy clones the central repository into dir without a
// checkout and updates to branch. A branch that does not exist yet in an
// empty repository is started with hg branch.
func (b *Backend) cloneWorkingCopy(ctx context.Context, c *Context, dir, branch string) (string, *Context, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return "", nil, err
	}
	central, err := c.Open()
	if err != nil {
		return "", nil, err
	}
	r := b.runner(cfg)
	if _, err := r.run(ctx, "", nil, "clone", "--noupdate", central, dir); err != nil {
		return "", nil, fmt.Errorf("clone %s: %w", c.Repository().NamespaceAndName(), err)
	}
	if branch == "" {
		branch = cfg.DefaultBranch
	}

	tip, err := r.log(ctx, dir, nil, "log", "-l", "1")
	if err != nil {
		return "", nil, err
	}
	if len(tip) == 0 {
		if branch != "default" {
			if _, err := r.run(ctx, dir, nil, "branch", branch); err != nil {
				return "", nil, err
			}
		}
		return dir, c, nil
	}
	if _, err := r.run(ctx, dir, nil, "update", "-r", quote(branch)); err != nil {
		if isUnknownRevision(err) {
			return "", nil, scm.NotFound(c.Repository(), "branch", branch)
		}
		return "", nil, fmt.Errorf("update to %s: %w", branch, err)
	}
	return dir, c, nil
}

// Execute runs a modify transaction in a fresh working copy.
func (p *Provider) Execute(ctx context.Context, req scm.ModifyRequest) (string, error) {
	cfg, err := p.ctx.Config(ctx)
	if err != nil {
		return "", err
	}
	opener := modify.OpenerFunc(func(ctx context.Context, branch string) (modify.Session, error) {
		if _, err := p.ctx.Open(); err != nil {
			return nil, err
		}
		wc, err := p.b.factory.Create(ctx, p.repo, p.ctx, branch)
		if err != nil {
			return nil, err
		}
		return &session{p: p, wc: wc, r: p.b.runner(cfg)}, nil
	})
	return p.b.opts.Engine.Execute(ctx, p.repo, opener, req)
}

// session applies modify steps through the hg command line.
type session struct {
	p  *Provider
	wc *hgWorkingCopy
	r  *runner
}

func (s *session) WorkingDirectory() string { return s.wc.Directory() }

func (s *session) hg(ctx context.Context, args ...string) ([]byte, error) {
	return s.r.run(ctx, s.wc.Directory(), nil, args...)
}

func (s *session) CurrentRevision(ctx context.Context) (string, error) {
	out, err := s.hg(ctx, "log", "-r", ".", "-T", "{node}")
	if err != nil {
		return "", err
	}
	node := strings.TrimSpace(string(out))
	if node == nullNode {
		return "", nil
	}
	return node, nil
}

func (s *session) abs(p string) string {
	return filepath.Join(s.wc.Directory(), filepath.FromSlash(p))
}

func (s *session) exists(p string) bool {
	_, err := os.Lstat(s.abs(p))
	return err == nil
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
	_, err = s.hg(ctx, "add", "path:"+p)
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
	_, err = s.hg(ctx, "remove", "-f", "path:"+p)
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
	args := []string{"mv"}
	if s.exists(to) {
		if !overwrite {
			return scm.AlreadyExists(s.p.repo, to)
		}
		args = append(args, "-f")
	}
	if err := os.MkdirAll(filepath.Dir(s.abs(to)), 0o755); err != nil {
		return err
	}
	// the source is a pattern, the destination a plain file name
	_, err = s.hg(ctx, append(args, "--", "path:"+from, to)...)
	return err
}

func (s *session) HasChanges(ctx context.Context) (bool, error) {
	out, err := s.hg(ctx, "status", "-mar")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

func (s *session) Commit(ctx context.Context, author scm.Person, message string) (string, error) {
	if _, err := s.hg(ctx, "commit", "-u", author.String(), "-m", message); err != nil {
		return "", err
	}
	return s.CurrentRevision(ctx)
}

// Publish pushes the committed changeset into the central repository. Its
// hooks call back with the environment of hookEnv.
func (s *session) Publish(ctx context.Context) error {
	env, revoke := s.p.hookEnv()
	defer revoke()

	_, err := s.r.run(ctx, s.wc.Directory(), env, "push", "--new-branch", "-r", ".", s.wc.Central().Directory())
	if noChanges(err) {
		return nil
	}
	return s.p.hookFailure(err)
}

func (s *session) Release() { s.wc.Release() }
