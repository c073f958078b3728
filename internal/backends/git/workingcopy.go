package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/colonyops/scmd/internal/core/lfs"
	"github.com/colonyops/scmd/internal/core/modify"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/workingcopy"
	"github.com/go-git/go-billy/v5/util"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// cloneWorkingCopy checks out branch of the bare repository into dir. The
// clone of an empty repository is initialized with origin pointing back at
// the bare repository.
func cloneWorkingCopy(ctx context.Context, c *Context, dir, branch string) (*gitlib.Repository, *Context, error) {
	url := "file://" + c.Directory()
	opts := &gitlib.CloneOptions{URL: url}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	r, err := gitlib.PlainCloneContext(ctx, dir, false, opts)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		if err := os.RemoveAll(path.Join(dir, ".git")); err != nil {
			return nil, nil, err
		}
		if branch == "" {
			branch = DefaultBranch
		}
		r, err = gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
			InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
		})
		if err != nil {
			return nil, nil, err
		}
		_, err = r.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{url}})
		return r, c, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("clone %s: %w", c.Repository().NamespaceAndName(), err)
	}
	return r, c, nil
}

type gitWorkingCopy = workingcopy.WorkingCopy[*gitlib.Repository, *Context]

// checkout creates a working copy of branch. An empty branch selects the
// default branch of the repository.
func (p *Provider) checkout(ctx context.Context, branch string) (*gitWorkingCopy, string, error) {
	r, err := p.ctx.Open()
	if err != nil {
		return nil, "", err
	}
	if branch == "" {
		branch = defaultBranch(r)
	} else if !isEmpty(r) {
		if _, err := p.branchHash(r, branch); err != nil {
			return nil, "", err
		}
	}
	wc, err := p.b.factory.Create(ctx, p.repo, p.ctx, branch)
	if err != nil {
		return nil, "", err
	}
	return wc, branch, nil
}

// publish pushes branch heads of a working copy into the staging namespace
// of the bare repository and receives them.
func (p *Provider) publish(ctx context.Context, working *gitlib.Repository, branches []string, force bool) (int, error) {
	st := newStaging()
	specs := make([]config.RefSpec, 0, len(branches))
	for _, b := range branches {
		specs = append(specs, config.RefSpec(st.refSpec(plumbing.NewBranchReferenceName(b), b)))
	}

	err := working.PushContext(ctx, &gitlib.PushOptions{RemoteName: "origin", RefSpecs: specs})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return 0, fmt.Errorf("push to staging: %w", err)
	}

	p.ctx.Invalidate()
	r, err := p.ctx.Open()
	if err != nil {
		return 0, err
	}
	return p.receive(ctx, r, st, branches, force)
}

// Execute runs a modify transaction in a fresh working copy.
func (p *Provider) Execute(ctx context.Context, req scm.ModifyRequest) (string, error) {
	opener := modify.OpenerFunc(func(ctx context.Context, branch string) (modify.Session, error) {
		wc, branch, err := p.checkout(ctx, branch)
		if err != nil {
			return nil, err
		}
		wt, err := wc.Working().Worktree()
		if err != nil {
			wc.Release()
			return nil, err
		}
		return &session{p: p, wc: wc, wt: wt, branch: branch}, nil
	})
	return p.b.opts.Engine.Execute(ctx, p.repo, opener, req)
}

// session applies modify steps to a go-git worktree.
type session struct {
	p      *Provider
	wc     *gitWorkingCopy
	wt     *gitlib.Worktree
	branch string
}

func (s *session) WorkingDirectory() string { return s.wc.Directory() }

func (s *session) CurrentRevision(context.Context) (string, error) {
	head, err := s.wc.Working().Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

func (s *session) exists(p string) bool {
	_, err := s.wt.Filesystem.Lstat(p)
	return err == nil
}

func (s *session) CreateFile(_ context.Context, p string, content io.Reader, overwrite bool) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	if s.exists(p) && !overwrite {
		return scm.AlreadyExists(s.p.repo, p)
	}
	return s.write(p, content)
}

func (s *session) ModifyFile(_ context.Context, p string, content io.Reader) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	if !s.exists(p) {
		return scm.NotFound(s.p.repo, "path", p)
	}
	return s.write(p, content)
}

func (s *session) DeleteFile(_ context.Context, p string) error {
	p, err := scm.CleanPath(p)
	if err != nil {
		return err
	}
	if !s.exists(p) {
		return scm.NotFound(s.p.repo, "path", p)
	}
	return util.RemoveAll(s.wt.Filesystem, p)
}

func (s *session) MoveFile(_ context.Context, from, to string, overwrite bool) error {
	from, err := scm.CleanPath(from)
	if err != nil {
		return err
	}
	to, err = scm.CleanPath(to)
	if err != nil {
		return err
	}
	if !s.exists(from) {
		return scm.NotFound(s.p.repo, "path", from)
	}
	if s.exists(to) {
		if !overwrite {
			return scm.AlreadyExists(s.p.repo, to)
		}
		if err := util.RemoveAll(s.wt.Filesystem, to); err != nil {
			return err
		}
	}
	if err := s.wt.Filesystem.MkdirAll(path.Dir(to), 0o755); err != nil {
		return err
	}
	return s.wt.Filesystem.Rename(from, to)
}

// write stores content at p. Paths tracked as large files by .gitattributes
// pass through the clean filter registered for this working copy.
func (s *session) write(p string, content io.Reader) error {
	attrs, err := util.ReadFile(s.wt.Filesystem, ".gitattributes")
	if err != nil || s.p.b.opts.Filters == nil {
		return s.writeRaw(p, content)
	}
	filter := lfs.CleanFilter{Store: s.p.lfs, Attributes: lfs.ParseAttributes(attrs)}
	if filter.Attributes.Empty() {
		return s.writeRaw(p, content)
	}

	key := s.WorkingDirectory()
	filters := s.p.b.opts.Filters
	return filters.With(key, filter, func() error {
		f, _ := filters.Lookup(key)
		cleaned, err := f.Clean(p, content)
		if err != nil {
			return err
		}
		return s.writeRaw(p, cleaned)
	})
}

func (s *session) writeRaw(p string, content io.Reader) error {
	if err := s.wt.Filesystem.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := s.wt.Filesystem.Create(p)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *session) HasChanges(context.Context) (bool, error) {
	if err := s.wt.AddWithOptions(&gitlib.AddOptions{All: true}); err != nil {
		return false, err
	}
	status, err := s.wt.Status()
	if err != nil {
		return false, err
	}
	for _, fs := range status {
		if fs.Staging != gitlib.Unmodified && fs.Staging != gitlib.Untracked {
			return true, nil
		}
	}
	return false, nil
}

func (s *session) Commit(_ context.Context, author scm.Person, message string) (string, error) {
	sig := signature(author)
	h, err := s.wt.Commit(message, &gitlib.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

func (s *session) Publish(ctx context.Context) error {
	_, err := s.p.publish(ctx, s.wc.Working(), []string{s.branch}, false)
	return err
}

func (s *session) Release() { s.wc.Release() }

func signature(p scm.Person) *object.Signature {
	email := p.Email
	if email == "" {
		email = "noreply@scmd.local"
	}
	return &object.Signature{Name: p.Name, Email: email, When: time.Now()}
}
