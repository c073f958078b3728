package hg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/google/uuid"
)

// Environment variables hook processes read to call back into the server.
const (
	EnvHookURL      = "SCMD_HOOK_URL"
	EnvChallenge    = "SCMD_CHALLENGE"
	EnvRepositoryID = "SCMD_REPOSITORY_ID"
	EnvToken        = "SCMD_TOKEN"
)

// installHooks writes the scmd hooks into the hgrc of the repository in dir.
func installHooks(dir, command string) error {
	if command == "" {
		return nil
	}
	var b strings.Builder
	b.WriteString("[hooks]\n")
	for _, name := range []string{hook.HgPreReceive, hook.HgPostReceive} {
		fmt.Fprintf(&b, "%s.scmd = %q hook hg --type %s\n", name, command, name)
	}
	return os.WriteFile(filepath.Join(dir, ".hg", "hgrc"), []byte(b.String()), 0o644)
}

// hookEnv returns the environment that lets hooks of the central repository
// reach the callback endpoint, and a function revoking the issued challenge.
func (p *Provider) hookEnv() ([]string, func()) {
	opts := p.b.opts
	var base string
	if opts.HookURL != nil {
		base = opts.HookURL()
	}
	if base == "" || opts.Challenges == nil {
		return nil, func() {}
	}
	challenge := opts.Challenges.Issue()
	env := []string{
		EnvHookURL + "=" + strings.TrimSuffix(base, "/") + "/" + Type + "/" + p.repo.ID,
		EnvChallenge + "=" + challenge,
		EnvRepositoryID + "=" + p.repo.ID,
		EnvToken + "=" + uuid.NewString(),
	}
	return env, func() { opts.Challenges.Revoke(challenge) }
}

// hookFailure converts an abort caused by a failing pretxnchangegroup hook
// into a rejection.
func (p *Provider) hookFailure(err error) error {
	if err != nil && strings.Contains(err.Error(), hook.HgPreReceive) {
		return &scm.HookRejectedError{Repository: p.repo, Err: err}
	}
	return err
}
