// Package modify runs file modification transactions inside a working copy.
package modify

import (
	"context"
	"fmt"

	"github.com/colonyops/scmd/internal/core/eventbus"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/rs/zerolog"
)

// Session is a working copy opened for one transaction.
type Session interface {
	scm.ModifyWorker
	// HasChanges reports whether anything is staged for commit.
	HasChanges(ctx context.Context) (bool, error)
	// Commit records the staged changes and returns the new revision.
	Commit(ctx context.Context, author scm.Person, message string) (string, error)
	// Publish moves the commit into the repository of record.
	Publish(ctx context.Context) error
	// Release discards the working copy. It is called exactly once.
	Release()
}

// Opener creates a Session on branch. An empty branch selects the default.
type Opener interface {
	Open(ctx context.Context, branch string) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, branch string) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, branch string) (Session, error) {
	return f(ctx, branch)
}

// Engine executes ModifyRequests.
type Engine struct {
	bus *eventbus.EventBus
	log zerolog.Logger
}

// NewEngine creates an engine. bus may be nil.
func NewEngine(bus *eventbus.EventBus) *Engine {
	return &Engine{bus: bus, log: logging.Component("modify")}
}

// Execute applies req as a single revision and returns its id.
func (e *Engine) Execute(ctx context.Context, repo scm.Repository, opener Opener, req scm.ModifyRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	ctx = logging.WithRepositoryID(ctx, repo.ID)

	session, err := opener.Open(ctx, req.Branch)
	if err != nil {
		return "", scm.Internal(repo, "open working copy", err)
	}
	defer session.Release()

	if req.ExpectedRevision != "" {
		head, err := session.CurrentRevision(ctx)
		if err != nil {
			return "", scm.Internal(repo, "read branch head", err)
		}
		if head != req.ExpectedRevision {
			return "", &scm.ConcurrentModificationError{
				Repository: repo,
				Branch:     req.Branch,
				Expected:   req.ExpectedRevision,
				Actual:     head,
			}
		}
	}

	for i, partial := range req.Requests {
		e.log.Debug().Ctx(ctx).Int("step", i).Str("op", partial.String()).Msg("applying")
		if err := partial.Apply(ctx, session); err != nil {
			return "", scm.Internal(repo, fmt.Sprintf("modify (%s)", partial), err)
		}
	}

	changed, err := session.HasChanges(ctx)
	if err != nil {
		return "", scm.Internal(repo, "status", err)
	}
	if !changed {
		return "", scm.NoChanges(repo)
	}

	revision, err := session.Commit(ctx, req.Author, req.CommitMessage)
	if err != nil {
		return "", scm.Internal(repo, "commit", err)
	}

	if err := session.Publish(ctx); err != nil {
		return "", scm.Internal(repo, "publish", err)
	}

	e.log.Info().Ctx(ctx).
		Str("branch", req.Branch).
		Str("revision", revision).
		Int("changes", len(req.Requests)).
		Msg("modify committed")

	if e.bus != nil {
		e.bus.PublishRepositoryModified(eventbus.RepositoryModifiedPayload{
			Repository: repo,
			Branch:     req.Branch,
			Revision:   revision,
			Operation:  string(scm.CommandModify),
		})
	}

	return revision, nil
}
