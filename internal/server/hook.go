package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/registry"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/gin-gonic/gin"
)

// ping answers GET /hook/:backend/:repositoryId?ping=true without touching
// challenge or hook state.
func (s *Server) ping(c *gin.Context) {
	if c.Query("ping") != "true" {
		c.String(http.StatusBadRequest, "unsupported request\n")
		return
	}

	if _, err := s.lookup(c.Request.Context(), c.Param("backend"), c.Param("repositoryId")); err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// receive handles POST /hook/:backend/:repositoryId?challenge=&node=&token=&type=.
func (s *Server) receive(c *gin.Context) {
	ctx := c.Request.Context()
	backend := c.Param("backend")
	id := c.Param("repositoryId")

	if !s.challenges.Accept(c.Query("challenge")) {
		s.log.Warn().Str("backend", backend).Str("repository", id).Msg("hook callback with invalid challenge")
		c.String(http.StatusBadRequest, "invalid hook challenge\n")
		return
	}

	typ, err := hook.ParseType(c.Query("type"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error()+"\n")
		return
	}

	token := c.Query("token")
	ctx = logging.WithRepositoryID(ctx, id)
	if token != "" {
		ctx = logging.WithHookToken(ctx, token)
	}

	inv := hook.NewInvocation()

	repo, err := s.lookup(ctx, backend, id)
	if err != nil {
		_ = inv.Transition(hook.StateNotFound)
		s.log.Warn().Ctx(ctx).Err(err).Msg("hook callback for unknown repository")
		c.String(http.StatusNotFound, "repository not found\n")
		return
	}

	source, err := s.sources[backend].Source(repo, c.Query("node"), typ.Pending())
	if err != nil {
		s.log.Error().Ctx(ctx).Err(err).Msg("failed to build hook context")
		c.String(http.StatusInternalServerError, err.Error()+"\n")
		return
	}

	hc := hook.NewContext(repo, typ, source, hook.WithToken(token))
	if err := inv.Transition(hook.StateContextBuilt); err != nil {
		c.String(http.StatusInternalServerError, err.Error()+"\n")
		return
	}

	res := s.dispatcher.Dispatch(ctx, inv, hc)
	switch res.State {
	case hook.StateSuccess:
		c.Status(http.StatusNoContent)
	case hook.StateRejected:
		c.String(http.StatusConflict, strings.Join(res.Lines(), "\n")+"\n")
	default:
		c.String(http.StatusInternalServerError, strings.Join(res.Lines(), "\n")+"\n")
	}
}

// lookup resolves a repository and checks it belongs to backend.
func (s *Server) lookup(ctx context.Context, backend, id string) (scm.Repository, error) {
	if _, ok := s.sources[backend]; !ok {
		return scm.Repository{}, registry.ErrNotFound
	}
	repo, err := s.store.Get(ctx, id)
	if err != nil {
		return scm.Repository{}, err
	}
	if repo.Type != backend {
		return scm.Repository{}, errors.Join(registry.ErrNotFound, errors.New("backend mismatch"))
	}
	return repo, nil
}
