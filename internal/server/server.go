// Package server exposes the hook callback endpoint external hook processes
// call back into.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/registry"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SourceFactory builds the changeset source for a hook fired by one backend.
// node is the first incoming revision reported by the hook process.
type SourceFactory interface {
	Source(repo scm.Repository, node string, pending bool) (hook.ChangesetSource, error)
}

// SourceFactoryFunc adapts a function to SourceFactory.
type SourceFactoryFunc func(repo scm.Repository, node string, pending bool) (hook.ChangesetSource, error)

func (f SourceFactoryFunc) Source(repo scm.Repository, node string, pending bool) (hook.ChangesetSource, error) {
	return f(repo, node, pending)
}

// Server routes hook callbacks to the dispatcher.
type Server struct {
	store      registry.Store
	dispatcher *hook.Dispatcher
	challenges *hook.Challenges
	sources    map[string]SourceFactory
	router     *gin.Engine
	log        zerolog.Logger
}

// New creates a server. sources maps a backend type to its changeset source
// factory; backends without an entry have no callback endpoint.
func New(store registry.Store, dispatcher *hook.Dispatcher, challenges *hook.Challenges, sources map[string]SourceFactory) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		challenges: challenges,
		sources:    sources,
		log:        logging.Component("server"),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())
	router.GET("/hook/:backend/:repositoryId", s.ping)
	router.POST("/hook/:backend/:repositoryId", s.receive)
	s.router = router

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. The listener is closed
// on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("hook endpoint listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
