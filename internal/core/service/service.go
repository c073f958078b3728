// Package service is the command protocol facade: it selects the backend for
// a repository, negotiates command support, validates requests, caches
// expensive reads and keeps native errors from leaking to callers.
package service

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/rs/zerolog"
)

// Factory creates Services for repositories of the registered backends.
type Factory struct {
	resolvers map[string]scm.Resolver
	caches    *Caches
	log       zerolog.Logger
}

// NewFactory creates a factory. caches may be nil.
func NewFactory(caches *Caches, resolvers ...scm.Resolver) *Factory {
	f := &Factory{
		resolvers: make(map[string]scm.Resolver, len(resolvers)),
		caches:    caches,
		log:       logging.Component("service"),
	}
	for _, r := range resolvers {
		f.resolvers[r.Type()] = r
	}
	return f
}

// Types returns the registered backend types in sorted order.
func (f *Factory) Types() []string {
	return slices.Sorted(maps.Keys(f.resolvers))
}

// Caches returns the shared read caches.
func (f *Factory) Caches() *Caches { return f.caches }

// Create opens a Service for repo. The caller must Close it.
func (f *Factory) Create(repo scm.Repository) (*Service, error) {
	resolver, ok := f.resolvers[repo.Type]
	if !ok {
		return nil, scm.Unsupported(repo, fmt.Sprintf("repository type %q", repo.Type))
	}

	provider, err := resolver.Provider(repo)
	if err != nil {
		return nil, scm.Internal(repo, "create provider", err)
	}

	return &Service{
		repo:     repo,
		provider: provider,
		caches:   f.caches,
		log:      f.log.With().Str("repository", repo.NamespaceAndName()).Logger(),
	}, nil
}

// Service exposes the commands of one repository.
type Service struct {
	repo     scm.Repository
	provider scm.Provider
	caches   *Caches
	log      zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Repository returns the repository this service operates on.
func (s *Service) Repository() scm.Repository { return s.repo }

// IsSupported reports whether the backend implements cmd.
func (s *Service) IsSupported(cmd scm.Command) bool {
	return s.provider.SupportedCommands().Contains(cmd)
}

// IsFeatureSupported reports whether the backend offers feature.
func (s *Service) IsFeatureSupported(feature scm.Feature) bool {
	return s.provider.SupportedFeatures().Contains(feature)
}

// Close releases the backend provider. Later calls return the first result.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.provider.Close()
		if s.closeErr != nil {
			s.log.Error().Err(s.closeErr).Msg("failed to close provider")
		}
	})
	return s.closeErr
}

// command resolves the command implementation through its provider
// interface after checking the declared support set.
func command[P, C any](s *Service, cmd scm.Command, get func(P) C) (C, error) {
	var zero C
	if !s.IsSupported(cmd) {
		return zero, scm.Unsupported(s.repo, cmd)
	}
	p, ok := s.provider.(P)
	if !ok {
		return zero, scm.Unsupported(s.repo, cmd)
	}
	return get(p), nil
}

// writable rejects mutating commands on archived repositories.
func (s *Service) writable(cmd scm.Command) error {
	if s.repo.Archived {
		return scm.Invalid("%s: repository %s is archived", cmd, s.repo.NamespaceAndName())
	}
	return nil
}

func (s *Service) wrap(op string, err error) error {
	return scm.Internal(s.repo, op, err)
}

func (s *Service) cacheKey(key string) string {
	return s.repo.ID + "|" + key
}

func (s *Service) evict(op scm.Command) {
	n := s.caches.Evict(s.repo.ID)
	s.log.Debug().Str("op", string(op)).Int("evicted", n).Msg("cache evicted")
}
