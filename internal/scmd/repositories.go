package scmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/colonyops/scmd/internal/core/activity"
	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/kv"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/registry"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/service"
	"github.com/colonyops/scmd/internal/core/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RepositoryService manages the lifecycle of repositories of record.
type RepositoryService struct {
	store    registry.Store
	services *service.Factory
	backends map[string]Backend
	activity *activity.Recorder
	settings kv.KV
	cfg      *config.Config
	log      zerolog.Logger
}

// NewRepositoryService creates a repository service.
func NewRepositoryService(
	store registry.Store,
	services *service.Factory,
	backends map[string]Backend,
	recorder *activity.Recorder,
	settings kv.KV,
	cfg *config.Config,
) *RepositoryService {
	return &RepositoryService{
		store:    store,
		services: services,
		backends: backends,
		activity: recorder,
		settings: settings,
		cfg:      cfg,
		log:      logging.Component("repositories"),
	}
}

// Store returns the repository registry.
func (s *RepositoryService) Store() registry.Store { return s.store }

// Create registers a new repository and initializes its native storage.
// The record is only saved once the backend created the repository.
func (s *RepositoryService) Create(ctx context.Context, namespace, name, typ string) (scm.Repository, error) {
	repo := scm.Repository{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Name:      name,
		Type:      typ,
	}
	if err := validate.Repository(repo, s.services.Types()); err != nil {
		return scm.Repository{}, fmt.Errorf("%w: %w", scm.ErrInvalidRequest, err)
	}

	if _, err := s.store.GetByName(ctx, namespace, name); err == nil {
		return scm.Repository{}, fmt.Errorf("%w: %s", registry.ErrDuplicate, repo.NamespaceAndName())
	} else if !errors.Is(err, registry.ErrNotFound) {
		return scm.Repository{}, err
	}

	root := s.root(repo.ID)
	if err := s.backends[typ].Create(ctx, repo); err != nil {
		_ = os.RemoveAll(root)
		return scm.Repository{}, err
	}
	if err := s.store.Save(ctx, repo); err != nil {
		_ = os.RemoveAll(root)
		return scm.Repository{}, err
	}

	s.log.Info().Str("repository", repo.NamespaceAndName()).Str("id", repo.ID).Str("type", typ).Msg("repository created")
	return repo, nil
}

// List returns every registered repository.
func (s *RepositoryService) List(ctx context.Context) ([]scm.Repository, error) {
	return s.store.List(ctx)
}

// Resolve looks a repository up by id or "namespace/name".
func (s *RepositoryService) Resolve(ctx context.Context, ref string) (scm.Repository, error) {
	repo, err := registry.Resolve(ctx, s.store, strings.TrimSpace(ref))
	if errors.Is(err, registry.ErrNotFound) {
		return scm.Repository{}, fmt.Errorf("repository %q: %w", ref, scm.ErrNotFound)
	}
	return repo, err
}

// Open resolves ref and creates its command service. The caller must Close
// the service.
func (s *RepositoryService) Open(ctx context.Context, ref string) (*service.Service, error) {
	repo, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.services.Create(repo)
}

// SetArchived marks a repository read-only or writable again.
func (s *RepositoryService) SetArchived(ctx context.Context, ref string, archived bool) (scm.Repository, error) {
	repo, err := s.Resolve(ctx, ref)
	if err != nil {
		return scm.Repository{}, err
	}
	repo.Archived = archived
	if err := s.store.Save(ctx, repo); err != nil {
		return scm.Repository{}, err
	}
	return repo, nil
}

// Delete removes the record, the native repository and everything stored
// for it.
func (s *RepositoryService) Delete(ctx context.Context, ref string) (scm.Repository, error) {
	repo, err := s.Resolve(ctx, ref)
	if err != nil {
		return scm.Repository{}, err
	}
	if err := s.store.Delete(ctx, repo.ID); err != nil {
		return scm.Repository{}, err
	}
	s.services.Caches().Evict(repo.ID)

	if err := os.RemoveAll(s.root(repo.ID)); err != nil {
		s.log.Error().Err(err).Str("id", repo.ID).Msg("failed to remove repository directory")
	}
	if err := s.activity.Forget(ctx, repo.ID); err != nil {
		s.log.Debug().Err(err).Str("id", repo.ID).Msg("failed to remove activity")
	}
	if err := s.settings.Delete(ctx, repo.Type+":"+repo.ID); err != nil {
		s.log.Debug().Err(err).Str("id", repo.ID).Msg("failed to remove repository settings")
	}

	s.log.Info().Str("repository", repo.NamespaceAndName()).Str("id", repo.ID).Msg("repository deleted")
	return repo, nil
}

// root is the directory holding the native repository and its side data.
func (s *RepositoryService) root(id string) string {
	return filepath.Dir(s.cfg.RepositoryDir(id))
}
