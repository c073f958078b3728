package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/scmd/internal/core/registry"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/data/db"
)

// RepositoryStore implements registry.Store using SQLite.
type RepositoryStore struct {
	db *db.DB
}

var _ registry.Store = (*RepositoryStore)(nil)

// NewRepositoryStore creates a new SQLite-backed repository store.
func NewRepositoryStore(db *db.DB) *RepositoryStore {
	return &RepositoryStore{db: db}
}

const repositoryColumns = "id, namespace, name, type, archived, health_check_failed"

type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(row scanner) (scm.Repository, error) {
	var r scm.Repository
	err := row.Scan(&r.ID, &r.Namespace, &r.Name, &r.Type, &r.Archived, &r.HealthCheckFailed)
	return r, err
}

// List returns all repositories ordered by namespace and name.
func (s *RepositoryStore) List(ctx context.Context) ([]scm.Repository, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+repositoryColumns+" FROM repositories ORDER BY namespace, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []scm.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// Get returns a repository by ID. Returns registry.ErrNotFound if not found.
func (s *RepositoryStore) Get(ctx context.Context, id string) (scm.Repository, error) {
	r, err := scanRepository(s.db.Conn().QueryRowContext(ctx,
		"SELECT "+repositoryColumns+" FROM repositories WHERE id = ?", id))
	if IsNotFoundError(err) {
		return scm.Repository{}, registry.ErrNotFound
	}
	if err != nil {
		return scm.Repository{}, fmt.Errorf("failed to get repository: %w", err)
	}
	return r, nil
}

// GetByName returns a repository by namespace and name.
func (s *RepositoryStore) GetByName(ctx context.Context, namespace, name string) (scm.Repository, error) {
	r, err := scanRepository(s.db.Conn().QueryRowContext(ctx,
		"SELECT "+repositoryColumns+" FROM repositories WHERE namespace = ? AND name = ?", namespace, name))
	if IsNotFoundError(err) {
		return scm.Repository{}, registry.ErrNotFound
	}
	if err != nil {
		return scm.Repository{}, fmt.Errorf("failed to get repository: %w", err)
	}
	return r, nil
}

// Save creates or updates a repository.
func (s *RepositoryStore) Save(ctx context.Context, repo scm.Repository) error {
	now := time.Now().UnixNano()
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO repositories (id, namespace, name, type, archived, health_check_failed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			namespace = excluded.namespace,
			name = excluded.name,
			type = excluded.type,
			archived = excluded.archived,
			health_check_failed = excluded.health_check_failed,
			updated_at = excluded.updated_at`,
		repo.ID, repo.Namespace, repo.Name, repo.Type, repo.Archived, repo.HealthCheckFailed, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", registry.ErrDuplicate, repo.NamespaceAndName())
		}
		return fmt.Errorf("failed to save repository: %w", err)
	}
	return nil
}

// Delete removes a repository record.
func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

