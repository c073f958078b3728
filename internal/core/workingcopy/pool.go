// Package workingcopy allocates disposable, filesystem-isolated checkouts for
// mutating repository operations.
package workingcopy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/scmd/internal/core/logging"
)

// Pool hands out fresh temporary directories under one root.
type Pool struct {
	root string
}

// NewPool creates the pool root if it is missing.
func NewPool(root string) (*Pool, error) {
	if root == "" {
		return nil, fmt.Errorf("working copy pool root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create working copy pool %s: %w", root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve working copy pool %s: %w", root, err)
	}
	return &Pool{root: abs}, nil
}

// Root returns the absolute pool directory.
func (p *Pool) Root() string { return p.root }

// Allocate returns a new, empty directory that no other caller has seen.
func (p *Pool) Allocate() (string, error) {
	dir, err := os.MkdirTemp(p.root, "wc-")
	if err != nil {
		return "", fmt.Errorf("allocate working copy: %w", err)
	}
	return dir, nil
}

// Free removes dir recursively. Failures are logged, never returned, so that
// they cannot mask the outcome of the operation that used the directory.
func (p *Pool) Free(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log := logging.Component("workingcopy")
		log.Error().Err(err).Str("dir", dir).Msg("failed to remove working copy")
	}
}

// Entries returns the directories currently allocated from the pool.
func (p *Pool) Entries() ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(p.root, e.Name()))
		}
	}
	return dirs, nil
}
