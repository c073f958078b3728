package lfs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store keeps objects under <root>/objects/aa/bb/<oid>.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) path(oid string) string {
	return filepath.Join(s.root, "objects", oid[0:2], oid[2:4], oid)
}

// Put stores the content of r and returns its pointer.
func (s *Store) Put(r io.Reader) (Pointer, error) {
	tmpDir := filepath.Join(s.root, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return Pointer{}, fmt.Errorf("create lfs tmp dir: %w", err)
	}

	tmp, err := os.CreateTemp(tmpDir, "obj-")
	if err != nil {
		return Pointer{}, fmt.Errorf("create lfs temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Pointer{}, fmt.Errorf("write lfs object: %w", err)
	}

	p := Pointer{OID: hex.EncodeToString(h.Sum(nil)), Size: size}
	dst := s.path(p.OID)
	if _, err := os.Stat(dst); err == nil {
		return p, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Pointer{}, fmt.Errorf("create lfs object dir: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Pointer{}, fmt.Errorf("store lfs object %s: %w", p.OID, err)
	}
	return p, nil
}

// Has reports whether the object exists.
func (s *Store) Has(oid string) bool {
	if len(oid) < 4 {
		return false
	}
	_, err := os.Stat(s.path(oid))
	return err == nil
}

// Open returns the content of the object.
func (s *Store) Open(oid string) (io.ReadCloser, error) {
	if len(oid) < 4 {
		return nil, fmt.Errorf("invalid lfs oid %q", oid)
	}
	f, err := os.Open(s.path(oid))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("lfs object %s: %w", oid, os.ErrNotExist)
	}
	return f, err
}
