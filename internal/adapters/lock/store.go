// Package lock implements the persisted lock document store: JSON on disk,
// mutated only under an exclusive advisory lock, written atomically.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

var _ ports.LockStore = (*Store)(nil)

// Store owns the lock document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a Store for the lock document at the given path.
func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Load reads and validates the lock document. A missing file yields an
// empty document.
func (s *Store) Load() (*domain.Lockfile, error) {
	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewLockfile(), nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read lock document")
	}

	var lf domain.Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, zerr.Wrap(domain.ErrInvalidLockfile, err.Error())
	}
	if lf.Packages == nil {
		lf.Packages = make(map[string]domain.LockEntry)
	}
	if err := lf.Validate(); err != nil {
		return nil, err
	}
	return &lf, nil
}

// Mutate runs fn in a read-modify-write cycle under an exclusive advisory
// lock on the lock-file path. A concurrent holder makes Mutate fail fast
// with ErrLockBusy; nothing is ever partially interleaved.
func (s *Store) Mutate(ctx context.Context, fn func(*domain.Lockfile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create lock document directory")
	}

	// The advisory lock lives beside the document because the document
	// itself is replaced by rename on every save.
	fl := flock.New(s.path + ".flock")
	locked, err := fl.TryLock()
	if err != nil {
		return zerr.Wrap(err, "failed to acquire advisory lock")
	}
	if !locked {
		return zerr.With(zerr.Wrap(domain.ErrLockBusy, "lock document is held by another process"), "path", s.path)
	}
	defer fl.Unlock() //nolint:errcheck // Best effort unlock in defer

	lf, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(lf); err != nil {
		return err
	}
	if err := lf.Validate(); err != nil {
		return err
	}
	return s.save(lf)
}

// save writes the document atomically, skipping the write entirely when
// the serialized content is unchanged.
func (s *Store) save(lf *domain.Lockfile) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to serialize lock document")
	}
	data = append(data, '\n')

	if existing, err := os.ReadFile(s.path); err == nil { //nolint:gosec // Path is cleaned and provided by trusted caller
		if xxhash.Sum64(existing) == xxhash.Sum64(data) {
			return nil
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".apm-lock-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary lock document")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to write lock document")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temporary lock document")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return zerr.Wrap(err, "failed to move lock document into place")
	}
	return nil
}
