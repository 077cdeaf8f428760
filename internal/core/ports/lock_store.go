package ports

import (
	"context"

	"github.com/agentpkg/apm/internal/core/domain"
)

// LockStore owns the persisted lock document for a project root.
//
//go:generate go run go.uber.org/mock/mockgen -source=lock_store.go -destination=mocks/mock_lock_store.go -package=mocks
type LockStore interface {
	// Load reads and validates the lock document. A missing document yields
	// an empty one, not an error.
	Load() (*domain.Lockfile, error)

	// Mutate runs a read-modify-write cycle under an exclusive advisory
	// lock. If another process holds the lock it fails fast with
	// domain.ErrLockBusy. The document is written atomically; a crash
	// mid-write never leaves a half-written file.
	Mutate(ctx context.Context, fn func(*domain.Lockfile) error) error
}
