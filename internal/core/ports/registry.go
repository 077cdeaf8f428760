// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"github.com/agentpkg/apm/internal/core/domain"
)

// Registry is the uniform capability interface over a package registry
// backend. The local filesystem backend is the reference implementation;
// remote backends implement the same contract.
//
// All operations honor context cancellation and deadlines. A deadline hit
// surfaces to callers as domain.ErrRegistryTimeout.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type Registry interface {
	// Name returns the registry's configured name, used as the source
	// identifier in resolved packages and lock entries.
	Name() string

	// Search returns index entries whose name, description, or keywords
	// contain the query, case-insensitively. Rejecting empty queries is the
	// caller's job, not this layer's.
	Search(ctx context.Context, query string) ([]domain.IndexEntry, error)

	// GetMetadata returns the per-package record, or domain.ErrPackageNotFound
	// if the package is unknown to this backend.
	GetMetadata(ctx context.Context, name string) (*domain.PackageMetadata, error)

	// GetVersions returns all published versions newest-first, or
	// domain.ErrPackageNotFound if the package is unknown.
	GetVersions(ctx context.Context, name string) ([]domain.Version, error)

	// Download fetches the exact version's archive into destDir and returns
	// its path. The archive is digest-verified against the recorded metadata
	// checksum before the path is returned; a mismatch is
	// domain.ErrCorruptArchive. An unknown (name, version) pair is
	// domain.ErrPackageNotFound; whether to try another registry is the
	// resolver's decision.
	Download(ctx context.Context, name, version, destDir string) (string, error)

	// Publish adds the archive's (name, version) to the registry. Registries
	// are append-only: a duplicate pair is domain.ErrRegistryConflict, never
	// a silent overwrite.
	Publish(ctx context.Context, archivePath string) error
}
