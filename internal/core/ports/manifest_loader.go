package ports

import "github.com/agentpkg/apm/internal/core/domain"

// ManifestLoader defines the interface for loading a package manifest.
//
//go:generate go run go.uber.org/mock/mockgen -source=manifest_loader.go -destination=mocks/mock_manifest_loader.go -package=mocks
type ManifestLoader interface {
	// Load reads and validates the manifest in the given directory.
	Load(dir string) (*domain.Manifest, error)
}
