// Package manifest provides the YAML manifest loader.
package manifest

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

var _ ports.ManifestLoader = (*FileLoader)(nil)

// FileLoader implements ports.ManifestLoader using a YAML file.
type FileLoader struct {
	Filename string
}

// NewFileLoader creates a loader for the default manifest filename.
func NewFileLoader() *FileLoader {
	return &FileLoader{Filename: domain.ManifestFilename}
}

// Load reads and validates the manifest in the given directory.
func (l *FileLoader) Load(dir string) (*domain.Manifest, error) {
	path := filepath.Join(dir, l.Filename)
	data, err := os.ReadFile(path) //nolint:gosec // Path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read manifest"), "path", path)
	}

	var m domain.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidManifest, err.Error()), "path", path)
	}
	if err := m.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return &m, nil
}
