package domain

import (
	"go.trai.ch/zerr"
)

// ManifestFilename is the name of the package manifest file at a package root.
const ManifestFilename = "agentpkg.yaml"

// ArtifactRef is a single artifact declared by a manifest.
type ArtifactRef struct {
	Name        string `yaml:"name" json:"name"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Artifacts groups the artifact declarations of a manifest by kind.
type Artifacts struct {
	Skills       []ArtifactRef `yaml:"skills,omitempty" json:"skills,omitempty"`
	Agents       []ArtifactRef `yaml:"agents,omitempty" json:"agents,omitempty"`
	Prompts      []ArtifactRef `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	Instructions []ArtifactRef `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// FileChecksums is the per-file digest manifest embedded into an archive at
// pack time and carried unchanged through distribution.
type FileChecksums struct {
	Algorithm string            `yaml:"algorithm" json:"algorithm"`
	Files     map[string]Digest `yaml:"files" json:"files"`
}

// Manifest is the user-authored package descriptor.
type Manifest struct {
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string            `yaml:"author,omitempty" json:"author,omitempty"`
	License      string            `yaml:"license,omitempty" json:"license,omitempty"`
	Keywords     []string          `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Dependencies map[string]string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Artifacts    Artifacts         `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`

	// FileChecksums is populated by the packager; absent in hand-authored manifests.
	FileChecksums *FileChecksums `yaml:"file_checksums,omitempty" json:"file_checksums,omitempty"`
}

// AllArtifacts returns every artifact declaration across all kinds, in
// declaration order (skills, agents, prompts, instructions).
func (m *Manifest) AllArtifacts() []ArtifactRef {
	out := make([]ArtifactRef, 0,
		len(m.Artifacts.Skills)+len(m.Artifacts.Agents)+len(m.Artifacts.Prompts)+len(m.Artifacts.Instructions))
	out = append(out, m.Artifacts.Skills...)
	out = append(out, m.Artifacts.Agents...)
	out = append(out, m.Artifacts.Prompts...)
	out = append(out, m.Artifacts.Instructions...)
	return out
}

// Validate checks the manifest's own consistency: name and version parse,
// every dependency constraint parses, and artifact declarations carry
// non-empty unique names and non-empty paths.
func (m *Manifest) Validate() error {
	if _, err := ParsePackageName(m.Name); err != nil {
		return zerr.Wrap(err, "manifest name")
	}
	if _, err := ParseVersion(m.Version); err != nil {
		return zerr.Wrap(err, "manifest version")
	}

	for dep, constraint := range m.Dependencies {
		if _, err := ParsePackageName(dep); err != nil {
			return zerr.With(zerr.Wrap(err, "dependency name"), "dependency", dep)
		}
		if _, err := ParseConstraint(constraint); err != nil {
			return zerr.With(zerr.Wrap(err, "dependency constraint"), "dependency", dep)
		}
	}

	seen := make(map[string]bool)
	for _, a := range m.AllArtifacts() {
		if a.Name == "" {
			return zerr.With(zerr.Wrap(ErrInvalidManifest, "artifact without a name"), "path", a.Path)
		}
		if a.Path == "" {
			return zerr.With(zerr.Wrap(ErrInvalidManifest, "artifact without a path"), "artifact", a.Name)
		}
		if seen[a.Name] {
			return zerr.With(zerr.Wrap(ErrInvalidManifest, "duplicate artifact name"), "artifact", a.Name)
		}
		seen[a.Name] = true
	}

	return nil
}
