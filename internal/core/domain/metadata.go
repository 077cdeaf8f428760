package domain

import "time"

// VersionInfo is the registry's record of a single published version.
type VersionInfo struct {
	Version      string            `json:"version"`
	Checksum     Digest            `json:"checksum"`
	Size         int64             `json:"size"`
	PublishedAt  time.Time         `json:"published_at"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// PackageMetadata is the registry's per-package record. The resolver only
// ever reads copies; the registry owns the canonical document.
type PackageMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`

	// DistTags maps tag names (e.g. "latest") to versions.
	DistTags map[string]string `json:"dist_tags,omitempty"`

	// Versions is ordered newest-first.
	Versions []VersionInfo `json:"versions"`
}

// FindVersion returns the VersionInfo for an exact version string.
func (m *PackageMetadata) FindVersion(version string) (VersionInfo, bool) {
	for _, vi := range m.Versions {
		if vi.Version == version {
			return vi, true
		}
	}
	return VersionInfo{}, false
}

// IndexEntry is a single search result.
type IndexEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Latest      string `json:"latest,omitempty"`
	Registry    string `json:"registry,omitempty"`
}
