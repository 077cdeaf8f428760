// Package archive implements deterministic package archive construction
// and extraction.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

// Extension is the archive file extension.
const Extension = ".tgz"

// epoch is the fixed timestamp stamped on every archive entry so that
// packing the same content twice yields byte-identical archives.
var epoch = time.Unix(0, 0).UTC()

// BuildResult describes a successfully built archive.
type BuildResult struct {
	// Path is the final archive location.
	Path string

	// Checksum is the whole-file digest of the archive, computed after the
	// build. It is reported to the caller, never embedded in the archive
	// itself.
	Checksum domain.Digest

	// FileChecksums is the per-file manifest embedded into the archive.
	FileChecksums *domain.FileChecksums
}

// Packager builds compressed package archives from a package directory.
type Packager struct {
	hasher ports.Hasher
}

// NewPackager creates a new Packager.
func NewPackager(hasher ports.Hasher) *Packager {
	return &Packager{hasher: hasher}
}

// Build creates `{scope-}{name}-{version}.tgz` in destDir from the package
// directory and manifest. Every artifact path the manifest references must
// exist; missing paths fail the build as one ErrPackagingFailed carrying
// the full list. Construction is all-or-nothing: the archive is written to
// a temporary file and renamed into place on success, so a failed build
// never leaves a partial archive behind.
func (p *Packager) Build(ctx context.Context, pkgDir, destDir string, m *domain.Manifest) (*BuildResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	paths, err := artifactPaths(pkgDir, m)
	if err != nil {
		return nil, err
	}

	checksums, err := p.hashArtifacts(ctx, pkgDir, paths)
	if err != nil {
		return nil, err
	}

	// Embed the per-file manifest before archiving so it travels with the
	// package unchanged through distribution.
	embedded := *m
	embedded.FileChecksums = checksums

	name, err := domain.ParsePackageName(m.Name)
	if err != nil {
		return nil, err
	}
	finalPath := filepath.Join(destDir, ArchiveFilename(name, m.Version))

	if err := p.writeArchive(ctx, pkgDir, finalPath, &embedded, paths); err != nil {
		return nil, err
	}

	digest, err := p.hasher.HashFile(finalPath)
	if err != nil {
		return nil, err
	}

	return &BuildResult{Path: finalPath, Checksum: digest, FileChecksums: checksums}, nil
}

// ArchiveFilename returns the deterministic archive name for a package
// version, using the filesystem-safe name projection.
func ArchiveFilename(name domain.PackageName, version string) string {
	return name.FsSafe() + "-" + version + Extension
}

// artifactPaths validates that every referenced artifact exists, collecting
// all missing paths into a single error rather than failing one at a time.
func artifactPaths(pkgDir string, m *domain.Manifest) ([]string, error) {
	var paths, missing []string
	seen := make(map[string]bool)
	for _, a := range m.AllArtifacts() {
		rel := filepath.ToSlash(filepath.Clean(a.Path))
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if _, err := os.Stat(filepath.Join(pkgDir, filepath.FromSlash(rel))); err != nil {
			missing = append(missing, rel)
			continue
		}
		paths = append(paths, rel)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, zerr.With(
			zerr.Wrap(domain.ErrPackagingFailed, "artifact paths do not exist"),
			"missing_paths", missing,
		)
	}
	sort.Strings(paths)
	return paths, nil
}

// hashArtifacts computes the per-file checksum mapping for the archive.
func (p *Packager) hashArtifacts(ctx context.Context, pkgDir string, paths []string) (*domain.FileChecksums, error) {
	files := make(map[string]domain.Digest, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := p.hasher.HashFile(filepath.Join(pkgDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		files[rel] = d
	}
	return &domain.FileChecksums{Algorithm: domain.DigestAlgorithm, Files: files}, nil
}

// writeArchive produces the compressed archive at finalPath via a temporary
// file in the same directory.
func (p *Packager) writeArchive(ctx context.Context, pkgDir, finalPath string, m *domain.Manifest, paths []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create archive directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".apm-pack-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary archive")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	gw := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gw)

	manifestData, err := yaml.Marshal(m)
	if err != nil {
		return zerr.Wrap(err, "failed to serialize manifest")
	}
	if err := writeEntry(tw, domain.ManifestFilename, manifestData); err != nil {
		return err
	}

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(pkgDir, filepath.FromSlash(rel))) //nolint:gosec // Paths come from the validated manifest
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read artifact"), "path", rel)
		}
		if err := writeEntry(tw, rel, data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finalize archive")
	}
	if err := gw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finalize compression")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temporary archive")
	}

	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return zerr.Wrap(err, "failed to move archive into place")
	}
	return nil
}

// writeEntry writes one normalized tar entry. Timestamps, ownership, and
// format are fixed so identical content produces identical bytes.
func writeEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  epoch,
		Uid:      0,
		Gid:      0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write archive header"), "entry", name)
	}
	if _, err := tw.Write(data); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write archive entry"), "entry", name)
	}
	return nil
}
