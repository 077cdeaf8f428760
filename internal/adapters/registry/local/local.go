// Package local implements the reference registry backend on the local
// filesystem. Each published version is stored as an immutable,
// content-addressed archive next to a per-package metadata record.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

var _ ports.Registry = (*Registry)(nil)

const metadataFilename = "metadata.json"

// Registry is a filesystem-backed registry rooted at a directory.
type Registry struct {
	name   string
	root   string
	hasher ports.Hasher
}

// New creates a local registry with the given name rooted at root.
func New(name, root string, hasher ports.Hasher) *Registry {
	return &Registry{name: name, root: filepath.Clean(root), hasher: hasher}
}

// Name returns the registry's configured name.
func (r *Registry) Name() string { return r.name }

// Search returns entries whose name, description, or keywords contain the
// query, case-insensitively.
func (r *Registry) Search(ctx context.Context, query string) ([]domain.IndexEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read registry root"), "root", r.root)
	}

	q := strings.ToLower(query)
	var out []domain.IndexEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := r.loadMetadata(e.Name())
		if err != nil {
			if errors.Is(err, domain.ErrPackageNotFound) {
				continue
			}
			return nil, err
		}
		if !matches(meta, q) {
			continue
		}
		out = append(out, domain.IndexEntry{
			Name:        meta.Name,
			Description: meta.Description,
			Latest:      meta.DistTags["latest"],
			Registry:    r.name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetMetadata returns a copy of the per-package record.
func (r *Registry) GetMetadata(ctx context.Context, name string) (*domain.PackageMetadata, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	pkg, err := domain.ParsePackageName(name)
	if err != nil {
		return nil, err
	}
	return r.loadMetadata(pkg.FsSafe())
}

// GetVersions returns all published versions newest-first.
func (r *Registry) GetVersions(ctx context.Context, name string) ([]domain.Version, error) {
	meta, err := r.GetMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	versions := make([]domain.Version, 0, len(meta.Versions))
	for _, vi := range meta.Versions {
		v, err := domain.ParseVersion(vi.Version)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "registry metadata holds unparseable version"), "package", name)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[j].Less(versions[i]) })
	return versions, nil
}

// Download copies the exact version's archive into destDir and verifies it
// against the recorded checksum before returning the path. A mismatch is
// fatal, never retried.
func (r *Registry) Download(ctx context.Context, name, version, destDir string) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	pkg, err := domain.ParsePackageName(name)
	if err != nil {
		return "", err
	}

	meta, err := r.loadMetadata(pkg.FsSafe())
	if err != nil {
		return "", err
	}
	info, ok := meta.FindVersion(version)
	if !ok {
		nfErr := zerr.Wrap(domain.ErrPackageNotFound, "version is not published")
		nfErr = zerr.With(nfErr, "package", name)
		nfErr = zerr.With(nfErr, "version", version)
		return "", zerr.With(nfErr, "registry", r.name)
	}

	src := filepath.Join(r.root, pkg.FsSafe(), archive.ArchiveFilename(pkg, version))
	dest := filepath.Join(destDir, archive.ArchiveFilename(pkg, version))
	if err := copyFile(ctx, src, dest); err != nil {
		return "", err
	}

	ok, err = r.hasher.VerifyFile(dest, info.Checksum)
	if err != nil {
		return "", err
	}
	if !ok {
		_ = os.Remove(dest)
		corrupt := zerr.Wrap(domain.ErrCorruptArchive, "archive does not match recorded checksum")
		corrupt = zerr.With(corrupt, "package", name)
		corrupt = zerr.With(corrupt, "version", version)
		return "", zerr.With(corrupt, "expected", string(info.Checksum))
	}
	return dest, nil
}

// Publish appends the archive's (name, version) to the registry. The
// archive file is copied in as-is and becomes immutable.
func (r *Registry) Publish(ctx context.Context, archivePath string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	m, err := archive.ReadManifest(archivePath)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	pkg, err := domain.ParsePackageName(m.Name)
	if err != nil {
		return err
	}

	meta, err := r.loadMetadata(pkg.FsSafe())
	if errors.Is(err, domain.ErrPackageNotFound) {
		meta = &domain.PackageMetadata{Name: m.Name}
	} else if err != nil {
		return err
	}

	if _, exists := meta.FindVersion(m.Version); exists {
		conflict := zerr.Wrap(domain.ErrRegistryConflict, "version is already published")
		conflict = zerr.With(conflict, "package", m.Name)
		conflict = zerr.With(conflict, "version", m.Version)
		return zerr.With(conflict, "registry", r.name)
	}

	digest, err := r.hasher.HashFile(archivePath)
	if err != nil {
		return err
	}
	stat, err := os.Stat(archivePath)
	if err != nil {
		return zerr.Wrap(err, "failed to stat archive")
	}

	pkgDir := filepath.Join(r.root, pkg.FsSafe())
	if err := copyFile(ctx, archivePath, filepath.Join(pkgDir, archive.ArchiveFilename(pkg, m.Version))); err != nil {
		return err
	}

	now := time.Now().UTC()
	meta.Description = m.Description
	meta.Author = m.Author
	meta.License = m.License
	meta.Keywords = m.Keywords
	meta.Versions = append([]domain.VersionInfo{{
		Version:      m.Version,
		Checksum:     digest,
		Size:         stat.Size(),
		PublishedAt:  now,
		Dependencies: m.Dependencies,
	}}, meta.Versions...)
	sortVersionsNewestFirst(meta.Versions)

	if meta.DistTags == nil {
		meta.DistTags = make(map[string]string)
	}
	meta.DistTags["latest"] = meta.Versions[0].Version

	return r.saveMetadata(pkg.FsSafe(), meta)
}

func (r *Registry) loadMetadata(fsName string) (*domain.PackageMetadata, error) {
	data, err := os.ReadFile(filepath.Join(r.root, fsName, metadataFilename)) //nolint:gosec // Path derives from a validated package name
	if errors.Is(err, fs.ErrNotExist) {
		nfErr := zerr.Wrap(domain.ErrPackageNotFound, "package has no registry record")
		return nil, zerr.With(zerr.With(nfErr, "package", fsName), "registry", r.name)
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read registry metadata"), "package", fsName)
	}

	var meta domain.PackageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse registry metadata"), "package", fsName)
	}
	return &meta, nil
}

// saveMetadata writes the record atomically: temp file, then rename.
func (r *Registry) saveMetadata(fsName string, meta *domain.PackageMetadata) error {
	dir := filepath.Join(r.root, fsName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create package directory")
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to serialize registry metadata")
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary metadata file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to write registry metadata")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temporary metadata file")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, metadataFilename)); err != nil {
		return zerr.Wrap(err, "failed to move metadata into place")
	}
	return nil
}

func matches(meta *domain.PackageMetadata, query string) bool {
	if strings.Contains(strings.ToLower(meta.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(meta.Description), query) {
		return true
	}
	for _, kw := range meta.Keywords {
		if strings.Contains(strings.ToLower(kw), query) {
			return true
		}
	}
	return false
}

func sortVersionsNewestFirst(infos []domain.VersionInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		vi, erri := domain.ParseVersion(infos[i].Version)
		vj, errj := domain.ParseVersion(infos[j].Version)
		if erri != nil || errj != nil {
			return infos[j].Version < infos[i].Version
		}
		return vj.Less(vi)
	})
}

// copyFile copies src to dest through a temp file in dest's directory so a
// cancelled or failed copy never leaves a valid-looking artifact.
func copyFile(ctx context.Context, src, dest string) (err error) {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // Path derives from a validated package name
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open source archive"), "path", src)
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create destination directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".apm-dl-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy archive"), "path", src)
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temporary file")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return zerr.Wrap(err, "failed to move archive into place")
	}
	return nil
}

// checkCtx maps a hit deadline to ErrRegistryTimeout and cancellation to
// the context error.
func checkCtx(ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return zerr.Wrap(domain.ErrRegistryTimeout, ctx.Err().Error())
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return nil
	}
}
