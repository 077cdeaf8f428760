package archive_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/adapters/checksum"
	"github.com/agentpkg/apm/internal/core/domain"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func fixtureManifest() *domain.Manifest {
	return &domain.Manifest{
		Name:    "@acme/reviewer",
		Version: "1.2.0",
		Artifacts: domain.Artifacts{
			Skills: []domain.ArtifactRef{
				{Name: "review", Path: "skills/review.md"},
			},
			Prompts: []domain.ArtifactRef{
				{Name: "summary", Path: "prompts/summary.md"},
			},
		},
	}
}

func fixturePackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "skills/review.md", "# Review\nLook at the diff.")
	writeFile(t, dir, "prompts/summary.md", "Summarize the change.")
	return dir
}

func TestPackager_Build(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	pkgDir := fixturePackage(t)
	destDir := t.TempDir()

	result, err := p.Build(context.Background(), pkgDir, destDir, fixtureManifest())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "acme--reviewer-1.2.0.tgz"), result.Path)
	assert.FileExists(t, result.Path)

	_, err = domain.ParseDigest(string(result.Checksum))
	require.NoError(t, err)

	require.NotNil(t, result.FileChecksums)
	assert.Equal(t, "sha256", result.FileChecksums.Algorithm)
	assert.Len(t, result.FileChecksums.Files, 2)
	assert.Contains(t, result.FileChecksums.Files, "skills/review.md")
	assert.Contains(t, result.FileChecksums.Files, "prompts/summary.md")
}

// Identical input must produce byte-identical archives on repeat builds.
func TestPackager_Build_Deterministic(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	pkgDir := fixturePackage(t)

	first, err := p.Build(context.Background(), pkgDir, t.TempDir(), fixtureManifest())
	require.NoError(t, err)
	second, err := p.Build(context.Background(), pkgDir, t.TempDir(), fixtureManifest())
	require.NoError(t, err)

	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestPackager_Build_MissingArtifacts(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "skills/review.md", "present")

	m := fixtureManifest()
	m.Artifacts.Agents = []domain.ArtifactRef{{Name: "agent", Path: "agents/agent.md"}}

	_, err := p.Build(context.Background(), pkgDir, t.TempDir(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPackagingFailed)

	// All missing paths are reported at once, not one per attempt.
	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	missing, ok := zerrErr.Metadata()["missing_paths"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"agents/agent.md", "prompts/summary.md"}, missing)
}

func TestPackager_Build_InvalidManifest(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	m := fixtureManifest()
	m.Version = "not-semver"

	_, err := p.Build(context.Background(), fixturePackage(t), t.TempDir(), m)
	assert.ErrorIs(t, err, domain.ErrInvalidVersion)
}

func TestExtract_RoundTrip(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	pkgDir := fixturePackage(t)

	result, err := p.Build(context.Background(), pkgDir, t.TempDir(), fixtureManifest())
	require.NoError(t, err)

	destDir := t.TempDir()
	written, err := archive.Extract(context.Background(), result.Path, destDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agentpkg.yaml", "skills/review.md", "prompts/summary.md"}, written)

	// Extracted artifact bytes must re-hash to the embedded manifest.
	h := checksum.NewHasher()
	for rel, want := range result.FileChecksums.Files {
		ok, err := h.VerifyFile(filepath.Join(destDir, filepath.FromSlash(rel)), want)
		require.NoError(t, err)
		assert.True(t, ok, "file %s must survive the round trip unchanged", rel)
	}
}

func TestReadManifest(t *testing.T) {
	p := archive.NewPackager(checksum.NewHasher())
	result, err := p.Build(context.Background(), fixturePackage(t), t.TempDir(), fixtureManifest())
	require.NoError(t, err)

	m, err := archive.ReadManifest(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "@acme/reviewer", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	require.NotNil(t, m.FileChecksums)
	assert.Equal(t, result.FileChecksums.Files, m.FileChecksums.Files)
}

func TestReadManifest_NoManifest(t *testing.T) {
	path := writeRawArchive(t, map[string]string{"other.txt": "data"})
	_, err := archive.ReadManifest(path)
	assert.ErrorIs(t, err, domain.ErrCorruptArchive)
}

func TestExtract_RejectsTraversal(t *testing.T) {
	path := writeRawArchive(t, map[string]string{"../escape.txt": "evil"})
	_, err := archive.Extract(context.Background(), path, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrCorruptArchive)
}

func TestExtract_RejectsCorruptData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tgz")
	require.NoError(t, os.WriteFile(path, []byte("this is not gzip"), 0o600))

	_, err := archive.Extract(context.Background(), path, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrCorruptArchive)
}

func TestExtract_RejectsSymlinks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "links.tgz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "link",
		Linkname: "/etc/passwd",
		Typeflag: tar.TypeSymlink,
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	_, err = archive.Extract(context.Background(), path, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrCorruptArchive)
}

// writeRawArchive builds a tgz directly, bypassing the packager, for
// malformed-input tests.
func writeRawArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.tgz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Size:     int64(len(content)),
			Mode:     0o644,
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
	return path
}
