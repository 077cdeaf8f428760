package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/agentpkg/apm/internal/core/domain"
)

// maxEntrySize caps a single extracted file at 100 MiB to guard against
// decompression bombs.
const maxEntrySize = 100 * 1024 * 1024

// Extract unpacks the archive into destDir, creating it if needed. Entries
// with traversal paths, absolute paths, links, or device types are
// rejected. Returns the slash-separated relative paths that were written.
func Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open archive"), "path", archivePath)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, err.Error()), "path", archivePath)
	}
	defer gr.Close() //nolint:errcheck // Best effort close in defer

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create destination directory")
	}

	var written []string
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, err.Error()), "path", archivePath)
		}

		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		if err := validateEntry(hdr); err != nil {
			return nil, err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return nil, zerr.Wrap(err, "failed to create entry directory")
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&0o755) //nolint:gosec // Entry path validated above
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to create file"), "entry", hdr.Name)
		}
		n, err := io.Copy(out, io.LimitReader(tr, maxEntrySize+1))
		closeErr := out.Close()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to extract entry"), "entry", hdr.Name)
		}
		if closeErr != nil {
			return nil, zerr.With(zerr.Wrap(closeErr, "failed to close extracted file"), "entry", hdr.Name)
		}
		if n > maxEntrySize {
			return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, "entry exceeds size limit"), "entry", hdr.Name)
		}

		written = append(written, hdr.Name)
	}
	return written, nil
}

// ReadManifest extracts and parses the embedded manifest without unpacking
// the rest of the archive.
func ReadManifest(archivePath string) (*domain.Manifest, error) {
	f, err := os.Open(archivePath) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open archive"), "path", archivePath)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, err.Error()), "path", archivePath)
	}
	defer gr.Close() //nolint:errcheck // Best effort close in defer

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, err.Error()), "path", archivePath)
		}
		if hdr.Name != domain.ManifestFilename {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return nil, zerr.Wrap(err, "failed to read embedded manifest")
		}
		var m domain.Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, zerr.Wrap(domain.ErrInvalidManifest, err.Error())
		}
		return &m, nil
	}
	return nil, zerr.With(zerr.Wrap(domain.ErrCorruptArchive, "archive has no manifest"), "path", archivePath)
}

// validateEntry rejects archive entries that could escape the destination
// or smuggle special file types.
func validateEntry(hdr *tar.Header) error {
	cleaned := path.Clean(hdr.Name)
	if strings.HasPrefix(cleaned, "..") || path.IsAbs(cleaned) {
		return zerr.With(zerr.Wrap(domain.ErrCorruptArchive, "unsafe entry path"), "entry", hdr.Name)
	}
	if hdr.Typeflag != tar.TypeReg {
		return zerr.With(zerr.Wrap(domain.ErrCorruptArchive, "disallowed entry type"), "entry", hdr.Name)
	}
	return nil
}
