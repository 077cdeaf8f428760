// Package checksum implements streaming content hashing for files and
// directory trees.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.Hasher = (*Hasher)(nil)

// chunkSize is the read buffer size for streaming hashes, keeping memory
// use constant regardless of file size.
const chunkSize = 64 * 1024

// Hasher computes sha256 content digests in canonical "sha256:hex" form.
type Hasher struct {
	// parallelism bounds concurrent per-file hashing in HashTree.
	parallelism int
}

// NewHasher creates a new Hasher. Tree hashing parallelism defaults to the
// number of CPUs.
func NewHasher() *Hasher {
	return &Hasher{parallelism: runtime.NumCPU()}
}

// HashFile streams the file in fixed-size chunks and returns its digest.
func (h *Hasher) HashFile(path string) (domain.Digest, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	digest := sha256.New()
	if _, err := io.CopyBuffer(digest, f, make([]byte, chunkSize)); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return domain.Digest(domain.DigestAlgorithm + ":" + hex.EncodeToString(digest.Sum(nil))), nil
}

// VerifyFile recomputes the file's digest and compares it against expected.
// A mismatch returns false with a nil error; only I/O failures error.
func (h *Hasher) VerifyFile(path string, expected domain.Digest) (bool, error) {
	actual, err := h.HashFile(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// HashTree walks root and hashes every regular file. The walk order is
// lexicographic over slash-separated relative paths; per-file hashing runs
// in a bounded worker pool, but the assembled mapping is identical
// regardless of completion order. The ordering is load-bearing: it is
// embedded verbatim in archive manifests and must reproduce across
// machines and operating systems.
func (h *Hasher) HashTree(ctx context.Context, root string) (map[string]domain.Digest, error) {
	paths, err := collectFiles(root)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	digests := make([]domain.Digest, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := h.HashFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Digest, len(paths))
	for i, rel := range paths {
		out[rel] = digests[i]
	}
	return out, nil
}

// collectFiles returns the slash-separated relative paths of all regular
// files under root, skipping VCS metadata directories.
func collectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name == ".git" || name == ".jj" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to walk tree"), "root", root)
	}
	return paths, nil
}
