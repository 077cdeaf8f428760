package ports

import (
	"context"

	"github.com/agentpkg/apm/internal/core/domain"
)

// Hasher defines the interface for computing content digests.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// HashFile streams the file and returns its digest in canonical
	// "sha256:hex" form. Memory use is constant in file size.
	HashFile(path string) (domain.Digest, error)

	// VerifyFile recomputes the file's digest and compares it against
	// expected. A mismatch returns false with a nil error; only I/O
	// failures produce an error.
	VerifyFile(path string, expected domain.Digest) (bool, error)

	// HashTree walks root deterministically (lexicographic relative path
	// order) and hashes every regular file. The returned mapping is keyed
	// by slash-separated relative path and is reproducible across machines
	// regardless of per-file hashing concurrency.
	HashTree(ctx context.Context, root string) (map[string]domain.Digest, error)
}
