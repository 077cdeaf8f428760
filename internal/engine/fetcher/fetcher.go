// Package fetcher implements the bounded-parallel download-and-verify phase
// of an install.
package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

// Fetcher downloads resolved package archives. Downloads are independent:
// each target path is distinct and verification is purely a function of the
// archive's bytes, so they run concurrently without shared mutable state.
type Fetcher struct {
	registries map[string]ports.Registry
	limit      int
	timeout    time.Duration
}

// New creates a Fetcher. limit bounds concurrent downloads; values below
// one disable parallelism.
func New(registries []ports.Registry, limit int, timeout time.Duration) *Fetcher {
	byName := make(map[string]ports.Registry, len(registries))
	for _, reg := range registries {
		byName[reg.Name()] = reg
	}
	if limit < 1 {
		limit = 1
	}
	return &Fetcher{registries: byName, limit: limit, timeout: timeout}
}

// FetchAll downloads every resolved package into destDir and returns the
// archive path per package name. The first failure aborts the batch;
// registry backends discard partial downloads, so a failed batch leaves no
// valid-looking artifacts behind.
func (f *Fetcher) FetchAll(ctx context.Context, packages []domain.ResolvedPackage, destDir string) (map[string]string, error) {
	var mu sync.Mutex
	paths := make(map[string]string, len(packages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)

	for _, pkg := range packages {
		g.Go(func() error {
			reg, ok := f.registries[pkg.Registry]
			if !ok {
				nfErr := zerr.Wrap(domain.ErrPackageNotFound, "resolved source registry is not configured")
				return zerr.With(zerr.With(nfErr, "package", pkg.Name), "registry", pkg.Registry)
			}

			callCtx := gctx
			cancel := context.CancelFunc(func() {})
			if f.timeout > 0 {
				callCtx, cancel = context.WithTimeout(gctx, f.timeout)
			}
			defer cancel()

			path, err := reg.Download(callCtx, pkg.Name, pkg.Version.String(), destDir)
			if errors.Is(err, context.DeadlineExceeded) {
				return zerr.With(zerr.Wrap(domain.ErrRegistryTimeout, err.Error()), "package", pkg.Name)
			}
			if err != nil {
				return err
			}

			mu.Lock()
			paths[pkg.Name] = path
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
