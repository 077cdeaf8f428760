// Package app implements the application layer for apm.
package app

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
	"github.com/agentpkg/apm/internal/engine/fetcher"
	"github.com/agentpkg/apm/internal/engine/lockmgr"
	"github.com/agentpkg/apm/internal/engine/resolver"
)

// App wires the engine components into user-level operations. It returns
// structured results and typed errors only; formatting and prompting belong
// to the command layer.
type App struct {
	loader     ports.ManifestLoader
	registries []ports.Registry
	resolver   *resolver.Resolver
	fetcher    *fetcher.Fetcher
	packager   *archive.Packager
	lockMgr    *lockmgr.Manager
	logger     ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.ManifestLoader,
	registries []ports.Registry,
	res *resolver.Resolver,
	fet *fetcher.Fetcher,
	packager *archive.Packager,
	lockMgr *lockmgr.Manager,
	logger ports.Logger,
) *App {
	return &App{
		loader:     loader,
		registries: registries,
		resolver:   res,
		fetcher:    fet,
		packager:   packager,
		lockMgr:    lockMgr,
		logger:     logger,
	}
}

// InstallResult reports what an install run did.
type InstallResult struct {
	// Installed lists the packages written this run, dependency-first.
	Installed []domain.ResolvedPackage
}

// Install resolves the project manifest's dependencies (plus any extra
// "name@constraint" specs), fetches and verifies the archives, extracts
// them into the install directory, and merges the outcome into the lock
// document. Resolution failures are terminal: nothing is partially applied.
func (a *App) Install(ctx context.Context, projectDir string, extras []string) (*InstallResult, error) {
	m, err := a.loader.Load(projectDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load manifest")
	}

	requests, err := rootRequests(m, extras)
	if err != nil {
		return nil, err
	}

	resolved, err := a.resolver.Resolve(ctx, requests)
	if err != nil {
		return nil, err
	}
	ordered := resolver.Order(resolved)

	staging, err := os.MkdirTemp("", "apm-fetch-*")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging) //nolint:errcheck // Best effort cleanup of staging

	archives, err := a.fetcher.FetchAll(ctx, ordered, staging)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]domain.LockEntry, len(ordered))
	for _, pkg := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := a.installOne(ctx, pkg, archives[pkg.Name], resolved)
		if err != nil {
			return nil, err
		}
		entries[pkg.Name] = entry
	}

	if err := a.lockMgr.Merge(ctx, entries); err != nil {
		return nil, err
	}

	a.logger.Info("install complete")
	return &InstallResult{Installed: ordered}, nil
}

// installOne extracts a fetched archive into the install directory and
// builds its lock entry.
func (a *App) installOne(ctx context.Context, pkg domain.ResolvedPackage, archivePath string, resolved map[string]domain.ResolvedPackage) (domain.LockEntry, error) {
	name, err := domain.ParsePackageName(pkg.Name)
	if err != nil {
		return domain.LockEntry{}, err
	}

	embedded, err := archive.ReadManifest(archivePath)
	if err != nil {
		return domain.LockEntry{}, err
	}

	dest := a.lockMgr.InstallDirFor(name)
	if err := os.RemoveAll(dest); err != nil {
		return domain.LockEntry{}, zerr.With(zerr.Wrap(err, "failed to clear install directory"), "package", pkg.Name)
	}
	if _, err := archive.Extract(ctx, archivePath, dest); err != nil {
		return domain.LockEntry{}, err
	}

	// Lock the versions this resolution actually chose, not the raw
	// constraints, so the document pins an exact reproducible set.
	deps := make(map[string]string, len(pkg.Dependencies))
	for dep := range pkg.Dependencies {
		if chosen, ok := resolved[dep]; ok {
			deps[dep] = chosen.Version.String()
		}
	}

	return domain.LockEntry{
		Version:       pkg.Version.String(),
		Source:        pkg.Registry,
		Checksum:      pkg.Checksum,
		Dependencies:  deps,
		FileChecksums: embedded.FileChecksums,
	}, nil
}

// Uninstall removes a package's lock entry and installed files. Without
// force, a package that other locked packages depend on fails with
// ErrHasDependents; the command layer surfaces the dependent set and asks.
func (a *App) Uninstall(ctx context.Context, name string, force bool) error {
	return a.lockMgr.Remove(ctx, name, force)
}

// Pack builds the package archive for the manifest in pkgDir, placing it
// in destDir.
func (a *App) Pack(ctx context.Context, pkgDir, destDir string) (*archive.BuildResult, error) {
	m, err := a.loader.Load(pkgDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load manifest")
	}
	return a.packager.Build(ctx, pkgDir, destDir, m)
}

// Publish pushes an archive to the named registry, or the first configured
// registry when registryName is empty.
func (a *App) Publish(ctx context.Context, archivePath, registryName string) error {
	reg, err := a.registry(registryName)
	if err != nil {
		return err
	}
	return reg.Publish(ctx, archivePath)
}

// Search queries every configured registry. Empty queries are rejected
// here; the registry layer's contract assumes a non-empty query.
func (a *App) Search(ctx context.Context, query string) ([]domain.IndexEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, zerr.New("search query must not be empty")
	}

	var out []domain.IndexEntry
	for _, reg := range a.registries {
		entries, err := reg.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Registry < out[j].Registry
	})
	return out, nil
}

// InfoResult combines registry metadata with installed state.
type InfoResult struct {
	Metadata *domain.PackageMetadata

	// Registry names the backend the metadata came from.
	Registry string

	// Locked is the project's lock entry for the package, if any.
	Locked *domain.LockEntry
}

// Info returns the first configured registry's metadata for the package,
// combined with the project's locked state.
func (a *App) Info(ctx context.Context, name string) (*InfoResult, error) {
	var (
		meta *domain.PackageMetadata
		from string
	)
	for _, reg := range a.registries {
		m, err := reg.GetMetadata(ctx, name)
		if errors.Is(err, domain.ErrPackageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		meta, from = m, reg.Name()
		break
	}
	if meta == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "no configured registry knows the package"), "package", name)
	}

	result := &InfoResult{Metadata: meta, Registry: from}
	if lf, err := a.lockMgr.Locked(); err == nil {
		if entry, ok := lf.Packages[name]; ok {
			result.Locked = &entry
		}
	}
	return result, nil
}

// Verify re-hashes one installed package against its recorded manifest.
func (a *App) Verify(ctx context.Context, name string) (domain.VerificationReport, error) {
	return a.lockMgr.VerifyPackage(ctx, name)
}

// VerifyAll sweeps every locked package.
func (a *App) VerifyAll(ctx context.Context) (domain.AggregateReport, error) {
	return a.lockMgr.VerifyAll(ctx)
}

// Status reports how the manifest and lock document diverge.
func (a *App) Status(projectDir string) (lockmgr.Drift, error) {
	m, err := a.loader.Load(projectDir)
	if err != nil {
		return lockmgr.Drift{}, zerr.Wrap(err, "failed to load manifest")
	}
	return a.lockMgr.DetectDrift(m)
}

func (a *App) registry(name string) (ports.Registry, error) {
	if name == "" {
		if len(a.registries) == 0 {
			return nil, zerr.New("no registries configured")
		}
		return a.registries[0], nil
	}
	for _, reg := range a.registries {
		if reg.Name() == name {
			return reg, nil
		}
	}
	return nil, zerr.With(zerr.New("unknown registry"), "registry", name)
}

// rootRequests builds the resolution worklist from the manifest's declared
// dependencies plus extra "name@constraint" specs from the command line.
func rootRequests(m *domain.Manifest, extras []string) ([]domain.Request, error) {
	names := make([]string, 0, len(m.Dependencies))
	for dep := range m.Dependencies {
		names = append(names, dep)
	}
	sort.Strings(names)

	requests := make([]domain.Request, 0, len(names)+len(extras))
	for _, dep := range names {
		constraint, err := domain.ParseConstraint(m.Dependencies[dep])
		if err != nil {
			return nil, zerr.With(err, "dependency", dep)
		}
		requests = append(requests, domain.Request{
			Name:        dep,
			Constraint:  constraint,
			RequestedBy: domain.RootRequester,
		})
	}

	for _, spec := range extras {
		req, err := parseSpec(spec)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// parseSpec parses "name" or "name@constraint". The separator search skips
// index zero so scoped names ("@scope/name@^1.0.0") parse correctly; a bare
// name means any version.
func parseSpec(spec string) (domain.Request, error) {
	name := spec
	raw := ">=0.0.0"
	if at := strings.LastIndex(spec, "@"); at > 0 {
		name, raw = spec[:at], spec[at+1:]
	}

	if _, err := domain.ParsePackageName(name); err != nil {
		return domain.Request{}, err
	}
	constraint, err := domain.ParseConstraint(raw)
	if err != nil {
		return domain.Request{}, zerr.With(err, "spec", spec)
	}
	return domain.Request{
		Name:        name,
		Constraint:  constraint,
		RequestedBy: domain.RootRequester,
	}, nil
}
