// Package lockmgr implements the lock state manager: merging resolved
// packages into the lock document, drift detection against the manifest,
// and integrity verification of installed files.
package lockmgr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

// Manager drives all mutations of the lock document and verification of
// installed package files.
type Manager struct {
	store      ports.LockStore
	hasher     ports.Hasher
	installDir string
}

// NewManager creates a Manager over the given lock store. installDir is the
// root under which packages are installed, one directory per
// filesystem-safe package name.
func NewManager(store ports.LockStore, hasher ports.Hasher, installDir string) *Manager {
	return &Manager{store: store, hasher: hasher, installDir: installDir}
}

// InstallDirFor returns the directory a package's files are installed into.
func (m *Manager) InstallDirFor(name domain.PackageName) string {
	return filepath.Join(m.installDir, name.FsSafe())
}

// Merge writes the given entries into the lock document under the exclusive
// advisory lock. New entries are created, existing ones overwritten
// (upgrade); entries not named are left untouched.
func (m *Manager) Merge(ctx context.Context, entries map[string]domain.LockEntry) error {
	return m.store.Mutate(ctx, func(lf *domain.Lockfile) error {
		for name, entry := range entries {
			lf.Packages[name] = entry
		}
		return nil
	})
}

// Locked returns the current lock document.
func (m *Manager) Locked() (*domain.Lockfile, error) {
	return m.store.Load()
}

// Dependents returns the names of locked packages that depend on target.
// The caller layer decides removal policy; this only surfaces the set.
func (m *Manager) Dependents(target string) ([]string, error) {
	lf, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return lf.Dependents(target), nil
}

// Remove deletes the package's lock entry and its installed files. Unless
// ignoreDependents is set, a package that other locked packages reference
// fails with ErrHasDependents carrying the dependent set. Confirming the
// removal anyway is the caller's decision.
func (m *Manager) Remove(ctx context.Context, name string, ignoreDependents bool) error {
	pkg, err := domain.ParsePackageName(name)
	if err != nil {
		return err
	}

	return m.store.Mutate(ctx, func(lf *domain.Lockfile) error {
		if _, ok := lf.Packages[name]; !ok {
			return zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "package is not in the lock document"), "package", name)
		}
		if deps := lf.Dependents(name); len(deps) > 0 && !ignoreDependents {
			blocked := zerr.Wrap(domain.ErrHasDependents, "package is required by other locked packages")
			return zerr.With(zerr.With(blocked, "package", name), "dependents", deps)
		}

		if err := os.RemoveAll(m.InstallDirFor(pkg)); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to remove installed files"), "package", name)
		}
		delete(lf.Packages, name)
		return nil
	})
}

// Drift describes how the manifest's declared dependencies diverge from the
// lock document.
type Drift struct {
	// Added lists dependencies declared but not locked.
	Added []string

	// Removed lists locked packages the manifest no longer declares as a
	// direct dependency (transitive packages are not reported).
	Removed []string

	// Changed lists declared dependencies whose locked version no longer
	// satisfies the declared constraint.
	Changed []string
}

// InSync reports whether the lock document matches the manifest.
func (d Drift) InSync() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DetectDrift compares the manifest's declared dependencies against the
// lock document.
func (m *Manager) DetectDrift(manifest *domain.Manifest) (Drift, error) {
	lf, err := m.store.Load()
	if err != nil {
		return Drift{}, err
	}

	var d Drift
	for dep, raw := range manifest.Dependencies {
		entry, locked := lf.Packages[dep]
		if !locked {
			d.Added = append(d.Added, dep)
			continue
		}
		constraint, err := domain.ParseConstraint(raw)
		if err != nil {
			return Drift{}, zerr.With(err, "dependency", dep)
		}
		version, err := domain.ParseVersion(entry.Version)
		if err != nil {
			return Drift{}, zerr.With(err, "dependency", dep)
		}
		if !constraint.Check(version) {
			d.Changed = append(d.Changed, dep)
		}
	}

	// Direct dependencies only: a locked package is "removed" when nothing
	// declares it and no other locked package depends on it.
	for name := range lf.Packages {
		if _, declared := manifest.Dependencies[name]; declared {
			continue
		}
		if len(lf.Dependents(name)) == 0 {
			d.Removed = append(d.Removed, name)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d, nil
}

// VerifyPackage re-hashes the installed files of one locked package and
// classifies every path as intact, modified, or missing, plus any installed
// file absent from the recorded manifest as untracked. Divergence is
// reported, never repaired. Entries locked before checksum tracking existed
// report HasChecksums=false instead of failing.
func (m *Manager) VerifyPackage(ctx context.Context, name string) (domain.VerificationReport, error) {
	lf, err := m.store.Load()
	if err != nil {
		return domain.VerificationReport{}, err
	}
	entry, ok := lf.Packages[name]
	if !ok {
		return domain.VerificationReport{}, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "package is not in the lock document"), "package", name)
	}
	return m.verifyEntry(ctx, name, entry)
}

func (m *Manager) verifyEntry(ctx context.Context, name string, entry domain.LockEntry) (domain.VerificationReport, error) {
	report := domain.VerificationReport{Package: name}
	if entry.FileChecksums == nil || len(entry.FileChecksums.Files) == 0 {
		return report, nil
	}
	report.HasChecksums = true

	pkg, err := domain.ParsePackageName(name)
	if err != nil {
		return domain.VerificationReport{}, err
	}
	dir := m.InstallDirFor(pkg)

	recorded := make([]string, 0, len(entry.FileChecksums.Files))
	for rel := range entry.FileChecksums.Files {
		recorded = append(recorded, rel)
	}
	sort.Strings(recorded)

	for _, rel := range recorded {
		if err := ctx.Err(); err != nil {
			return domain.VerificationReport{}, err
		}

		path := filepath.Join(dir, filepath.FromSlash(rel))
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			report.Missing = append(report.Missing, rel)
			continue
		} else if err != nil {
			return domain.VerificationReport{}, zerr.With(zerr.Wrap(err, "failed to stat installed file"), "path", path)
		}

		ok, err := m.hasher.VerifyFile(path, entry.FileChecksums.Files[rel])
		if err != nil {
			return domain.VerificationReport{}, err
		}
		if ok {
			report.Intact = append(report.Intact, rel)
		} else {
			report.Modified = append(report.Modified, rel)
		}
	}

	untracked, err := m.findUntracked(dir, entry.FileChecksums.Files)
	if err != nil {
		return domain.VerificationReport{}, err
	}
	report.Untracked = untracked

	return report, nil
}

// findUntracked lists installed files not present in the recorded manifest.
// The embedded package manifest itself is always expected.
func (m *Manager) findUntracked(dir string, recorded map[string]domain.Digest) ([]string, error) {
	var untracked []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		slashRel := filepath.ToSlash(rel)
		if slashRel == domain.ManifestFilename {
			return nil
		}
		if _, ok := recorded[slashRel]; !ok {
			untracked = append(untracked, slashRel)
		}
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to scan install directory"), "dir", dir)
	}
	sort.Strings(untracked)
	return untracked, nil
}

// VerifyAll verifies every locked package. The sweep always completes: a
// dirty package never aborts verification of the rest.
func (m *Manager) VerifyAll(ctx context.Context) (domain.AggregateReport, error) {
	lf, err := m.store.Load()
	if err != nil {
		return domain.AggregateReport{}, err
	}

	names := make([]string, 0, len(lf.Packages))
	for name := range lf.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var agg domain.AggregateReport
	for _, name := range names {
		report, err := m.verifyEntry(ctx, name, lf.Packages[name])
		if err != nil {
			return domain.AggregateReport{}, err
		}
		agg.Reports = append(agg.Reports, report)
		switch {
		case !report.HasChecksums:
			agg.Skipped++
		case report.IsClean():
			agg.Clean++
		default:
			agg.Dirty++
		}
	}
	return agg, nil
}
