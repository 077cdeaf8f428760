package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidVersion is returned when a version string does not parse as strict semver.
	ErrInvalidVersion = zerr.New("invalid version")

	// ErrInvalidConstraint is returned when a constraint expression does not parse.
	ErrInvalidConstraint = zerr.New("invalid constraint")

	// ErrInvalidPackageName is returned when a package name violates the naming rules.
	ErrInvalidPackageName = zerr.New("invalid package name")

	// ErrInvalidDigest is returned when a digest string is not in algorithm:hex form.
	ErrInvalidDigest = zerr.New("invalid digest")

	// ErrInvalidManifest is returned when a package manifest fails validation.
	ErrInvalidManifest = zerr.New("invalid manifest")

	// ErrInvalidLockfile is returned when the lock document violates its invariants.
	ErrInvalidLockfile = zerr.New("invalid lock document")

	// ErrPackageNotFound is returned when no configured registry can satisfy a request.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrVersionConflict is returned when a package is re-requested with a constraint
	// the already-committed resolution cannot satisfy.
	ErrVersionConflict = zerr.New("version conflict")

	// ErrCorruptArchive is returned when an archive's content does not match its
	// recorded checksum.
	ErrCorruptArchive = zerr.New("corrupt archive")

	// ErrPackagingFailed is returned when an archive cannot be built. The metadata
	// carries the full list of missing artifact paths.
	ErrPackagingFailed = zerr.New("packaging failed")

	// ErrRegistryTimeout is returned when a registry call exceeds its deadline.
	ErrRegistryTimeout = zerr.New("registry timeout")

	// ErrLockBusy is returned when another process holds the lock document.
	ErrLockBusy = zerr.New("lock document busy")

	// ErrRegistryConflict is returned when publishing a (name, version) pair that
	// already exists. Registries are append-only.
	ErrRegistryConflict = zerr.New("version already published")

	// ErrHasDependents is returned when removing a package that other locked
	// packages depend on. The metadata carries the dependent set.
	ErrHasDependents = zerr.New("package has dependents")
)
