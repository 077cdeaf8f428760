package domain

import (
	"sort"

	"go.trai.ch/zerr"
)

// LockfileVersion is the current lock document format version.
const LockfileVersion = 1

// LockfileName is the name of the lock document at a project root.
const LockfileName = "apm.lock"

// LockEntry is the persisted record of one installed package.
type LockEntry struct {
	Version      string            `json:"version"`
	Source       string            `json:"source"`
	Checksum     Digest            `json:"checksum"`
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// SourceName and SourceCommit identify a remote-source install
	// (e.g. a git checkout). Both must be present or both absent.
	SourceName   string `json:"source_name,omitempty"`
	SourceCommit string `json:"source_commit,omitempty"`

	// FileChecksums is the per-file manifest recorded at install time.
	// Entries locked before checksum tracking existed have none.
	FileChecksums *FileChecksums `json:"file_checksums,omitempty"`
}

// Lockfile is the persisted record of exactly which version of each package
// is installed. The lock store exclusively owns the on-disk document.
type Lockfile struct {
	Version  int                  `json:"version"`
	Packages map[string]LockEntry `json:"packages"`
}

// NewLockfile returns an empty lock document at the current format version.
func NewLockfile() *Lockfile {
	return &Lockfile{
		Version:  LockfileVersion,
		Packages: make(map[string]LockEntry),
	}
}

// Validate checks the document's invariants: every entry has a parseable
// version and checksum, and source_name/source_commit appear both-or-neither.
func (l *Lockfile) Validate() error {
	for name, entry := range l.Packages {
		if _, err := ParseVersion(entry.Version); err != nil {
			return zerr.With(zerr.Wrap(err, "locked version"), "package", name)
		}
		if entry.Checksum != "" {
			if _, err := ParseDigest(string(entry.Checksum)); err != nil {
				return zerr.With(zerr.Wrap(err, "locked checksum"), "package", name)
			}
		}
		if (entry.SourceName == "") != (entry.SourceCommit == "") {
			return zerr.With(
				zerr.Wrap(ErrInvalidLockfile, "source_name and source_commit must appear together"),
				"package", name,
			)
		}
	}
	return nil
}

// Dependents returns the sorted names of locked packages whose dependency
// map references the target.
func (l *Lockfile) Dependents(target string) []string {
	var out []string
	for name, entry := range l.Packages {
		if name == target {
			continue
		}
		if _, ok := entry.Dependencies[target]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
