package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Version is a parsed semantic version. The zero value is not usable;
// construct via ParseVersion.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a strict semantic version (major.minor.patch with
// optional pre-release and build metadata). Partial versions and "v"
// prefixes are rejected.
func ParseVersion(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, zerr.With(zerr.Wrap(ErrInvalidVersion, err.Error()), "input", s)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion for inputs known to be valid, e.g. test
// fixtures. It panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical version string.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// IsZero reports whether the version is the unusable zero value.
func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater than o.
// Build metadata is ignored, pre-release versions order below their release.
func (v Version) Compare(o Version) int { return v.v.Compare(o.v) }

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool { return v.v.LessThan(o.v) }

// Equal reports whether v and o denote the same version.
func (v Version) Equal(o Version) bool { return v.v.Equal(o.v) }

// Constraint is a version predicate built from one or more comparator
// clauses ANDed together (e.g. ">=1.2.0 <2.0.0", "^1.4.0", "1.2.3").
// Immutable once constructed.
type Constraint struct {
	raw string
	c   *semver.Constraints
}

// ParseConstraint parses a constraint expression. Supported clauses: exact
// versions, comparators (=, !=, >, >=, <, <=), tilde and caret shorthand.
// Space- or comma-separated clauses AND together.
func ParseConstraint(s string) (Constraint, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Constraint{}, zerr.With(zerr.Wrap(ErrInvalidConstraint, "empty constraint"), "input", s)
	}
	c, err := semver.NewConstraint(trimmed)
	if err != nil {
		return Constraint{}, zerr.With(zerr.Wrap(ErrInvalidConstraint, err.Error()), "input", s)
	}
	return Constraint{raw: trimmed, c: c}, nil
}

// MustParseConstraint is ParseConstraint for inputs known to be valid.
// It panics on error.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the constraint expression as parsed.
func (c Constraint) String() string { return c.raw }

// IsZero reports whether the constraint is the unusable zero value.
func (c Constraint) IsZero() bool { return c.c == nil }

// Check reports whether the version satisfies the constraint.
func (c Constraint) Check(v Version) bool {
	if c.c == nil || v.v == nil {
		return false
	}
	return c.c.Check(v.v)
}

// FindBestMatch returns the highest version among candidates that satisfies
// the constraint. The result is independent of candidate ordering; the
// boolean is false when no candidate matches.
func FindBestMatch(c Constraint, candidates []Version) (Version, bool) {
	var best Version
	for _, cand := range candidates {
		if !c.Check(cand) {
			continue
		}
		if best.IsZero() || best.Less(cand) {
			best = cand
		}
	}
	return best, !best.IsZero()
}
