// Package domain contains the core domain models and business logic for
// package resolution, integrity, and lock state.
package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

var (
	unscopedNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
	scopeRe        = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

// PackageName is a parsed package identifier, either unscoped ("my-skill")
// or scoped ("@acme/my-skill").
type PackageName struct {
	// Scope is the scope without the leading "@", empty for unscoped names.
	Scope string

	// Name is the unscoped part of the identifier.
	Name string
}

// ParsePackageName parses a package identifier. Formatting a parsed name
// reproduces the input exactly: ParsePackageName(s).String() == s for any
// valid s.
func ParsePackageName(s string) (PackageName, error) {
	if s == "" {
		return PackageName{}, zerr.With(zerr.Wrap(ErrInvalidPackageName, "empty name"), "input", s)
	}

	if strings.HasPrefix(s, "@") {
		scope, name, found := strings.Cut(s[1:], "/")
		if !found {
			return PackageName{}, zerr.With(zerr.Wrap(ErrInvalidPackageName, "scoped name must contain a slash"), "input", s)
		}
		if !scopeRe.MatchString(scope) {
			return PackageName{}, zerr.With(zerr.Wrap(ErrInvalidPackageName, "invalid scope"), "input", s)
		}
		if !unscopedNameRe.MatchString(name) {
			return PackageName{}, zerr.With(zerr.Wrap(ErrInvalidPackageName, "invalid name"), "input", s)
		}
		return PackageName{Scope: scope, Name: name}, nil
	}

	if !unscopedNameRe.MatchString(s) {
		return PackageName{}, zerr.With(zerr.Wrap(ErrInvalidPackageName, "invalid name"), "input", s)
	}
	return PackageName{Name: s}, nil
}

// String formats the name back into its canonical form.
func (n PackageName) String() string {
	if n.Scope == "" {
		return n.Name
	}
	return "@" + n.Scope + "/" + n.Name
}

// FsSafe returns a filesystem-safe projection of the name: "@scope/name"
// becomes "scope--name", unscoped names are unchanged.
//
// Note: the projection is not provably injective. Both scope and name may
// legally contain hyphens, so "@a-b/c" and "a--b--c"-shaped inputs can in
// principle collide. The on-disk layout inherits this risk; it is not
// silently papered over here.
func (n PackageName) FsSafe() string {
	if n.Scope == "" {
		return n.Name
	}
	return n.Scope + "--" + n.Name
}
