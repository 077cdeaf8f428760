package domain

// Request is a pending resolution demand: some requester needs a package
// matching a constraint.
type Request struct {
	// Name is the canonical package name.
	Name string

	// Constraint the chosen version must satisfy.
	Constraint Constraint

	// RequestedBy names the package (or "root") that declared the dependency.
	RequestedBy string
}

// RootRequester is the RequestedBy value for dependencies declared by the
// project manifest itself.
const RootRequester = "root"

// ResolvedPackage is one committed resolution. Created once per distinct
// package name in a resolution run and never mutated afterwards; an
// incompatible re-request fails the run instead of amending the value.
type ResolvedPackage struct {
	// Name is the canonical package name.
	Name string

	// Version is the chosen version.
	Version Version

	// Registry names the source registry the version was resolved from.
	Registry string

	// Checksum is the whole-archive digest recorded by the registry.
	Checksum Digest

	// Dependencies maps dependency names to their declared constraints.
	Dependencies map[string]string

	// RequestedBy names the requester whose constraint committed this resolution.
	RequestedBy string
}
