// Package resolver implements breadth-first dependency resolution over an
// ordered list of registries.
package resolver

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
)

// Resolver turns root requests into a conflict-free set of resolved
// packages. Resolution is a single forward pass: once a version is
// committed for a name it is never revisited, and an incompatible
// re-request is a terminal conflict rather than a search problem.
type Resolver struct {
	registries []ports.Registry

	// timeout bounds each individual registry call; zero means no bound.
	timeout time.Duration
}

// New creates a Resolver consulting registries in the given order.
func New(registries []ports.Registry, timeout time.Duration) *Resolver {
	return &Resolver{registries: registries, timeout: timeout}
}

// Resolve processes the worklist seeded from requests until it drains.
// Every failure is terminal for the whole attempt; the caller corrects the
// input and re-runs from scratch. Cancellation is honored between queue
// items.
func (r *Resolver) Resolve(ctx context.Context, requests []domain.Request) (map[string]domain.ResolvedPackage, error) {
	resolved := make(map[string]domain.ResolvedPackage)

	queue := make([]domain.Request, 0, len(requests))
	queue = append(queue, requests...)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := queue[0]
		queue = queue[1:]

		if existing, ok := resolved[req.Name]; ok {
			// Compatible re-request is expected steady state, not an error.
			if req.Constraint.Check(existing.Version) {
				continue
			}
			conflict := zerr.Wrap(domain.ErrVersionConflict, "committed version does not satisfy new constraint")
			conflict = zerr.With(conflict, "package", req.Name)
			conflict = zerr.With(conflict, "resolved_version", existing.Version.String())
			conflict = zerr.With(conflict, "resolved_requested_by", existing.RequestedBy)
			conflict = zerr.With(conflict, "constraint", req.Constraint.String())
			return nil, zerr.With(conflict, "requested_by", req.RequestedBy)
		}

		pkg, err := r.resolveOne(ctx, req)
		if err != nil {
			return nil, err
		}
		resolved[req.Name] = *pkg

		deps := make([]string, 0, len(pkg.Dependencies))
		for dep := range pkg.Dependencies {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			constraint, err := domain.ParseConstraint(pkg.Dependencies[dep])
			if err != nil {
				return nil, zerr.With(zerr.With(err, "package", req.Name), "dependency", dep)
			}
			queue = append(queue, domain.Request{
				Name:        dep,
				Constraint:  constraint,
				RequestedBy: req.Name,
			})
		}
	}

	return resolved, nil
}

// resolveOne queries the registries in declared order and commits the best
// match from the first registry that can satisfy the constraint. Registries
// are not merged or compared against each other for a single package: a
// higher-priority registry with an older matching version beats a
// lower-priority one with a newer match. That is deliberate policy.
func (r *Resolver) resolveOne(ctx context.Context, req domain.Request) (*domain.ResolvedPackage, error) {
	known := false

	for _, reg := range r.registries {
		versions, err := r.getVersions(ctx, reg, req.Name)
		if errors.Is(err, domain.ErrPackageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		known = true

		best, ok := domain.FindBestMatch(req.Constraint, versions)
		if !ok {
			continue
		}

		meta, err := r.getMetadata(ctx, reg, req.Name)
		if err != nil {
			return nil, err
		}
		info, ok := meta.FindVersion(best.String())
		if !ok {
			metaErr := zerr.Wrap(domain.ErrPackageNotFound, "registry lists version without metadata")
			metaErr = zerr.With(metaErr, "package", req.Name)
			metaErr = zerr.With(metaErr, "version", best.String())
			return nil, zerr.With(metaErr, "registry", reg.Name())
		}

		return &domain.ResolvedPackage{
			Name:         req.Name,
			Version:      best,
			Registry:     reg.Name(),
			Checksum:     info.Checksum,
			Dependencies: info.Dependencies,
			RequestedBy:  req.RequestedBy,
		}, nil
	}

	nfErr := zerr.Wrap(domain.ErrPackageNotFound, "no configured registry satisfies the request")
	nfErr = zerr.With(nfErr, "package", req.Name)
	nfErr = zerr.With(nfErr, "constraint", req.Constraint.String())
	nfErr = zerr.With(nfErr, "requested_by", req.RequestedBy)
	return nil, zerr.With(nfErr, "known_to_any_registry", known)
}

func (r *Resolver) getVersions(ctx context.Context, reg ports.Registry, name string) ([]domain.Version, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	versions, err := reg.GetVersions(callCtx, name)
	return versions, classify(err)
}

func (r *Resolver) getMetadata(ctx context.Context, reg ports.Registry, name string) (*domain.PackageMetadata, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	meta, err := reg.GetMetadata(callCtx, name)
	return meta, classify(err)
}

func (r *Resolver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// classify maps a hit deadline to ErrRegistryTimeout. Retrying is the
// caller's policy decision, never the resolver's.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return zerr.Wrap(domain.ErrRegistryTimeout, err.Error())
	}
	return err
}

// Order returns the resolved packages dependency-first. BFS discovery order
// is not a valid dependency order, so install sequencing must use this
// instead. Ties break lexicographically by name, making the order
// deterministic for a given resolved set.
func Order(resolved map[string]domain.ResolvedPackage) []domain.ResolvedPackage {
	inDegree := make(map[string]int, len(resolved))
	dependents := make(map[string][]string, len(resolved))
	for name := range resolved {
		inDegree[name] = 0
	}
	for name, pkg := range resolved {
		for dep := range pkg.Dependencies {
			// Edges outside the resolved set (e.g. optional deps the caller
			// pruned) do not constrain the order.
			if _, ok := resolved[dep]; !ok {
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(resolved))
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	out := make([]domain.ResolvedPackage, 0, len(resolved))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, resolved[name])

		var unlocked []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	// A cycle in the dependency graph leaves packages unordered; append
	// them deterministically rather than dropping them.
	if len(out) < len(resolved) {
		var rest []string
		for name, deg := range inDegree {
			if deg > 0 {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		for _, name := range rest {
			out = append(out, resolved[name])
		}
	}

	return out
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
