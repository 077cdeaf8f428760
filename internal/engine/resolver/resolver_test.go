package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"

	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/core/ports"
	"github.com/agentpkg/apm/internal/core/ports/mocks"
	"github.com/agentpkg/apm/internal/engine/resolver"
)

func versions(raw ...string) []domain.Version {
	out := make([]domain.Version, len(raw))
	for i, s := range raw {
		out[i] = domain.MustParseVersion(s)
	}
	return out
}

func metadata(name string, deps map[string]map[string]string, raw ...string) *domain.PackageMetadata {
	meta := &domain.PackageMetadata{Name: name}
	for _, v := range raw {
		meta.Versions = append(meta.Versions, domain.VersionInfo{
			Version:      v,
			Checksum:     domain.Digest("sha256:" + pad64(v)),
			Dependencies: deps[v],
		})
	}
	return meta
}

// pad64 derives a syntactically valid fake digest hex from a seed.
func pad64(seed string) string {
	hex := ""
	for _, r := range seed {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			hex += string(r)
		}
	}
	for len(hex) < 64 {
		hex += "0"
	}
	return hex[:64]
}

// stubPackage wires GetVersions and GetMetadata for one package.
func stubPackage(reg *mocks.MockRegistry, name string, deps map[string]map[string]string, raw ...string) {
	reg.EXPECT().GetVersions(gomock.Any(), name).Return(versions(raw...), nil).AnyTimes()
	reg.EXPECT().GetMetadata(gomock.Any(), name).Return(metadata(name, deps, raw...), nil).AnyTimes()
}

func stubMissing(reg *mocks.MockRegistry, name string) {
	reg.EXPECT().GetVersions(gomock.Any(), name).
		Return(nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "package has no registry record"), "package", name)).AnyTimes()
}

func request(name, constraint, by string) domain.Request {
	return domain.Request{
		Name:        name,
		Constraint:  domain.MustParseConstraint(constraint),
		RequestedBy: by,
	}
}

func TestResolver_Resolve_TransitiveGraph(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()

	stubPackage(reg, "app", map[string]map[string]string{
		"1.4.2": {"lib": "^2.0.0"},
	}, "1.4.2", "1.0.0")
	stubPackage(reg, "lib", nil, "2.1.0", "2.0.0", "1.9.0")

	r := resolver.New([]ports.Registry{reg}, 0)
	resolved, err := r.Resolve(context.Background(), []domain.Request{
		request("app", "^1.0.0", domain.RootRequester),
	})
	require.NoError(t, err)

	require.Len(t, resolved, 2)
	assert.Equal(t, "1.4.2", resolved["app"].Version.String())
	assert.Equal(t, domain.RootRequester, resolved["app"].RequestedBy)
	assert.Equal(t, "2.1.0", resolved["lib"].Version.String())
	assert.Equal(t, "app", resolved["lib"].RequestedBy)
	assert.Equal(t, "local", resolved["lib"].Registry)
}

func TestResolver_Resolve_CompatibleRerequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()

	// Both roots depend on the shared package with overlapping constraints;
	// the shared package must only be resolved once.
	reg.EXPECT().GetVersions(gomock.Any(), "shared").Return(versions("1.5.0"), nil).Times(1)
	reg.EXPECT().GetMetadata(gomock.Any(), "shared").Return(metadata("shared", nil, "1.5.0"), nil).Times(1)
	stubPackage(reg, "app-a", map[string]map[string]string{"1.0.0": {"shared": "^1.0.0"}}, "1.0.0")
	stubPackage(reg, "app-b", map[string]map[string]string{"1.0.0": {"shared": ">=1.2.0 <2.0.0"}}, "1.0.0")

	r := resolver.New([]ports.Registry{reg}, 0)
	resolved, err := r.Resolve(context.Background(), []domain.Request{
		request("app-a", "1.0.0", domain.RootRequester),
		request("app-b", "1.0.0", domain.RootRequester),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.5.0", resolved["shared"].Version.String())
}

func TestResolver_Resolve_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()

	stubPackage(reg, "app", map[string]map[string]string{
		"1.4.2": {"lib": "^2.0.0"},
	}, "1.4.2", "1.0.0")
	stubPackage(reg, "lib", nil, "2.1.0", "2.0.0")

	r := resolver.New([]ports.Registry{reg}, 0)
	requests := []domain.Request{request("app", "^1.0.0", domain.RootRequester)}

	// Same roots against unchanged registry state resolve to the same set.
	first, err := r.Resolve(context.Background(), requests)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolver_Resolve_VersionConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()

	stubPackage(reg, "app-a", map[string]map[string]string{"1.0.0": {"lib": "^1.0.0"}}, "1.0.0")
	stubPackage(reg, "app-b", map[string]map[string]string{"1.0.0": {"lib": "^2.0.0"}}, "1.0.0")
	stubPackage(reg, "lib", nil, "1.5.0")

	r := resolver.New([]ports.Registry{reg}, 0)
	_, err := r.Resolve(context.Background(), []domain.Request{
		request("app-a", "1.0.0", domain.RootRequester),
		request("app-b", "1.0.0", domain.RootRequester),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	// The conflict must name both requesters so the user can act on it.
	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	meta := zerrErr.Metadata()
	assert.Equal(t, "lib", meta["package"])
	assert.Equal(t, "app-a", meta["resolved_requested_by"])
	assert.Equal(t, "app-b", meta["requested_by"])
	assert.Equal(t, "1.5.0", meta["resolved_version"])
	assert.Equal(t, "^2.0.0", meta["constraint"])
}

func TestResolver_Resolve_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()
	stubMissing(reg, "ghost")

	r := resolver.New([]ports.Registry{reg}, 0)
	_, err := r.Resolve(context.Background(), []domain.Request{
		request("ghost", "^1.0.0", domain.RootRequester),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, false, zerrErr.Metadata()["known_to_any_registry"])
}

func TestResolver_Resolve_KnownButNoMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()
	stubPackage(reg, "lib", nil, "1.0.0", "1.2.0")

	r := resolver.New([]ports.Registry{reg}, 0)
	_, err := r.Resolve(context.Background(), []domain.Request{
		request("lib", "^2.0.0", domain.RootRequester),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, true, zerrErr.Metadata()["known_to_any_registry"])
}

// A higher-priority registry with an older matching version wins over a
// lower-priority registry with a newer one.
func TestResolver_Resolve_FirstRegistryWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockRegistry(ctrl)
	first.EXPECT().Name().Return("first").AnyTimes()
	second := mocks.NewMockRegistry(ctrl)
	second.EXPECT().Name().Return("second").AnyTimes()

	stubPackage(first, "lib", nil, "1.0.0")
	stubPackage(second, "lib", nil, "1.9.0")

	r := resolver.New([]ports.Registry{first, second}, 0)
	resolved, err := r.Resolve(context.Background(), []domain.Request{
		request("lib", "^1.0.0", domain.RootRequester),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", resolved["lib"].Version.String())
	assert.Equal(t, "first", resolved["lib"].Registry)
}

func TestResolver_Resolve_FallsThroughToNextRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockRegistry(ctrl)
	first.EXPECT().Name().Return("first").AnyTimes()
	second := mocks.NewMockRegistry(ctrl)
	second.EXPECT().Name().Return("second").AnyTimes()

	stubMissing(first, "lib")
	stubPackage(second, "lib", nil, "1.2.0")

	r := resolver.New([]ports.Registry{first, second}, 0)
	resolved, err := r.Resolve(context.Background(), []domain.Request{
		request("lib", "^1.0.0", domain.RootRequester),
	})
	require.NoError(t, err)
	assert.Equal(t, "second", resolved["lib"].Registry)
}

func TestResolver_Resolve_TimeoutClassified(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Name().Return("local").AnyTimes()
	reg.EXPECT().GetVersions(gomock.Any(), "lib").Return(nil, context.DeadlineExceeded)

	r := resolver.New([]ports.Registry{reg}, time.Second)
	_, err := r.Resolve(context.Background(), []domain.Request{
		request("lib", "^1.0.0", domain.RootRequester),
	})
	assert.ErrorIs(t, err, domain.ErrRegistryTimeout)
}

func TestResolver_Resolve_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistry(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := resolver.New([]ports.Registry{reg}, 0)
	_, err := r.Resolve(ctx, []domain.Request{
		request("lib", "^1.0.0", domain.RootRequester),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func resolvedPkg(name, version string, deps map[string]string) domain.ResolvedPackage {
	return domain.ResolvedPackage{
		Name:         name,
		Version:      domain.MustParseVersion(version),
		Dependencies: deps,
	}
}

func TestOrder_DependenciesFirst(t *testing.T) {
	resolved := map[string]domain.ResolvedPackage{
		"app":    resolvedPkg("app", "1.0.0", map[string]string{"lib": "^1.0.0", "util": "^1.0.0"}),
		"lib":    resolvedPkg("lib", "1.2.0", map[string]string{"util": "^1.0.0"}),
		"util":   resolvedPkg("util", "1.0.0", nil),
		"orphan": resolvedPkg("orphan", "0.1.0", nil),
	}

	ordered := resolver.Order(resolved)
	require.Len(t, ordered, 4)

	pos := make(map[string]int, len(ordered))
	for i, pkg := range ordered {
		pos[pkg.Name] = i
	}
	assert.Less(t, pos["util"], pos["lib"])
	assert.Less(t, pos["lib"], pos["app"])
	assert.Less(t, pos["util"], pos["app"])
}

func TestOrder_Deterministic(t *testing.T) {
	resolved := map[string]domain.ResolvedPackage{
		"b-pkg": resolvedPkg("b-pkg", "1.0.0", nil),
		"a-pkg": resolvedPkg("a-pkg", "1.0.0", nil),
		"c-pkg": resolvedPkg("c-pkg", "1.0.0", nil),
	}

	want := []string{"a-pkg", "b-pkg", "c-pkg"}
	for i := 0; i < 10; i++ {
		got := make([]string, 0, 3)
		for _, pkg := range resolver.Order(resolved) {
			got = append(got, pkg.Name)
		}
		assert.Equal(t, want, got)
	}
}

func TestOrder_CycleStillIncluded(t *testing.T) {
	resolved := map[string]domain.ResolvedPackage{
		"a": resolvedPkg("a", "1.0.0", map[string]string{"b": "1.0.0"}),
		"b": resolvedPkg("b", "1.0.0", map[string]string{"a": "1.0.0"}),
	}

	ordered := resolver.Order(resolved)
	require.Len(t, ordered, 2)
	assert.Equal(t, "a", ordered[0].Name)
	assert.Equal(t, "b", ordered[1].Name)
}
