package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/cmd/apm/commands"
	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/app"
	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/engine/lockmgr"
)

// fakeApp implements commands.Application with overridable behavior.
type fakeApp struct {
	installFunc   func(ctx context.Context, projectDir string, extras []string) (*app.InstallResult, error)
	uninstallFunc func(ctx context.Context, name string, force bool) error
	packFunc      func(ctx context.Context, pkgDir, destDir string) (*archive.BuildResult, error)
	publishFunc   func(ctx context.Context, archivePath, registryName string) error
	searchFunc    func(ctx context.Context, query string) ([]domain.IndexEntry, error)
	infoFunc      func(ctx context.Context, name string) (*app.InfoResult, error)
	verifyFunc    func(ctx context.Context, name string) (domain.VerificationReport, error)
	verifyAllFunc func(ctx context.Context) (domain.AggregateReport, error)
	statusFunc    func(projectDir string) (lockmgr.Drift, error)
}

func (f *fakeApp) Install(ctx context.Context, projectDir string, extras []string) (*app.InstallResult, error) {
	if f.installFunc != nil {
		return f.installFunc(ctx, projectDir, extras)
	}
	return &app.InstallResult{}, nil
}

func (f *fakeApp) Uninstall(ctx context.Context, name string, force bool) error {
	if f.uninstallFunc != nil {
		return f.uninstallFunc(ctx, name, force)
	}
	return nil
}

func (f *fakeApp) Pack(ctx context.Context, pkgDir, destDir string) (*archive.BuildResult, error) {
	if f.packFunc != nil {
		return f.packFunc(ctx, pkgDir, destDir)
	}
	return &archive.BuildResult{FileChecksums: &domain.FileChecksums{}}, nil
}

func (f *fakeApp) Publish(ctx context.Context, archivePath, registryName string) error {
	if f.publishFunc != nil {
		return f.publishFunc(ctx, archivePath, registryName)
	}
	return nil
}

func (f *fakeApp) Search(ctx context.Context, query string) ([]domain.IndexEntry, error) {
	if f.searchFunc != nil {
		return f.searchFunc(ctx, query)
	}
	return nil, nil
}

func (f *fakeApp) Info(ctx context.Context, name string) (*app.InfoResult, error) {
	if f.infoFunc != nil {
		return f.infoFunc(ctx, name)
	}
	return &app.InfoResult{Metadata: &domain.PackageMetadata{Name: name}}, nil
}

func (f *fakeApp) Verify(ctx context.Context, name string) (domain.VerificationReport, error) {
	if f.verifyFunc != nil {
		return f.verifyFunc(ctx, name)
	}
	return domain.VerificationReport{Package: name}, nil
}

func (f *fakeApp) VerifyAll(ctx context.Context) (domain.AggregateReport, error) {
	if f.verifyAllFunc != nil {
		return f.verifyAllFunc(ctx)
	}
	return domain.AggregateReport{}, nil
}

func (f *fakeApp) Status(projectDir string) (lockmgr.Drift, error) {
	if f.statusFunc != nil {
		return f.statusFunc(projectDir)
	}
	return lockmgr.Drift{}, nil
}

func runCLI(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(fake)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Install(t *testing.T) {
	t.Run("wires extras and dir flag", func(t *testing.T) {
		var gotDir string
		var gotExtras []string
		fake := &fakeApp{
			installFunc: func(_ context.Context, projectDir string, extras []string) (*app.InstallResult, error) {
				gotDir = projectDir
				gotExtras = extras
				return &app.InstallResult{
					Installed: []domain.ResolvedPackage{{
						Name:     "my-skill",
						Version:  domain.MustParseVersion("1.0.0"),
						Registry: "local",
					}},
				}, nil
			},
		}

		out, err := runCLI(t, fake, "install", "--dir", "/tmp/project", "my-skill@^1.0.0")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/project", gotDir)
		assert.Equal(t, []string{"my-skill@^1.0.0"}, gotExtras)
		assert.Contains(t, out, "installed my-skill@1.0.0 (local)")
		assert.Contains(t, out, "1 package(s) installed")
	})

	t.Run("propagates failure", func(t *testing.T) {
		fake := &fakeApp{
			installFunc: func(context.Context, string, []string) (*app.InstallResult, error) {
				return nil, errors.New("resolution failed")
			},
		}
		_, err := runCLI(t, fake, "install", "--dir", "/tmp/project")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolution failed")
	})
}

func TestCommands_Uninstall(t *testing.T) {
	var gotName string
	var gotForce bool
	fake := &fakeApp{
		uninstallFunc: func(_ context.Context, name string, force bool) error {
			gotName = name
			gotForce = force
			return nil
		},
	}

	out, err := runCLI(t, fake, "uninstall", "my-skill", "--force")
	require.NoError(t, err)
	assert.Equal(t, "my-skill", gotName)
	assert.True(t, gotForce)
	assert.Contains(t, out, "removed my-skill")
}

func TestCommands_Uninstall_Dependents(t *testing.T) {
	fake := &fakeApp{
		uninstallFunc: func(context.Context, string, bool) error {
			blocked := zerr.Wrap(domain.ErrHasDependents, "package is required by other locked packages")
			return zerr.With(blocked, "dependents", []string{"app-a", "app-b"})
		},
	}

	out, err := runCLI(t, fake, "uninstall", "shared-lib")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHasDependents)
	assert.Contains(t, out, "required by: [app-a app-b]")
	assert.Contains(t, out, "--force")
}

func TestCommands_Pack(t *testing.T) {
	fake := &fakeApp{
		packFunc: func(_ context.Context, pkgDir, destDir string) (*archive.BuildResult, error) {
			assert.Equal(t, "pkg", pkgDir)
			assert.Equal(t, "/tmp/out", destDir)
			return &archive.BuildResult{
				Path:     "/tmp/out/my-skill-1.0.0.tgz",
				Checksum: "sha256:abc",
				FileChecksums: &domain.FileChecksums{
					Files: map[string]domain.Digest{"skills/a.md": "sha256:def"},
				},
			}, nil
		},
	}

	out, err := runCLI(t, fake, "pack", "pkg", "--out", "/tmp/out")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote /tmp/out/my-skill-1.0.0.tgz")
	assert.Contains(t, out, "1 file(s) packaged")
}

func TestCommands_Publish(t *testing.T) {
	var gotArchive, gotRegistry string
	fake := &fakeApp{
		publishFunc: func(_ context.Context, archivePath, registryName string) error {
			gotArchive = archivePath
			gotRegistry = registryName
			return nil
		},
	}

	out, err := runCLI(t, fake, "publish", "my-skill-1.0.0.tgz", "--registry", "staging")
	require.NoError(t, err)
	assert.Equal(t, "my-skill-1.0.0.tgz", gotArchive)
	assert.Equal(t, "staging", gotRegistry)
	assert.Contains(t, out, "published my-skill-1.0.0.tgz")
}

func TestCommands_Search(t *testing.T) {
	fake := &fakeApp{
		searchFunc: func(_ context.Context, query string) ([]domain.IndexEntry, error) {
			assert.Equal(t, "linter", query)
			return []domain.IndexEntry{
				{Name: "linter-core", Latest: "1.2.0", Registry: "local", Description: "Lints things"},
			}, nil
		},
	}

	out, err := runCLI(t, fake, "search", "linter")
	require.NoError(t, err)
	assert.Contains(t, out, "linter-core")
	assert.Contains(t, out, "1.2.0")

	fake = &fakeApp{}
	out, err = runCLI(t, fake, "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "no packages found")
}

func TestCommands_Info(t *testing.T) {
	fake := &fakeApp{
		infoFunc: func(_ context.Context, name string) (*app.InfoResult, error) {
			return &app.InfoResult{
				Metadata: &domain.PackageMetadata{
					Name:        name,
					Description: "Reviews diffs",
					Versions:    []domain.VersionInfo{{Version: "1.2.0"}, {Version: "1.0.0"}},
				},
				Registry: "local",
				Locked:   &domain.LockEntry{Version: "1.0.0", Source: "local"},
			}, nil
		},
	}

	out, err := runCLI(t, fake, "info", "@acme/reviewer")
	require.NoError(t, err)
	assert.Contains(t, out, "@acme/reviewer")
	assert.Contains(t, out, "1.2.0, 1.0.0")
	assert.Contains(t, out, "installed:   1.0.0 (from local)")
}

func TestCommands_Verify(t *testing.T) {
	t.Run("single package clean", func(t *testing.T) {
		fake := &fakeApp{
			verifyFunc: func(_ context.Context, name string) (domain.VerificationReport, error) {
				return domain.VerificationReport{
					Package:      name,
					HasChecksums: true,
					Intact:       []string{"skills/a.md"},
				}, nil
			},
		}
		out, err := runCLI(t, fake, "verify", "my-skill")
		require.NoError(t, err)
		assert.Contains(t, out, "my-skill: ok (1 files)")
	})

	t.Run("single package dirty fails", func(t *testing.T) {
		fake := &fakeApp{
			verifyFunc: func(_ context.Context, name string) (domain.VerificationReport, error) {
				return domain.VerificationReport{
					Package:      name,
					HasChecksums: true,
					Modified:     []string{"skills/a.md"},
				}, nil
			},
		}
		out, err := runCLI(t, fake, "verify", "my-skill")
		require.Error(t, err)
		assert.Contains(t, out, "modified:  skills/a.md")
	})

	t.Run("sweep reports counters", func(t *testing.T) {
		fake := &fakeApp{
			verifyAllFunc: func(context.Context) (domain.AggregateReport, error) {
				return domain.AggregateReport{
					Reports: []domain.VerificationReport{
						{Package: "a", HasChecksums: true, Intact: []string{"x"}},
						{Package: "b"},
					},
					Clean:   1,
					Skipped: 1,
				}, nil
			},
		}
		out, err := runCLI(t, fake, "verify")
		require.NoError(t, err)
		assert.Contains(t, out, "1 clean, 0 dirty, 1 skipped")
		assert.Contains(t, out, "b: no recorded checksums, skipped")
	})
}

func TestCommands_Status(t *testing.T) {
	fake := &fakeApp{
		statusFunc: func(string) (lockmgr.Drift, error) {
			return lockmgr.Drift{Added: []string{"new-dep"}}, nil
		},
	}

	out, err := runCLI(t, fake, "status", "--dir", "/tmp/project")
	require.NoError(t, err)
	assert.Contains(t, out, "not locked:          new-dep")
	assert.Contains(t, out, "run 'apm install' to reconcile")
}
