package commands

import (
	"context"

	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/app"
	"github.com/agentpkg/apm/internal/core/domain"
	"github.com/agentpkg/apm/internal/engine/lockmgr"
)

// Application is the surface the commands need from the application layer.
// Declared here so tests can substitute a fake.
type Application interface {
	Install(ctx context.Context, projectDir string, extras []string) (*app.InstallResult, error)
	Uninstall(ctx context.Context, name string, force bool) error
	Pack(ctx context.Context, pkgDir, destDir string) (*archive.BuildResult, error)
	Publish(ctx context.Context, archivePath, registryName string) error
	Search(ctx context.Context, query string) ([]domain.IndexEntry, error)
	Info(ctx context.Context, name string) (*app.InfoResult, error)
	Verify(ctx context.Context, name string) (domain.VerificationReport, error)
	VerifyAll(ctx context.Context) (domain.AggregateReport, error)
	Status(projectDir string) (lockmgr.Drift, error)
}
