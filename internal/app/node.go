package app

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/adapters/archive"
	"github.com/agentpkg/apm/internal/adapters/logger"
	"github.com/agentpkg/apm/internal/adapters/manifest"
	"github.com/agentpkg/apm/internal/adapters/registry/local"
	"github.com/agentpkg/apm/internal/core/ports"
	"github.com/agentpkg/apm/internal/engine/fetcher"
	"github.com/agentpkg/apm/internal/engine/lockmgr"
	"github.com/agentpkg/apm/internal/engine/resolver"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles the application with the collaborators the command
// layer needs direct access to.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			manifest.NodeID,
			local.NodeID,
			resolver.NodeID,
			fetcher.NodeID,
			archive.NodeID,
			lockmgr.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{AppNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: application, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ManifestLoader](ctx)
	if err != nil {
		return nil, err
	}
	registries, err := graft.Dep[[]ports.Registry](ctx)
	if err != nil {
		return nil, err
	}
	res, err := graft.Dep[*resolver.Resolver](ctx)
	if err != nil {
		return nil, err
	}
	fet, err := graft.Dep[*fetcher.Fetcher](ctx)
	if err != nil {
		return nil, err
	}
	packager, err := graft.Dep[*archive.Packager](ctx)
	if err != nil {
		return nil, err
	}
	lockMgr, err := graft.Dep[*lockmgr.Manager](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, registries, res, fet, packager, lockMgr, log), nil
}
