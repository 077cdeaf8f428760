package fetcher

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/adapters/registry/local"
	"github.com/agentpkg/apm/internal/config"
	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the fetcher Graft node.
const NodeID graft.ID = "engine.fetcher"

func init() {
	graft.Register(graft.Node[*Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{local.NodeID, config.NodeID},
		Run: func(ctx context.Context) (*Fetcher, error) {
			registries, err := graft.Dep[[]ports.Registry](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return New(registries, cfg.Parallelism, cfg.RegistryTimeout), nil
		},
	})
}
