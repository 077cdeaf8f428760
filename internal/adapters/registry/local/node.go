package local

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/adapters/checksum"
	"github.com/agentpkg/apm/internal/config"
	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the registry list Graft node.
const NodeID graft.ID = "adapter.registry.local"

func init() {
	graft.Register(graft.Node[[]ports.Registry]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{checksum.NodeID, config.NodeID},
		Run: func(ctx context.Context) ([]ports.Registry, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}

			registries := make([]ports.Registry, 0, len(cfg.Registries))
			for _, entry := range cfg.Registries {
				registries = append(registries, New(entry.Name, entry.Root, hasher))
			}
			return registries, nil
		},
	})
}
