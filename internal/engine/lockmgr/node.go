package lockmgr

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/adapters/checksum"
	"github.com/agentpkg/apm/internal/adapters/lock"
	"github.com/agentpkg/apm/internal/config"
	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the lock manager Graft node.
const NodeID graft.ID = "engine.lockmgr"

func init() {
	graft.Register(graft.Node[*Manager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{lock.NodeID, checksum.NodeID, config.NodeID},
		Run: func(ctx context.Context) (*Manager, error) {
			store, err := graft.Dep[ports.LockStore](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(store, hasher, cfg.InstallDir), nil
		},
	})
}
