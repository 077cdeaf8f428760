package archive

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/adapters/checksum"
	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the archive packager Graft node.
const NodeID graft.ID = "adapter.archive.packager"

func init() {
	graft.Register(graft.Node[*Packager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{checksum.NodeID},
		Run: func(ctx context.Context) (*Packager, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewPackager(hasher), nil
		},
	})
}
