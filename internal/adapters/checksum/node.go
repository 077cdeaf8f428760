package checksum

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the checksum hasher Graft node.
const NodeID graft.ID = "adapter.checksum.hasher"

func init() {
	graft.Register(graft.Node[ports.Hasher]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Hasher, error) {
			return NewHasher(), nil
		},
	})
}
