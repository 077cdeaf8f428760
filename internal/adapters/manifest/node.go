package manifest

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/agentpkg/apm/internal/core/ports"
)

// NodeID is the unique identifier for the manifest loader Graft node.
const NodeID graft.ID = "adapter.manifest.loader"

func init() {
	graft.Register(graft.Node[ports.ManifestLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ManifestLoader, error) {
			return NewFileLoader(), nil
		},
	})
}
