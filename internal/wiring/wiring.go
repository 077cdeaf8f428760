// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/agentpkg/apm/internal/adapters/archive"
	_ "github.com/agentpkg/apm/internal/adapters/checksum"
	_ "github.com/agentpkg/apm/internal/adapters/lock"
	_ "github.com/agentpkg/apm/internal/adapters/logger"
	_ "github.com/agentpkg/apm/internal/adapters/manifest"
	_ "github.com/agentpkg/apm/internal/adapters/registry/local"
	// Register app and engine nodes.
	_ "github.com/agentpkg/apm/internal/app"
	// Register the configuration node.
	_ "github.com/agentpkg/apm/internal/config"
	_ "github.com/agentpkg/apm/internal/engine/fetcher"
	_ "github.com/agentpkg/apm/internal/engine/lockmgr"
	_ "github.com/agentpkg/apm/internal/engine/resolver"
)
