// Package config carries the runtime settings shared by the adapters and
// engines. A single Config is built at startup and handed to constructors;
// nothing reads the environment after that.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/agentpkg/apm/internal/core/domain"
)

const (
	// DefaultRegistryName is the name of the default registry backend.
	DefaultRegistryName = "local"

	// DefaultInstallDir is the per-project directory packages install into.
	DefaultInstallDir = "apm_packages"

	// DefaultRegistryTimeout bounds each individual registry call.
	DefaultRegistryTimeout = 30 * time.Second
)

// RegistryEntry names one registry backend and its filesystem root.
type RegistryEntry struct {
	Name string
	Root string
}

// Config is the runtime configuration for one apm invocation.
type Config struct {
	// InstallDir is the per-project directory packages install into.
	InstallDir string

	// LockPath is the location of the lock document.
	LockPath string

	// Registries lists the configured backends in priority order. During
	// resolution the first registry that can satisfy a request wins.
	Registries []RegistryEntry

	// RegistryTimeout bounds each individual registry call; zero disables
	// the bound.
	RegistryTimeout time.Duration

	// Parallelism bounds concurrent downloads and tree hashing.
	Parallelism int
}

// Default builds the configuration for the current working directory.
// APM_REGISTRY overrides the registry roots; it may hold several paths
// separated by the OS path list separator, consulted in order.
func Default() *Config {
	return &Config{
		InstallDir:      DefaultInstallDir,
		LockPath:        domain.LockfileName,
		Registries:      registriesFromEnv(os.Getenv("APM_REGISTRY")),
		RegistryTimeout: DefaultRegistryTimeout,
		Parallelism:     runtime.NumCPU(),
	}
}

// registriesFromEnv turns the APM_REGISTRY value into an ordered registry
// list. The first root keeps the default name; additional roots get an
// indexed name so each backend stays individually addressable.
func registriesFromEnv(env string) []RegistryEntry {
	roots := filepath.SplitList(env)
	if len(roots) == 0 {
		return []RegistryEntry{{Name: DefaultRegistryName, Root: defaultRoot()}}
	}

	entries := make([]RegistryEntry, 0, len(roots))
	for i, root := range roots {
		name := DefaultRegistryName
		if i > 0 {
			name = fmt.Sprintf("%s-%d", DefaultRegistryName, i+1)
		}
		entries = append(entries, RegistryEntry{Name: name, Root: root})
	}
	return entries
}

// defaultRoot is ~/.apm/registry, or a relative fallback when the home
// directory cannot be determined.
func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".apm", "registry")
	}
	return filepath.Join(home, ".apm", "registry")
}
