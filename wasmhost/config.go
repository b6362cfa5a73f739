package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/clp-ffi/bridge"
)

// DefaultModuleName is the import module name guests link against.
const DefaultModuleName = "clp:ffi/bridge@0.1.0"

// Config holds configuration for a host module.
type Config struct {
	// ModuleName overrides DefaultModuleName.
	ModuleName string

	// MemoryLimitPages sets the maximum memory per guest instance in pages
	// (64KB each) for runtimes made by NewRuntime. 0 means the wazero default.
	MemoryLimitPages uint32

	Bridge bridge.Config
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		ModuleName: DefaultModuleName,
		Bridge:     bridge.DefaultConfig(),
	}
}

func (c Config) moduleName() string {
	if c.ModuleName == "" {
		return DefaultModuleName
	}
	return c.ModuleName
}

// NewRuntime creates a wazero runtime honoring cfg.MemoryLimitPages.
func NewRuntime(ctx context.Context, cfg Config) wazero.Runtime {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
}
