package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/wasmhost"
)

// runGuest instantiates a core module that imports the bridge host module
// and runs its _start function.
func runGuest(ctx context.Context, path string, memPages uint32, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	cfg := wasmhost.DefaultConfig()
	cfg.MemoryLimitPages = memPages
	rt := wasmhost.NewRuntime(ctx, cfg)
	defer rt.Close(ctx)

	s, err := wasmhost.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("load bridge: %w", err)
	}
	defer s.Close()

	if _, err := wasmhost.Instantiate(ctx, rt, s); err != nil {
		return err
	}

	modCfg := wazero.NewModuleConfig().
		WithName(filepath.Base(path)).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithStartFunctions("_start")
	mod, err := rt.InstantiateWithConfig(ctx, data, modCfg)
	if err != nil {
		return fmt.Errorf("run guest: %w", err)
	}
	defer mod.Close(ctx)

	if n := s.Refs(); n > 0 {
		log.Warn("guest left heap references", zap.Int("refs", n))
	}
	return nil
}
