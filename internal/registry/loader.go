package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/capability"
	"github.com/woxQAQ/wasmfaas/internal/config"
	"github.com/woxQAQ/wasmfaas/internal/manifest"
	"github.com/woxQAQ/wasmfaas/internal/pool"
	"github.com/woxQAQ/wasmfaas/internal/wasm"
)

// Loader builds deployable Modules from module directories: manifest
// validation, binary compilation, broker resolution, and pool wiring.
// Loading is validation only — no guest code runs until a request is
// dispatched.
type Loader struct {
	maxima  manifest.Maxima
	poolCfg config.PoolConfig
	kv      capability.KVStore
	logger  *zap.Logger
}

// NewLoader creates a module loader.
func NewLoader(cfg *config.ServerConfig, kv capability.KVStore, logger *zap.Logger) *Loader {
	return &Loader{
		maxima: manifest.Maxima{
			MemoryPages:   cfg.Limits.MaxMemoryPages,
			TimeCeilingMS: cfg.Limits.MaxTimeCeilingMS,
			MaxInstances:  cfg.Limits.MaxInstances,
		},
		poolCfg: cfg.Pool,
		kv:      kv,
		logger:  logger.With(zap.String("component", "module-loader")),
	}
}

// Load builds a Module from a directory holding manifest.yaml and the
// declared Wasm artifact.
func (l *Loader) Load(ctx context.Context, dir string) (*Module, error) {
	l.logger.Debug("Loading module", zap.String("dir", dir))

	m, err := manifest.ParseManifest(dir, l.maxima)
	if err != nil {
		return nil, err
	}

	wasmBytes, err := os.ReadFile(m.WasmPath())
	if err != nil {
		return nil, &LoadError{Module: m.Name, Err: err}
	}

	sum := sha256.Sum256(wasmBytes)
	digest := hex.EncodeToString(sum[:])

	engine, err := wasm.NewEngine(ctx, l.logger, &wasm.EngineConfig{
		ModuleName:  m.Name,
		MemoryPages: m.Limits.MemoryPages,
	})
	if err != nil {
		return nil, &LoadError{Module: m.Name, Err: err}
	}

	if err := engine.Compile(ctx, wasmBytes); err != nil {
		_ = engine.Close(ctx)
		return nil, &LoadError{Module: m.Name, Err: err}
	}

	broker := capability.NewBroker(m, l.kv, l.logger)

	if err := engine.BindHost(ctx, broker); err != nil {
		_ = engine.Close(ctx)
		return nil, &LoadError{Module: m.Name, Err: err}
	}

	p := pool.New(pool.Config{
		Module:        m.Name,
		MaxInstances:  m.Limits.MaxInstances,
		MaxIdle:       l.poolCfg.MaxIdle,
		IdleTimeout:   time.Duration(l.poolCfg.IdleTimeoutMS) * time.Millisecond,
		SweepInterval: time.Duration(l.poolCfg.SweepIntervalMS) * time.Millisecond,
		// The engine holds the drained pool's last resources; close it
		// only when every instance is gone.
		OnDrained: func() { _ = engine.Close(context.Background()) },
	}, func(ctx context.Context) (pool.Sandbox, error) {
		return engine.Instantiate(ctx)
	}, l.logger)

	l.logger.Info("Module loaded",
		zap.String("name", m.Name),
		zap.String("version", m.Version),
		zap.String("digest", digest),
		zap.Int("size_bytes", len(wasmBytes)),
		zap.Strings("capabilities", capabilityNames(m)),
	)

	return &Module{
		Name:     m.Name,
		Digest:   digest,
		Manifest: m,
		Engine:   engine,
		Broker:   broker,
		Pool:     p,
		LoadedAt: time.Now(),
	}, nil
}

// Discover scans directories for modules, one subdirectory each.
// Individual failures are logged and skipped so a single bad module
// cannot block the rest of a deployment.
func (l *Loader) Discover(ctx context.Context, paths []string) ([]*Module, error) {
	var modules []*Module
	var failed int

	for _, basePath := range paths {
		l.logger.Debug("Scanning module directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Module path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			moduleDir := filepath.Join(basePath, entry.Name())

			m, err := l.Load(ctx, moduleDir)
			if err != nil {
				l.logger.Error("Failed to load module",
					zap.String("dir", moduleDir),
					zap.Error(err),
				)
				failed++
				continue
			}

			modules = append(modules, m)
		}
	}

	if len(modules) > 0 && failed > 0 {
		l.logger.Warn("Some modules failed to load",
			zap.Int("loaded", len(modules)),
			zap.Int("failed", failed),
		)
	}

	if len(modules) == 0 {
		return nil, &NoModulesFoundError{Paths: paths}
	}

	return modules, nil
}

func capabilityNames(m *manifest.Manifest) []string {
	names := make([]string, len(m.Capabilities))
	for i, c := range m.Capabilities {
		names[i] = string(c)
	}
	return names
}
