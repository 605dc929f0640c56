package wasm

import (
	"context"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// HostModuleName is the import namespace guests use for host calls.
const HostModuleName = "wasmfaas"

// Guest exports every module must provide.
const (
	GuestHandle = "handle"
	GuestAlloc  = "alloc"
)

// HostExporter registers host functions on a host module builder.
// Implemented by the capability broker; the engine itself stays
// policy-free.
type HostExporter interface {
	ExportHostFunctions(builder wazero.HostModuleBuilder)
}

// EngineConfig holds per-module engine configuration.
type EngineConfig struct {
	// ModuleName identifies the module in logs.
	ModuleName string

	// MemoryPages is the memory ceiling per instance (64KB pages).
	// Enforced by wazero; a guest growing past it traps.
	MemoryPages uint32
}

// Engine owns one wazero.Runtime per module. A dedicated runtime per
// module keeps the memory ceiling and host bindings isolated: no
// implicit capability inheritance between modules is possible because
// they never share an import namespace.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cfg      *EngineConfig
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewEngine creates a wazero runtime for one module.
// WithCloseOnContextDone is enabled so an expired request context
// force-terminates in-flight guest execution.
func NewEngine(ctx context.Context, logger *zap.Logger, cfg *EngineConfig) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	return &Engine{
		runtime: r,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "wasm-engine"), zap.String("module", cfg.ModuleName)),
	}, nil
}

// Compile validates and compiles the Wasm binary. Compilation never
// executes guest code. The compiled module must export the handle and
// alloc entry points.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) error {
	startTime := time.Now()

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return &CompilationError{
			ModuleName: e.cfg.ModuleName,
			Err:        err,
		}
	}

	exports := compiled.ExportedFunctions()
	for _, name := range []string{GuestHandle, GuestAlloc} {
		if _, ok := exports[name]; !ok {
			_ = compiled.Close(ctx)
			return &MissingExportError{
				ModuleName: e.cfg.ModuleName,
				Export:     name,
			}
		}
	}

	e.compiled = compiled

	e.logger.Info("Module compiled",
		zap.Int("size_bytes", len(wasmBytes)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return nil
}

// BindHost instantiates the host module exposing the host-call ABI.
// Must be called once, after Compile and before Instantiate.
func (e *Engine) BindHost(ctx context.Context, exporter HostExporter) error {
	builder := e.runtime.NewHostModuleBuilder(HostModuleName)
	exporter.ExportHostFunctions(builder)

	if _, err := builder.Instantiate(ctx); err != nil {
		return &HostBindError{
			ModuleName: e.cfg.ModuleName,
			Err:        err,
		}
	}

	return nil
}

// Close releases the runtime and all its instances.
// Safe to call multiple times (idempotent).
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.closeErr = e.runtime.Close(ctx)
		e.logger.Info("Engine closed")
	})
	return e.closeErr
}
