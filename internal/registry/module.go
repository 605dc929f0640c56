package registry

import (
	"time"

	"github.com/woxQAQ/wasmfaas/internal/capability"
	"github.com/woxQAQ/wasmfaas/internal/manifest"
	"github.com/woxQAQ/wasmfaas/internal/pool"
	"github.com/woxQAQ/wasmfaas/internal/wasm"
)

// Module is a deployed unit of sandboxed code: immutable manifest,
// compiled binary, resolved capability broker, and the instance pool
// serving it. Created by the Loader, owned by the Registry.
type Module struct {
	// Name is the stable identifier requests address.
	Name string

	// Digest is the sha256 content address of the Wasm artifact.
	Digest string

	Manifest *manifest.Manifest
	Engine   *wasm.Engine
	Broker   *capability.Broker
	Pool     *pool.Pool

	LoadedAt time.Time
}

// Retire drains the module: no new checkouts, idle instances destroyed
// now, busy ones when their request completes. The engine is closed by
// the pool's drain callback once the last instance is gone.
func (m *Module) Retire() {
	if m.Pool != nil {
		m.Pool.Retire()
	}
}
