package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasmfaas/internal/config"
	"github.com/woxQAQ/wasmfaas/internal/manifest"
	"github.com/woxQAQ/wasmfaas/internal/pool"
)

// guestBinary is a hand-assembled Wasm module exporting alloc, handle,
// and a one-page memory, with stub bodies that decline every request.
var guestBinary = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0c, 0x02,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x03, 0x03, 0x02, 0x00, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1b, 0x03,
	0x05, 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x06, 'h', 'a', 'n', 'd', 'l', 'e', 0x00, 0x01,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0a, 0x0b, 0x02,
	0x04, 0x00, 0x41, 0x00, 0x0b,
	0x04, 0x00, 0x42, 0x00, 0x0b,
}

const validManifest = `name: greeter
version: 1.0.0
wasm:
  file: module.wasm
capabilities:
  - kv
  - clock
limits:
  memory_pages: 16
  time_ceiling_ms: 5000
  max_instances: 4
env:
  GREETING: hello
`

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Scheduler: config.SchedulerConfig{GlobalConcurrency: 8, QueueDepth: 16, DefaultDeadlineMS: 1000},
		Pool:      config.PoolConfig{MaxIdle: 2, IdleTimeoutMS: 60000},
		Limits:    config.LimitsConfig{MaxMemoryPages: 1024, MaxTimeCeilingMS: 60000, MaxInstances: 64},
	}
}

func writeModule(t *testing.T, base, name, manifestYAML string, wasmBytes []byte) string {
	t.Helper()

	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifestYAML), 0o644); err != nil {
		t.Fatalf("WriteFile(manifest) error = %v", err)
	}
	if wasmBytes != nil {
		if err := os.WriteFile(filepath.Join(dir, "module.wasm"), wasmBytes, 0o644); err != nil {
			t.Fatalf("WriteFile(wasm) error = %v", err)
		}
	}
	return dir
}

func TestLoadBuildsModule(t *testing.T) {
	l := NewLoader(testConfig(), nil, zaptest.NewLogger(t))
	dir := writeModule(t, t.TempDir(), "greeter", validManifest, guestBinary)

	mod, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer mod.Retire()

	if mod.Name != "greeter" {
		t.Errorf("Name = %s, want greeter", mod.Name)
	}
	if len(mod.Digest) != 64 {
		t.Errorf("Digest = %q, want a sha256 hex string", mod.Digest)
	}
	if !mod.Manifest.Allows(manifest.CapabilityKV) {
		t.Error("manifest lost its kv grant")
	}

	// The pool instantiates real sandboxes from the compiled binary.
	entry, err := mod.Pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	out, err := entry.Sandbox().Invoke(context.Background(), []byte("{}"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != nil {
		t.Errorf("stub guest returned %v, want nil", out)
	}
	mod.Pool.Release(entry, pool.OutcomeClean)
}

func TestLoadRejectsInvalidBinary(t *testing.T) {
	l := NewLoader(testConfig(), nil, zaptest.NewLogger(t))
	dir := writeModule(t, t.TempDir(), "broken", validManifest, []byte("not wasm"))

	_, err := l.Load(context.Background(), dir)
	var lErr *LoadError
	if !errors.As(err, &lErr) {
		t.Fatalf("Load() error = %v, want LoadError", err)
	}
}

func TestLoadRejectsCeilingViolations(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxMemoryPages = 8

	l := NewLoader(cfg, nil, zaptest.NewLogger(t))
	dir := writeModule(t, t.TempDir(), "greedy", validManifest, guestBinary)

	_, err := l.Load(context.Background(), dir)
	var vErr *manifest.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Load() error = %v, want ValidationError", err)
	}
	if vErr.Field != "limits.memory_pages" {
		t.Errorf("Field = %s, want limits.memory_pages", vErr.Field)
	}
}

func TestDiscoverSkipsBadModules(t *testing.T) {
	base := t.TempDir()
	writeModule(t, base, "good", validManifest, guestBinary)
	writeModule(t, base, "bad", "name: bad\n", nil)

	l := NewLoader(testConfig(), nil, zaptest.NewLogger(t))
	modules, err := l.Discover(context.Background(), []string{base})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(modules) != 1 || modules[0].Name != "greeter" {
		t.Fatalf("Discover() = %d modules, want just greeter", len(modules))
	}
	modules[0].Retire()
}

func TestDiscoverEmpty(t *testing.T) {
	l := NewLoader(testConfig(), nil, zaptest.NewLogger(t))

	_, err := l.Discover(context.Background(), []string{t.TempDir(), "/nonexistent"})
	var nErr *NoModulesFoundError
	if !errors.As(err, &nErr) {
		t.Fatalf("Discover() error = %v, want NoModulesFoundError", err)
	}
}
