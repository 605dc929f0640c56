package capability

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasmfaas/internal/manifest"
)

// memKV is an in-memory KVStore for broker tests.
type memKV struct {
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, namespace, key string) (string, bool, error) {
	v, ok := m.data[namespace+"/"+key]
	return v, ok, nil
}

func (m *memKV) Put(_ context.Context, namespace, key, value string) error {
	m.data[namespace+"/"+key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, namespace, key string) error {
	delete(m.data, namespace+"/"+key)
	return nil
}

func (m *memKV) Close() error { return nil }

func testManifest(caps ...manifest.Capability) *manifest.Manifest {
	return &manifest.Manifest{
		Name:         "test-module",
		Version:      "1.0.0",
		Capabilities: caps,
		Env:          map[string]string{"REGION": "local"},
	}
}

func TestBrokerCheckExhaustive(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// For every subset boundary we care about: each capability granted
	// alone must be approved, and every other capability denied. The
	// manifest allow-set is the single source of truth.
	for _, granted := range manifest.Capabilities() {
		b := NewBroker(testManifest(granted), newMemKV(), logger)

		for _, c := range manifest.Capabilities() {
			err := b.Check(c)
			if c == granted && err != nil {
				t.Errorf("capability %s should be granted, got %v", c, err)
			}
			if c != granted && err == nil {
				t.Errorf("capability %s should be denied when only %s is granted", c, granted)
			}
		}
	}
}

func TestBrokerCheckDeniedError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(), newMemKV(), logger)

	err := b.Check(manifest.CapabilityHTTP)
	if err == nil {
		t.Fatal("expected denial")
	}

	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %T", err)
	}
	if denied.Module != "test-module" {
		t.Errorf("expected module 'test-module', got '%s'", denied.Module)
	}
	if denied.Capability != manifest.CapabilityHTTP {
		t.Errorf("expected capability http, got %s", denied.Capability)
	}
}

func TestBrokerAllowed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(manifest.CapabilityClock, manifest.CapabilityKV), newMemKV(), logger)

	allowed := b.Allowed()
	if len(allowed) != 2 {
		t.Fatalf("expected 2 allowed capabilities, got %d", len(allowed))
	}
	// Allowed() follows the canonical enumeration order.
	if allowed[0] != manifest.CapabilityKV || allowed[1] != manifest.CapabilityClock {
		t.Errorf("unexpected allow-set order: %v", allowed)
	}
}

func TestSessionGrantCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(manifest.CapabilityKV), newMemKV(), logger)
	s := b.NewSession("req-1")

	// Same answer before and after caching.
	if err := s.Check(manifest.CapabilityKV); err != nil {
		t.Errorf("first kv check failed: %v", err)
	}
	if err := s.Check(manifest.CapabilityKV); err != nil {
		t.Errorf("cached kv check failed: %v", err)
	}

	if err := s.Check(manifest.CapabilityHTTP); err == nil {
		t.Error("http check should be denied")
	}
	if err := s.Check(manifest.CapabilityHTTP); err == nil {
		t.Error("cached http check should be denied")
	}

	// A denial is recorded once per capability, not per attempt.
	denied := s.Denied()
	if len(denied) != 1 || denied[0] != manifest.CapabilityHTTP {
		t.Errorf("expected denied list [http], got %v", denied)
	}
}

func TestSessionKV(t *testing.T) {
	logger := zaptest.NewLogger(t)
	kv := newMemKV()
	b := NewBroker(testManifest(manifest.CapabilityKV), kv, logger)
	s := b.NewSession("req-1")
	ctx := context.Background()

	if _, found, err := s.KVGet(ctx, "missing"); err != nil || found {
		t.Errorf("expected miss, got found=%v err=%v", found, err)
	}

	if err := s.KVPut(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("KVPut failed: %v", err)
	}

	v, found, err := s.KVGet(ctx, "greeting")
	if err != nil || !found || v != "hello" {
		t.Errorf("expected ('hello', true), got ('%s', %v) err=%v", v, found, err)
	}

	// Values land in the module's own namespace.
	if _, ok := kv.data["test-module/greeting"]; !ok {
		t.Error("value not stored under module namespace")
	}
}

func TestSessionDeniedBackends(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(), newMemKV(), logger)
	s := b.NewSession("req-1")
	ctx := context.Background()

	var denied *DeniedError

	if _, _, err := s.KVGet(ctx, "k"); !errors.As(err, &denied) {
		t.Errorf("KVGet: expected DeniedError, got %v", err)
	}
	if err := s.KVPut(ctx, "k", "v"); !errors.As(err, &denied) {
		t.Errorf("KVPut: expected DeniedError, got %v", err)
	}
	if _, _, err := s.HTTPGet(ctx, "http://localhost/"); !errors.As(err, &denied) {
		t.Errorf("HTTPGet: expected DeniedError, got %v", err)
	}
	if _, _, err := s.ConfigGet("REGION"); !errors.As(err, &denied) {
		t.Errorf("ConfigGet: expected DeniedError, got %v", err)
	}
	if _, err := s.NowMS(); !errors.As(err, &denied) {
		t.Errorf("NowMS: expected DeniedError, got %v", err)
	}
	if _, err := s.RandomBytes(8); !errors.As(err, &denied) {
		t.Errorf("RandomBytes: expected DeniedError, got %v", err)
	}
}

func TestSessionClockAndRandom(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(manifest.CapabilityClock, manifest.CapabilityRandom), newMemKV(), logger)
	s := b.NewSession("req-1")

	ms, err := s.NowMS()
	if err != nil {
		t.Fatalf("NowMS failed: %v", err)
	}
	if ms <= 0 {
		t.Errorf("expected positive timestamp, got %d", ms)
	}

	buf, err := s.RandomBytes(16)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(buf) != 16 {
		t.Errorf("expected 16 random bytes, got %d", len(buf))
	}
}

func TestSessionConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(manifest.CapabilityConfig), newMemKV(), logger)
	s := b.NewSession("req-1")

	v, found, err := s.ConfigGet("REGION")
	if err != nil || !found || v != "local" {
		t.Errorf("expected ('local', true), got ('%s', %v) err=%v", v, found, err)
	}

	if _, found, _ := s.ConfigGet("MISSING"); found {
		t.Error("expected miss for undeclared env key")
	}
}

func TestSessionResponseWrite(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := NewBroker(testManifest(), newMemKV(), logger)
	s := b.NewSession("req-1")

	if _, _, set := s.Response(); set {
		t.Error("response should not be set before WriteResponse")
	}

	// Foundational: works even with an empty allow-set.
	s.WriteResponse(201, []byte("created"))

	status, body, set := s.Response()
	if !set {
		t.Fatal("response should be set")
	}
	if status != 201 || string(body) != "created" {
		t.Errorf("unexpected response: %d %q", status, body)
	}
}
