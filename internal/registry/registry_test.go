package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasmfaas/internal/pool"
)

type stubSandbox struct {
	id string
}

func (s *stubSandbox) ID() string { return s.id }

func (s *stubSandbox) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func (s *stubSandbox) Close(ctx context.Context) error { return nil }

func testModule(t *testing.T, name, digest string, onDrained func()) *Module {
	t.Helper()

	p := pool.New(pool.Config{
		Module:       name,
		MaxInstances: 2,
		MaxIdle:      2,
		OnDrained:    onDrained,
	}, func(ctx context.Context) (pool.Sandbox, error) {
		return &stubSandbox{id: uuid.New().String()}, nil
	}, zaptest.NewLogger(t))

	return &Module{
		Name:     name,
		Digest:   digest,
		Pool:     p,
		LoadedAt: time.Now(),
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	m := testModule(t, "hello", "abc123", nil)
	if err := r.Register(m); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Get("hello")
	if !ok {
		t.Fatal("Get() did not find registered module")
	}
	if got.Digest != "abc123" {
		t.Errorf("Get() digest = %s, want abc123", got.Digest)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get() found a module that was never registered")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	if err := r.Register(testModule(t, "hello", "v1", nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.Register(testModule(t, "hello", "v2", nil))
	var dupErr *AlreadyRegisteredError
	if !errors.As(err, &dupErr) {
		t.Fatalf("Register() error = %v, want AlreadyRegisteredError", err)
	}
	if dupErr.Module != "hello" {
		t.Errorf("AlreadyRegisteredError.Module = %s, want hello", dupErr.Module)
	}
}

func TestReplaceDrainsOldVersion(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	drained := make(chan struct{})
	old := testModule(t, "hello", "v1", func() { close(drained) })
	if err := r.Register(old); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Old version has a request in flight when the swap happens.
	entry, err := old.Pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	r.Replace(testModule(t, "hello", "v2", nil))

	got, ok := r.Get("hello")
	if !ok || got.Digest != "v2" {
		t.Fatalf("Get() after Replace = %+v, want digest v2", got)
	}

	select {
	case <-drained:
		t.Fatal("old version drained while a request was still in flight")
	default:
	}

	// The in-flight request finishes on the old version.
	old.Pool.Release(entry, pool.OutcomeClean)

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("old version never drained after last release")
	}
}

func TestReplaceWithoutPrevious(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	r.Replace(testModule(t, "hello", "v1", nil))

	if _, ok := r.Get("hello"); !ok {
		t.Fatal("Replace() did not register a previously unknown module")
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	drained := make(chan struct{})
	if err := r.Register(testModule(t, "hello", "v1", func() { close(drained) })); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Unregister("hello"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Unregister() did not retire the module")
	}

	if _, ok := r.Get("hello"); ok {
		t.Error("Get() found module after Unregister()")
	}

	err := r.Unregister("hello")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("Unregister() error = %v, want NotFoundError", err)
	}
}

func TestListSortedByName(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	for _, name := range []string{"zeta", "alpha", "mango"} {
		if err := r.Register(testModule(t, name, "d", nil)); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}

	list := r.List()
	want := []string{"alpha", "mango", "zeta"}
	for i, m := range list {
		if m.Name != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, m.Name, want[i])
		}
	}
}

func TestRetireAll(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	done := make(chan string, 2)
	for _, name := range []string{"a", "b"} {
		n := name
		if err := r.Register(testModule(t, n, "d", func() { done <- n })); err != nil {
			t.Fatalf("Register(%s) error = %v", n, err)
		}
	}

	r.RetireAll()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("RetireAll() did not drain every module")
		}
	}
}
