package capability

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestKV(t *testing.T) *SQLiteKV {
	t.Helper()

	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKVPutGet(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if _, found, err := kv.Get(ctx, "mod-a", "k"); err != nil || found {
		t.Errorf("expected miss, got found=%v err=%v", found, err)
	}

	if err := kv.Put(ctx, "mod-a", "k", "v1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	v, found, err := kv.Get(ctx, "mod-a", "k")
	if err != nil || !found || v != "v1" {
		t.Errorf("expected ('v1', true), got ('%s', %v) err=%v", v, found, err)
	}

	// Upsert overwrites.
	if err := kv.Put(ctx, "mod-a", "k", "v2"); err != nil {
		t.Fatalf("Put (update) failed: %v", err)
	}
	v, _, _ = kv.Get(ctx, "mod-a", "k")
	if v != "v2" {
		t.Errorf("expected 'v2' after update, got '%s'", v)
	}
}

func TestSQLiteKVNamespaceIsolation(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "mod-a", "shared-key", "a"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(ctx, "mod-b", "shared-key", "b"); err != nil {
		t.Fatal(err)
	}

	va, _, _ := kv.Get(ctx, "mod-a", "shared-key")
	vb, _, _ := kv.Get(ctx, "mod-b", "shared-key")
	if va != "a" || vb != "b" {
		t.Errorf("namespace leak: mod-a='%s' mod-b='%s'", va, vb)
	}
}

func TestSQLiteKVDelete(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "mod-a", "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Delete(ctx, "mod-a", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := kv.Get(ctx, "mod-a", "k"); found {
		t.Error("key should be gone after delete")
	}

	// Deleting a missing key is not an error.
	if err := kv.Delete(ctx, "mod-a", "missing"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}
