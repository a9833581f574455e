package storage

import (
	"context"
	"path/filepath"
	"testing"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(config.SqliteConfig{
		Dsn:    filepath.Join(t.TempDir(), "kv.sqlite3"),
		Prefix: "test_",
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testKVContract(t *testing.T, kv KV) {
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v err %v, want absent", ok, err)
	}

	wrote, err := kv.SetIfAbsent(ctx, "url", "https://a.test")
	if err != nil || !wrote {
		t.Fatalf("first SetIfAbsent = %v, %v; want true", wrote, err)
	}
	wrote, err = kv.SetIfAbsent(ctx, "url", "https://b.test")
	if err != nil || wrote {
		t.Fatalf("second SetIfAbsent = %v, %v; want false", wrote, err)
	}
	if v, ok, _ := kv.Get(ctx, "url"); !ok || v != "https://a.test" {
		t.Fatalf("Get(url) = %q %v, want first value", v, ok)
	}

	if err := kv.Set(ctx, "url", "https://c.test"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "url"); v != "https://c.test" {
		t.Fatalf("Get after Set = %q", v)
	}

	if err := kv.Delete(ctx, "url"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "url"); ok {
		t.Fatal("key still present after Delete")
	}
	if err := kv.Delete(ctx, "url"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

func TestSQLStoreContract(t *testing.T) {
	testKVContract(t, openTestStore(t))
}

func TestMemoryStoreContract(t *testing.T) {
	testKVContract(t, NewMemoryStore())
}

func TestSQLStorePersistsAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reopen.sqlite3")
	cfg := config.SqliteConfig{Dsn: dsn, Prefix: "test_"}
	ctx := context.Background()

	s, err := Open(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.SetIfAbsent(ctx, "k", "v"); err != nil {
		t.Fatalf("SetIfAbsent: %v", err)
	}
	_ = s.Close()

	s2, err := Open(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, ok, _ := s2.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("value lost across reopen: %q %v", v, ok)
	}
}
