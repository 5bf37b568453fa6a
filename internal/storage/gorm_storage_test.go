package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestGormStorage_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "bill.db")
	st, err := NewGormStorage("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewGormStorage failed: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	exerciseStorage(t, st)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*MemoryStorage); !ok {
		t.Fatalf("memory: unexpected type %T", st)
	}

	st, err = Open(ctx, Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if _, ok := st.(*FileStorage); !ok {
		t.Fatalf("default driver should be json files, got %T", st)
	}

	st, err = Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("sqlite ping: %v", err)
	}

	if _, err := Open(ctx, Config{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
