package localdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenManager(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m, err := OpenManager(ctx, dir)
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	if m == nil || m.DB == nil {
		t.Fatalf("nil manager/db")
	}
	if _, err := os.Stat(filepath.Join(dir, "qvarnd-local.sqlite")); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSchemaHashRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenManager(context.Background(), dir)
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	defer m.Close()

	if _, ok, err := m.SchemaHash(); err != nil || ok {
		t.Fatalf("expected no stored hash yet, got ok=%v err=%v", ok, err)
	}
	if err := m.SetSchemaHash("abc123"); err != nil {
		t.Fatalf("set schema hash: %v", err)
	}
	got, ok, err := m.SchemaHash()
	if err != nil || !ok {
		t.Fatalf("schema hash: ok=%v err=%v", ok, err)
	}
	if got != "abc123" {
		t.Fatalf("got %q, want abc123", got)
	}
}

func TestListenerBookmark(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenManager(context.Background(), dir)
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	defer m.Close()

	if _, ok, err := m.ListenerBookmark("lid-1"); err != nil || ok {
		t.Fatalf("expected no bookmark yet, got ok=%v err=%v", ok, err)
	}
	if err := m.SetListenerBookmark("lid-1", "change-42"); err != nil {
		t.Fatalf("set bookmark: %v", err)
	}
	got, ok, err := m.ListenerBookmark("lid-1")
	if err != nil || !ok || got != "change-42" {
		t.Fatalf("got %q ok=%v err=%v, want change-42", got, ok, err)
	}
}
