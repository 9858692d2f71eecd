package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	key, err := store.Write(ctx, "uploads/abc.png", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "uploads/abc.png" {
		t.Fatalf("key = %q, want uploads/abc.png", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("read back %q", data)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"../escape.txt", "a/../../escape.txt", "", "."} {
		if _, err := store.Write(ctx, key, []byte("x")); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestPathStaysUnderRoot(t *testing.T) {
	store := newTestStore(t)
	path, err := store.Path("results/sprites_a.zip")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if want := filepath.Join(store.BasePath(), "results", "sprites_a.zip"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestScratchLifecycle(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateScratch("task-1")
	if err != nil {
		t.Fatalf("create scratch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed scratch: %v", err)
	}

	// Re-creating resets the directory.
	dir2, err := store.CreateScratch("task-1")
	if err != nil {
		t.Fatalf("recreate scratch: %v", err)
	}
	if dir2 != dir {
		t.Fatalf("scratch moved: %q vs %q", dir2, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "stale.txt")); !os.IsNotExist(err) {
		t.Fatalf("recreate should empty the scratch directory")
	}

	if err := store.RemoveScratch("task-1"); err != nil {
		t.Fatalf("remove scratch: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("scratch directory should be gone")
	}

	// Removing again is a no-op, not an error.
	if err := store.RemoveScratch("task-1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
