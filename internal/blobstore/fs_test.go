package blobstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/services"
)

func newFS(t *testing.T) *blobstore.FS {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.MediaDir = filepath.Join(t.TempDir(), "media")
	store, err := blobstore.NewFS(&cfg)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	return store
}

func TestFSPutGetDelete(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, "2026/8/abc.mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ref != "2026/8/abc.mp4" {
		t.Fatalf("unexpected ref %q", ref)
	}

	data, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("unexpected bytes %q", data)
	}

	deleted, err := store.Delete(ctx, ref)
	if err != nil || !deleted {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = store.Delete(ctx, ref)
	if err != nil || deleted {
		t.Fatalf("second Delete = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestFSPutRejectsExisting(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "a/b.bin", []byte("one")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Put(ctx, "a/b.bin", []byte("two")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error on duplicate put, got %v", err)
	}
}

func TestFSGetRange(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()
	ref, err := store.Put(ctx, "clip.bin", []byte("0123456789"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, err := store.GetRange(ctx, ref, 2, 5)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if string(data) != "2345" {
		t.Fatalf("unexpected range %q", data)
	}

	// End past the blob size is clamped.
	data, err = store.GetRange(ctx, ref, 8, 100)
	if err != nil {
		t.Fatalf("clamped GetRange failed: %v", err)
	}
	if string(data) != "89" {
		t.Fatalf("unexpected clamped range %q", data)
	}

	if _, err := store.GetRange(ctx, ref, 50, 60); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for out-of-bounds start, got %v", err)
	}
}

func TestFSReplaceKeepsRef(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()
	ref, err := store.Put(ctx, "clip.mp4", []byte("original"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	newRef, err := store.Replace(ctx, ref, []byte("replaced"))
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if newRef != ref {
		t.Fatalf("ref changed on replace: %q -> %q", ref, newRef)
	}
	data, _ := store.Get(ctx, ref)
	if string(data) != "replaced" {
		t.Fatalf("unexpected bytes after replace %q", data)
	}

	if _, err := store.Replace(ctx, "missing.mp4", []byte("x")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on replace of missing ref, got %v", err)
	}
}

func TestFSRejectsEscapingRefs(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()
	outside := filepath.Join(filepath.Dir(store.Root()), "escape.bin")
	if _, err := store.Put(ctx, "../escape.bin", []byte("x")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := os.Stat(outside); err == nil {
		t.Fatal("blob escaped the store root")
	}
}
