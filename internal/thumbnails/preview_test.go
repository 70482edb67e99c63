package thumbnails_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"reel/internal/blobstore"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/testsupport"
	"reel/internal/thumbnails"
)

func TestPreviewFromUploadedImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "aa11", "2026/8/28/aa11.mp4")
	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())

	thumb, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Image: []byte("png-bytes")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if thumb.Filename != "aa11_thumbnail.png" {
		t.Fatalf("filename = %q", thumb.Filename)
	}
	stored, err := blobs.Get(ctx, thumb.StorageRef)
	if err != nil {
		t.Fatalf("preview blob missing: %v", err)
	}
	if !bytes.Equal(stored, []byte("png-bytes")) {
		t.Fatalf("stored = %q", stored)
	}

	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PreviewThumbnail == nil || got.PreviewThumbnail.StorageRef != thumb.StorageRef {
		t.Fatalf("document preview = %+v", got.PreviewThumbnail)
	}
}

func TestPreviewFromCapturedFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	ref, err := blobs.Put(ctx, "2026/8/28/bb22.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "bb22", ref)
	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())

	thumb, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Timestamp: 2.5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := blobs.Get(ctx, thumb.StorageRef)
	if err != nil {
		t.Fatalf("preview blob missing: %v", err)
	}
	if !bytes.Equal(stored, []byte("frame@2.50")) {
		t.Fatalf("stored = %q", stored)
	}
}

func TestPreviewReplacesExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "cc33", "2026/8/28/cc33.mp4")
	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())

	first, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Image: []byte("one")})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Image: []byte("two")})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.StorageRef != second.StorageRef {
		t.Fatalf("refs differ: %q vs %q", first.StorageRef, second.StorageRef)
	}
	if blobs.Len() != 1 {
		t.Fatalf("replace must not grow storage: %v", blobs.Refs())
	}
	stored, _ := blobs.Get(ctx, second.StorageRef)
	if !bytes.Equal(stored, []byte("two")) {
		t.Fatalf("stored = %q", stored)
	}
}

func TestPreviewOverwritesStaleBlob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	// A blob left behind at the target path, with no thumbnail recorded on
	// the document, must not block the preview.
	if _, err := blobs.Put(ctx, "2026/8/28/ee55_thumbnail.png", []byte("stale")); err != nil {
		t.Fatalf("seed stale blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "ee55", "2026/8/28/ee55.mp4")
	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())

	thumb, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Image: []byte("fresh")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if thumb.StorageRef != "2026/8/28/ee55_thumbnail.png" {
		t.Fatalf("ref = %q", thumb.StorageRef)
	}
	stored, err := blobs.Get(ctx, thumb.StorageRef)
	if err != nil {
		t.Fatalf("preview blob missing: %v", err)
	}
	if !bytes.Equal(stored, []byte("fresh")) {
		t.Fatalf("stored = %q", stored)
	}

	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PreviewThumbnail == nil || got.PreviewThumbnail.StorageRef != thumb.StorageRef {
		t.Fatalf("document preview = %+v", got.PreviewThumbnail)
	}
}

func TestPreviewRejectsWhileProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "dd44", "2026/8/28/dd44.mp4")
	if won, err := store.BeginProcessing(ctx, project.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	_, err := service.Run(ctx, project.ID, thumbnails.PreviewRequest{Image: []byte("png")})
	if !errors.Is(err, services.ErrAlreadyProcessing) {
		t.Fatalf("expected already-processing rejection, got %v", err)
	}
}

func TestPreviewUnknownProject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()

	service := thumbnails.NewPreviewService(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	_, err := service.Run(context.Background(), "nope", thumbnails.PreviewRequest{Image: []byte("png")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
