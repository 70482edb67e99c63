package thumbnails_test

import (
	"context"
	"encoding/json"
	"testing"

	"reel/internal/blobstore"
	"reel/internal/logging"
	"reel/internal/taskqueue"
	"reel/internal/testsupport"
	"reel/internal/thumbnails"
)

func timelineJob(t *testing.T, projectID string, count int) *taskqueue.Job {
	t.Helper()
	payload, err := json.Marshal(thumbnails.TimelinePayload{Count: count})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &taskqueue.Job{
		ID:          1,
		Kind:        taskqueue.KindThumbnails,
		ProjectID:   projectID,
		Payload:     payload,
		Attempts:    1,
		MaxRetries: 3,
	}
}

func TestTimelinePublishesFullSet(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublicBaseURL("http://media.local"))
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	ref, err := blobs.Put(ctx, "2026/8/28/aa11.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "aa11", ref)
	if won, err := store.BeginProcessing(ctx, project.ID, true); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := thumbnails.NewTimelineOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	if err := orch.Execute(ctx, timelineJob(t, project.ID, 4)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Processing {
		t.Fatal("processing must be released")
	}
	set := got.TimelineSet(4)
	if len(set) != 4 {
		t.Fatalf("set size = %d, want 4", len(set))
	}
	if set[0].Filename != "aa11_timeline_00.png" || set[3].Filename != "aa11_timeline_03.png" {
		t.Fatalf("filenames = %q .. %q", set[0].Filename, set[3].Filename)
	}
	if set[0].URL != "http://media.local/2026/8/28/aa11_timeline_00.png" {
		t.Fatalf("url = %q", set[0].URL)
	}
	// Source plus four frames.
	if blobs.Len() != 5 {
		t.Fatalf("blob count = %d: %v", blobs.Len(), blobs.Refs())
	}
}

func TestTimelineFailureRemovesPartialFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	ref, err := blobs.Put(ctx, "2026/8/28/bb22.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "bb22", ref)
	if won, err := store.BeginProcessing(ctx, project.ID, true); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	editor := &testsupport.FakeEditor{FailFrameAt: 3}
	orch := thumbnails.NewTimelineOrchestrator(cfg, store, blobs, editor, logging.NewNop())
	if err := orch.Execute(ctx, timelineJob(t, project.ID, 5)); err == nil {
		t.Fatal("attempt must fail when the sequence errors")
	}

	if blobs.Len() != 1 {
		t.Fatalf("partial frames leaked: %v", blobs.Refs())
	}
	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Thumbnails) != 0 {
		t.Fatalf("no set may be visible after failure, got %+v", got.Thumbnails)
	}
}

func TestTimelineRollbackReleasesFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "cc33", "2026/8/28/cc33.mp4")
	if won, err := store.BeginProcessing(ctx, project.ID, true); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := thumbnails.NewTimelineOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	if err := orch.Rollback(ctx, timelineJob(t, project.ID, 5)); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Processing {
		t.Fatal("flag must be released")
	}
	if len(got.Thumbnails) != 0 {
		t.Fatalf("thumbnails must stay empty, got %+v", got.Thumbnails)
	}
}

func TestTimelineDefaultsCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Media.DefaultTimelineCount = 3
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	ref, err := blobs.Put(ctx, "2026/8/28/dd44.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "dd44", ref)
	if won, err := store.BeginProcessing(ctx, project.ID, true); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := thumbnails.NewTimelineOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	if err := orch.Execute(ctx, timelineJob(t, project.ID, 0)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.TimelineSet(3)) != 3 {
		t.Fatalf("default count set = %+v", got.Thumbnails)
	}
}
