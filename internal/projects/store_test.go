package projects_test

import (
	"context"
	"testing"

	"reel/internal/projects"
	"reel/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	ctx := context.Background()

	inserted := testsupport.NewProject(t, store, "aa11", "2026/8/28/aa11.mp4")

	got, err := store.GetByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored project")
	}
	if got.StorageRef != inserted.StorageRef {
		t.Fatalf("storage ref = %q, want %q", got.StorageRef, inserted.StorageRef)
	}
	if got.Metadata == nil || got.Metadata.CodecName != "h264" {
		t.Fatalf("metadata not preserved: %+v", got.Metadata)
	}
	if got.Processing {
		t.Fatal("new project must not be processing")
	}

	got.Thumbnails = map[string][]projects.Thumbnail{
		"2": {
			{Filename: "aa11_timeline_01.png", StorageRef: "2026/8/28/aa11_timeline_01.png", MimeType: "image/png"},
			{Filename: "aa11_timeline_02.png", StorageRef: "2026/8/28/aa11_timeline_02.png", MimeType: "image/png"},
		},
	}
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, err := store.GetByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if len(again.TimelineSet(2)) != 2 {
		t.Fatalf("timeline set not preserved: %+v", again.Thumbnails)
	}
	if refs := again.ThumbnailRefs(); len(refs) != 2 {
		t.Fatalf("thumbnail refs = %v", refs)
	}
}

func TestStoreGetMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)

	got, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing id, got %+v", got)
	}
}

func TestBeginProcessingIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "bb22", "2026/8/28/bb22.mp4")

	won, err := store.BeginProcessing(ctx, project.ID, false)
	if err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if !won {
		t.Fatal("first claim must win")
	}

	won, err = store.BeginProcessing(ctx, project.ID, false)
	if err != nil {
		t.Fatalf("BeginProcessing second: %v", err)
	}
	if won {
		t.Fatal("second claim must lose while flag is set")
	}

	if err := store.EndProcessing(ctx, project.ID); err != nil {
		t.Fatalf("EndProcessing: %v", err)
	}
	won, err = store.BeginProcessing(ctx, project.ID, false)
	if err != nil {
		t.Fatalf("BeginProcessing after release: %v", err)
	}
	if !won {
		t.Fatal("claim must win after flag released")
	}
}

func TestBeginProcessingClearsThumbnails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "cc33", "2026/8/28/cc33.mp4")
	project.Thumbnails = map[string][]projects.Thumbnail{
		"3": {{Filename: "cc33_timeline_01.png", StorageRef: "2026/8/28/cc33_timeline_01.png"}},
	}
	if err := store.Update(ctx, project); err != nil {
		t.Fatalf("Update: %v", err)
	}

	won, err := store.BeginProcessing(ctx, project.ID, true)
	if err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}
	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Processing {
		t.Fatal("processing flag must be set")
	}
	if len(got.Thumbnails) != 0 {
		t.Fatalf("thumbnails must be cleared, got %+v", got.Thumbnails)
	}
}

func TestInsertValidatesLineage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	ctx := context.Background()

	orphanFork := &projects.Project{ID: "dd44", Filename: "dd44.mp4", Version: 2}
	if err := store.Insert(ctx, orphanFork); err == nil {
		t.Fatal("fork without parent must be rejected")
	}

	parented := &projects.Project{ID: "ee55", Filename: "ee55.mp4", Version: 1, Parent: "dd44"}
	if err := store.Insert(ctx, parented); err == nil {
		t.Fatal("version 1 with parent must be rejected")
	}
}

func TestDeleteAndChildren(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	ctx := context.Background()

	parent := testsupport.NewProject(t, store, "ff66", "2026/8/28/ff66.mp4")
	fork := testsupport.NewFork(t, store, "gg77", parent)

	children, err := store.Children(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 1 || children[0].ID != fork.ID {
		t.Fatalf("children = %+v", children)
	}

	deleted, err := store.Delete(ctx, fork.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, fork.ID)
	if err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if deleted {
		t.Fatal("second delete must report absence")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
