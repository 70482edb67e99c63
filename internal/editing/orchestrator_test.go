package editing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"reel/internal/blobstore"
	"reel/internal/editing"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/testsupport"
	"reel/internal/videoeditor"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition never reached")
}

func editJob(t *testing.T, projectID, mode string, spec videoeditor.EditSpec, attempts, max int) *taskqueue.Job {
	t.Helper()
	payload, err := json.Marshal(editing.Payload{Mode: mode, Spec: spec})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &taskqueue.Job{
		ID:         1,
		Kind:       taskqueue.KindEdit,
		ProjectID:  projectID,
		Payload:    payload,
		Attempts:   attempts,
		MaxRetries: max,
	}
}

func TestForkEditCompletes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublicBaseURL("http://media.local"))
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	sourceRef, err := blobs.Put(ctx, "2026/8/28/aa11.mp4", []byte("original-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	parent := testsupport.NewProject(t, store, "aa11", sourceRef)
	fork := testsupport.NewFork(t, store, "bb22", parent)
	if won, err := store.BeginProcessing(ctx, fork.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	editor := &testsupport.FakeEditor{}
	orch := editing.NewOrchestrator(cfg, store, blobs, editor, logging.NewNop())

	spec := videoeditor.EditSpec{Cut: &videoeditor.CutSpec{Start: 5, End: 10}}
	if err := orch.Execute(ctx, editJob(t, fork.ID, editing.ModeFork, spec, 1, 3)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := store.GetByID(ctx, fork.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	wantRef := path.Join(fork.Folder, fork.Filename)
	if got.StorageRef != wantRef {
		t.Fatalf("storage ref = %q, want %q", got.StorageRef, wantRef)
	}
	if got.Processing {
		t.Fatal("processing must be released on success")
	}
	if got.Metadata == nil || got.Metadata.Duration != 5 {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
	if got.URL != "http://media.local/"+wantRef {
		t.Fatalf("url = %q", got.URL)
	}

	edited, err := blobs.Get(ctx, wantRef)
	if err != nil {
		t.Fatalf("fork blob missing: %v", err)
	}
	if !bytes.Contains(edited, []byte("original-bytes")) {
		t.Fatalf("fork blob content = %q", edited)
	}
	if original, _ := blobs.Get(ctx, sourceRef); !bytes.Equal(original, []byte("original-bytes")) {
		t.Fatal("parent blob must remain untouched")
	}
}

func TestInPlaceEditReplacesAndDropsDerivations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	ownRef, err := blobs.Put(ctx, "2026/8/28/cc33.mp4", []byte("fork-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	thumbRef, err := blobs.Put(ctx, "2026/8/28/cc33_timeline_01.png", []byte("thumb"))
	if err != nil {
		t.Fatalf("seed thumb: %v", err)
	}

	parent := testsupport.NewProject(t, store, "aa11", "2026/8/28/aa11.mp4")
	fork := testsupport.NewFork(t, store, "cc33", parent)
	fork.StorageRef = ownRef
	fork.Thumbnails = map[string][]projects.Thumbnail{
		"1": {{Filename: "cc33_timeline_01.png", StorageRef: thumbRef}},
	}
	if err := store.Update(ctx, fork); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if won, err := store.BeginProcessing(ctx, fork.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := editing.NewOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	spec := videoeditor.EditSpec{Rotate: &videoeditor.RotateSpec{Degree: 90}}
	if err := orch.Execute(ctx, editJob(t, fork.ID, editing.ModeInPlace, spec, 1, 3)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := store.GetByID(ctx, fork.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.StorageRef != ownRef {
		t.Fatalf("in-place edit must keep the pointer, got %q", got.StorageRef)
	}
	if len(got.Thumbnails) != 0 {
		t.Fatalf("stale thumbnails must be cleared, got %+v", got.Thumbnails)
	}
	if data, _ := blobs.Get(ctx, ownRef); !bytes.Contains(data, []byte("fork-bytes")) || bytes.Equal(data, []byte("fork-bytes")) {
		t.Fatalf("blob not replaced: %q", data)
	}
	if _, err := blobs.Get(ctx, thumbRef); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("stale thumbnail blob must be deleted, err=%v", err)
	}
}

func TestFailedForkAttemptLeavesNoBlob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	sourceRef, err := blobs.Put(ctx, "2026/8/28/aa11.mp4", []byte("original-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	parent := testsupport.NewProject(t, store, "aa11", sourceRef)
	fork := testsupport.NewFork(t, store, "dd44", parent)
	if won, err := store.BeginProcessing(ctx, fork.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	editor := &testsupport.FakeEditor{FailEditAttempts: 1}
	orch := editing.NewOrchestrator(cfg, store, blobs, editor, logging.NewNop())
	spec := videoeditor.EditSpec{Quality: &videoeditor.QualitySpec{CRF: 28}}
	job := editJob(t, fork.ID, editing.ModeFork, spec, 1, 3)

	if err := orch.Execute(ctx, job); err == nil {
		t.Fatal("first attempt must fail")
	}
	if blobs.Len() != 1 {
		t.Fatalf("failed attempt leaked blobs: %v", blobs.Refs())
	}

	job.Attempts = 2
	if err := orch.Execute(ctx, job); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if blobs.Len() != 2 {
		t.Fatalf("expected source plus fork blob, have %v", blobs.Refs())
	}
}

func TestRollbackDeletesExhaustedFork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	sourceRef, err := blobs.Put(ctx, "2026/8/28/aa11.mp4", []byte("original-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	parent := testsupport.NewProject(t, store, "aa11", sourceRef)
	fork := testsupport.NewFork(t, store, "ee55", parent)
	if won, err := store.BeginProcessing(ctx, fork.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := editing.NewOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	spec := videoeditor.EditSpec{Cut: &videoeditor.CutSpec{Start: 1, End: 2}}
	if err := orch.Rollback(ctx, editJob(t, fork.ID, editing.ModeFork, spec, 3, 3)); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	got, err := store.GetByID(ctx, fork.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("exhausted fork must be deleted, got %+v", got)
	}
	if _, err := blobs.Get(ctx, sourceRef); err != nil {
		t.Fatalf("parent blob must survive fork rollback: %v", err)
	}
}

func TestRollbackReleasesVersionOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjects(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	sourceRef, err := blobs.Put(ctx, "2026/8/28/ff66.mp4", []byte("original-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	project := testsupport.NewProject(t, store, "ff66", sourceRef)
	if won, err := store.BeginProcessing(ctx, project.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	orch := editing.NewOrchestrator(cfg, store, blobs, &testsupport.FakeEditor{}, logging.NewNop())
	spec := videoeditor.EditSpec{Cut: &videoeditor.CutSpec{Start: 1, End: 2}}
	if err := orch.Rollback(ctx, editJob(t, project.ID, editing.ModeInPlace, spec, 3, 3)); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	got, err := store.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Processing {
		t.Fatalf("version 1 must survive with flag released, got %+v", got)
	}
	if got.Metadata == nil || got.Metadata.CodecName != "h264" {
		t.Fatalf("metadata must be untouched: %+v", got.Metadata)
	}
	if data, _ := blobs.Get(ctx, sourceRef); !bytes.Equal(data, []byte("original-bytes")) {
		t.Fatal("bytes must be untouched")
	}
}

func TestExhaustionThroughDispatcher(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryLimit(2))
	store := testsupport.MustOpenProjects(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	blobs := blobstore.NewMemory()
	ctx := context.Background()

	sourceRef, err := blobs.Put(ctx, "2026/8/28/aa11.mp4", []byte("original-bytes"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	parent := testsupport.NewProject(t, store, "aa11", sourceRef)
	fork := testsupport.NewFork(t, store, "gg77", parent)
	if won, err := store.BeginProcessing(ctx, fork.ID, false); err != nil || !won {
		t.Fatalf("BeginProcessing: won=%v err=%v", won, err)
	}

	editor := &testsupport.FakeEditor{FailEditAttempts: 100}
	orch := editing.NewOrchestrator(cfg, store, blobs, editor, logging.NewNop())
	dispatcher := taskqueue.NewDispatcher(cfg, queue, logging.NewNop())
	dispatcher.Register(taskqueue.KindEdit, orch)

	payload := editing.Payload{Mode: editing.ModeFork, Spec: videoeditor.EditSpec{Cut: &videoeditor.CutSpec{Start: 0, End: 3}}}
	job, err := queue.Enqueue(ctx, taskqueue.KindEdit, fork.ID, payload, cfg.Workflow.RetryLimit)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dispatcher.Stop()

	waitFor(t, func() bool {
		current, err := queue.GetJob(ctx, job.ID)
		return err == nil && current != nil && current.Status == taskqueue.StatusExhausted
	})
	waitFor(t, func() bool {
		doc, err := store.GetByID(ctx, fork.ID)
		return err == nil && doc == nil
	})
	// The retry budget grants re-executions on top of the initial run.
	if want := cfg.Workflow.RetryLimit + 1; editor.EditCalls() != want {
		t.Fatalf("edit attempts = %d, want %d", editor.EditCalls(), want)
	}
	if blobs.Len() != 1 {
		t.Fatalf("only the parent blob may remain, have %v", blobs.Refs())
	}
}
