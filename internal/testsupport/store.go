package testsupport

import (
	"context"
	"testing"
	"time"

	"reel/internal/activity"
	"reel/internal/config"
	"reel/internal/projects"
	"reel/internal/taskqueue"
)

// MustOpenProjects opens a projects.Store for tests and registers cleanup.
func MustOpenProjects(t testing.TB, cfg *config.Config) *projects.Store {
	t.Helper()

	store, err := projects.Open(cfg)
	if err != nil {
		t.Fatalf("projects.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenQueue opens a taskqueue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *taskqueue.Store {
	t.Helper()

	store, err := taskqueue.Open(cfg)
	if err != nil {
		t.Fatalf("taskqueue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenActivity opens an activity.Store for tests and registers cleanup.
func MustOpenActivity(t testing.TB, cfg *config.Config) *activity.Store {
	t.Helper()

	store, err := activity.Open(cfg)
	if err != nil {
		t.Fatalf("activity.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject inserts a version-1 project document for tests.
func NewProject(t testing.TB, store *projects.Store, id, storageRef string) *projects.Project {
	t.Helper()

	project := &projects.Project{
		ID:               id,
		StorageRef:       storageRef,
		Filename:         id + ".mp4",
		Folder:           "2026/8/28",
		MimeType:         "video/mp4",
		OriginalFilename: "clip.mp4",
		Metadata: &projects.Metadata{
			CodecName: "h264",
			Width:     1920,
			Height:    1080,
			Duration:  12.5,
			Size:      1 << 20,
		},
		Version:    1,
		CreateDate: time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), project); err != nil {
		t.Fatalf("projects.Insert: %v", err)
	}
	return project
}

// NewFork inserts a derived project document for tests.
func NewFork(t testing.TB, store *projects.Store, id string, parent *projects.Project) *projects.Project {
	t.Helper()

	fork := &projects.Project{
		ID:               id,
		StorageRef:       parent.StorageRef,
		Filename:         id + ".mp4",
		Folder:           parent.Folder,
		MimeType:         parent.MimeType,
		OriginalFilename: parent.OriginalFilename,
		Metadata:         parent.Metadata,
		Version:          parent.Version + 1,
		Parent:           parent.ID,
		CreateDate:       time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), fork); err != nil {
		t.Fatalf("projects.Insert fork: %v", err)
	}
	return fork
}
