package main

import (
	"fmt"
	"log/slog"

	"reel/internal/activity"
	"reel/internal/api"
	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/daemon"
	"reel/internal/editing"
	"reel/internal/projects"
	"reel/internal/taskqueue"
	"reel/internal/thumbnails"
	"reel/internal/videoeditor"
)

// bootstrap wires stores, the editor, the service, and the dispatcher into
// a ready-to-start daemon.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, func(), error) {
	projectStore, err := projects.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open project store: %w", err)
	}
	queueStore, err := taskqueue.Open(cfg)
	if err != nil {
		projectStore.Close()
		return nil, nil, fmt.Errorf("open queue store: %w", err)
	}
	activityStore, err := activity.Open(cfg)
	if err != nil {
		projectStore.Close()
		queueStore.Close()
		return nil, nil, fmt.Errorf("open activity store: %w", err)
	}
	closeStores := func() {
		activityStore.Close()
		queueStore.Close()
		projectStore.Close()
	}

	blobs, err := blobstore.NewFS(cfg)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	editor := videoeditor.NewFFmpeg(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary)

	service := api.New(cfg, projectStore, blobs, queueStore, editor, activityStore, logger)

	dispatcher := taskqueue.NewDispatcher(cfg, queueStore, logger)
	dispatcher.Register(taskqueue.KindEdit,
		editing.NewOrchestrator(cfg, projectStore, blobs, editor, logger))
	dispatcher.Register(taskqueue.KindThumbnails,
		thumbnails.NewTimelineOrchestrator(cfg, projectStore, blobs, editor, logger))

	d, err := daemon.New(cfg, service, dispatcher, logger)
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	return d, closeStores, nil
}
