package thumbnails

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"

	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/videoeditor"
)

// TimelinePayload is the queued description of one timeline job.
type TimelinePayload struct {
	Count int `json:"count"`
}

// TimelineOrchestrator runs queued timeline thumbnail jobs.
type TimelineOrchestrator struct {
	cfg    *config.Config
	store  *projects.Store
	blobs  blobstore.Store
	editor videoeditor.Editor
	logger *slog.Logger
}

var _ taskqueue.Handler = (*TimelineOrchestrator)(nil)

// NewTimelineOrchestrator constructs the timeline job handler.
func NewTimelineOrchestrator(cfg *config.Config, store *projects.Store, blobs blobstore.Store, editor videoeditor.Editor, logger *slog.Logger) *TimelineOrchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TimelineOrchestrator{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		editor: editor,
		logger: logging.NewComponentLogger(logger, "timeline"),
	}
}

// Execute captures the requested frame count and publishes the full set in
// one document update. A failed attempt removes every frame it wrote, so
// a partial set is never visible and never leaks.
func (o *TimelineOrchestrator) Execute(ctx context.Context, job *taskqueue.Job) error {
	var payload TimelinePayload
	if err := job.DecodePayload(&payload); err != nil {
		return services.Wrap(services.ErrValidation, "timeline", "payload", "undecodable payload", err)
	}
	count := payload.Count
	if count <= 0 {
		count = o.cfg.Media.DefaultTimelineCount
	}

	doc, err := o.store.GetByID(ctx, job.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "timeline", "load", "read project document", err)
	}
	if doc == nil {
		return services.Wrap(services.ErrNotFound, "timeline", "load", "project "+job.ProjectID+" not found", nil)
	}

	source, err := o.blobs.Get(ctx, doc.StorageRef)
	if err != nil {
		return err
	}
	seq, err := o.editor.CaptureTimeline(ctx, source, doc.Metadata, count)
	if err != nil {
		return err
	}
	defer seq.Close()

	base := doc.BaseName()
	var (
		written []string
		thumbs  []projects.Thumbnail
	)
	cleanup := func() {
		for _, ref := range written {
			if _, err := o.blobs.Delete(ctx, ref); err != nil {
				logging.WithContext(ctx, o.logger).Warn("partial frame removal failed",
					logging.String("storage_ref", ref), logging.Error(err))
			}
		}
	}

	// Frames are indexed from zero, matching the retrieval endpoint.
	for index := 0; seq.Next(); index++ {
		frame, meta := seq.Frame()
		filename := fmt.Sprintf("%s_timeline_%02d.png", base, index)
		ref, err := o.blobs.Put(ctx, path.Join(doc.Folder, filename), frame)
		if err != nil {
			cleanup()
			return err
		}
		written = append(written, ref)
		thumbs = append(thumbs, projects.Thumbnail{
			Filename:   filename,
			StorageRef: ref,
			MimeType:   "image/png",
			Width:      meta.Width,
			Height:     meta.Height,
			Size:       meta.Size,
			URL:        projects.PublicURL(o.cfg.Media.PublicBaseURL, ref),
		})
	}
	if err := seq.Err(); err != nil {
		cleanup()
		return err
	}
	if len(thumbs) == 0 {
		cleanup()
		return services.Wrap(services.ErrExternalTool, "timeline", "capture", "no frames produced", nil)
	}

	doc.Thumbnails = map[string][]projects.Thumbnail{strconv.Itoa(count): thumbs}
	doc.Processing = false
	if err := o.store.Update(ctx, doc); err != nil {
		cleanup()
		return services.Wrap(services.ErrTransient, "timeline", "finalize", "update project document", err)
	}
	return nil
}

// Rollback releases the processing flag and leaves the thumbnail map empty,
// which the flag flip already cleared when the job was enqueued.
func (o *TimelineOrchestrator) Rollback(ctx context.Context, job *taskqueue.Job) error {
	doc, err := o.store.GetByID(ctx, job.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "timeline", "rollback", "read project document", err)
	}
	if doc == nil {
		return nil
	}
	if err := o.store.EndProcessing(ctx, doc.ID); err != nil {
		return services.Wrap(services.ErrTransient, "timeline", "rollback", "release processing flag", err)
	}
	logging.WithContext(ctx, o.logger).Info("timeline rolled back",
		logging.String(logging.FieldEventType, "timeline_rollback"))
	return nil
}
