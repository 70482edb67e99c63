package api

import (
	"context"
	"fmt"

	"reel/internal/activity"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/thumbnails"
)

// EnqueueTimelineThumbnails queues generation of a timeline thumbnail set.
// When a set for the requested count already exists and force is false, the
// existing set is returned without queueing anything.
func (s *Service) EnqueueTimelineThumbnails(ctx context.Context, id string, count int, force bool, clientInfo string) ([]projects.Thumbnail, *taskqueue.Job, error) {
	if err := s.CheckClient(clientInfo); err != nil {
		return nil, nil, err
	}
	if count <= 0 {
		count = s.cfg.Media.DefaultTimelineCount
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if existing := doc.TimelineSet(count); len(existing) > 0 && !force {
		return existing, nil, nil
	}

	won, err := s.store.BeginProcessing(ctx, doc.ID, true)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "api", "thumbnails", "flip processing flag", err)
	}
	if !won {
		return nil, nil, services.Wrap(services.ErrAlreadyProcessing, "api", "thumbnails", "project "+doc.ID+" is processing", nil)
	}

	// Blobs of the superseded sets are unreachable once the flag flip
	// cleared the map.
	for _, ref := range doc.ThumbnailRefs() {
		if _, err := s.blobs.Delete(ctx, ref); err != nil {
			logging.WithContext(ctx, s.logger).Warn("superseded thumbnail removal failed",
				logging.String("storage_ref", ref), logging.Error(err))
		}
	}

	job, err := s.queue.Enqueue(ctx, taskqueue.KindThumbnails, doc.ID,
		thumbnails.TimelinePayload{Count: count}, s.cfg.Workflow.RetryLimit)
	if err != nil {
		s.releaseFlag(ctx, doc.ID)
		return nil, nil, services.Wrap(services.ErrTransient, "api", "thumbnails", "enqueue timeline job", err)
	}

	s.record(ctx, doc.ID, activity.ActionThumbnails, fmt.Sprintf("count=%d force=%t", count, force), clientInfo)
	return nil, job, nil
}

// RunPreviewThumbnail produces the single preview image synchronously.
func (s *Service) RunPreviewThumbnail(ctx context.Context, id string, req thumbnails.PreviewRequest, clientInfo string) (*projects.Thumbnail, error) {
	if err := s.CheckClient(clientInfo); err != nil {
		return nil, err
	}
	thumb, err := s.preview.Run(ctx, id, req)
	if err != nil {
		return nil, err
	}
	variant := "capture"
	if len(req.Image) > 0 {
		variant = "upload"
	}
	s.record(ctx, id, activity.ActionPreview, variant, clientInfo)
	return thumb, nil
}
