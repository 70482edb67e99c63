package api

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"reel/internal/activity"
	"reel/internal/editing"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/videoeditor"
)

// EnqueueEditInPlace queues a non-forking edit of a derived project. Only
// version >= 2 documents may be edited under their existing pointer.
func (s *Service) EnqueueEditInPlace(ctx context.Context, id string, spec videoeditor.EditSpec, clientInfo string) (*taskqueue.Job, error) {
	if err := s.CheckClient(clientInfo); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsFork() {
		return nil, services.Wrap(services.ErrValidation, "api", "edit", "in-place edits require a derived project", nil)
	}

	won, err := s.store.BeginProcessing(ctx, doc.ID, false)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "edit", "flip processing flag", err)
	}
	if !won {
		return nil, services.Wrap(services.ErrAlreadyProcessing, "api", "edit", "project "+doc.ID+" is processing", nil)
	}

	job, err := s.queue.Enqueue(ctx, taskqueue.KindEdit, doc.ID,
		editing.Payload{Mode: editing.ModeInPlace, Spec: spec}, s.cfg.Workflow.RetryLimit)
	if err != nil {
		s.releaseFlag(ctx, doc.ID)
		return nil, services.Wrap(services.ErrTransient, "api", "edit", "enqueue edit job", err)
	}

	s.record(ctx, doc.ID, activity.ActionEditUpdate, describeSpec(spec), clientInfo)
	return job, nil
}

// EnqueueEditFork queues a forking edit: a new derived document is created
// against the original's current bytes while the original stays untouched.
// Only version-1 projects may be forked.
func (s *Service) EnqueueEditFork(ctx context.Context, id string, spec videoeditor.EditSpec, clientInfo string) (*projects.Project, *taskqueue.Job, error) {
	if err := s.CheckClient(clientInfo); err != nil {
		return nil, nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	parent, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if parent.IsFork() {
		return nil, nil, services.Wrap(services.ErrValidation, "api", "edit", "only an original project may be forked", nil)
	}
	if parent.Processing {
		return nil, nil, services.Wrap(services.ErrAlreadyProcessing, "api", "edit", "project "+parent.ID+" is processing", nil)
	}

	forkID := newDocumentID()
	ext := path.Ext(parent.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	fork := &projects.Project{
		ID:               forkID,
		StorageRef:       parent.StorageRef,
		Filename:         forkID + ext,
		Folder:           dateFolder(time.Now().UTC()),
		MimeType:         parent.MimeType,
		OriginalFilename: parent.OriginalFilename,
		Version:          parent.Version + 1,
		Parent:           parent.ID,
		Processing:       true,
		ClientInfo:       clientInfo,
		CreateDate:       time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, fork); err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "api", "edit", "insert fork document", err)
	}

	job, err := s.queue.Enqueue(ctx, taskqueue.KindEdit, fork.ID,
		editing.Payload{Mode: editing.ModeFork, Spec: spec}, s.cfg.Workflow.RetryLimit)
	if err != nil {
		if _, deleteErr := s.store.Delete(ctx, fork.ID); deleteErr != nil {
			logging.WithContext(ctx, s.logger).Warn("orphaned fork document",
				logging.String(logging.FieldProjectID, fork.ID), logging.Error(deleteErr))
		}
		return nil, nil, services.Wrap(services.ErrTransient, "api", "edit", "enqueue edit job", err)
	}

	s.record(ctx, fork.ID, activity.ActionEditFork, describeSpec(spec), clientInfo)
	return fork, job, nil
}

func (s *Service) releaseFlag(ctx context.Context, id string) {
	if err := s.store.EndProcessing(ctx, id); err != nil {
		logging.WithContext(ctx, s.logger).Error("processing flag stuck after enqueue failure",
			logging.String(logging.FieldProjectID, id), logging.Error(err))
	}
}

func describeSpec(spec videoeditor.EditSpec) string {
	encoded, err := json.Marshal(spec)
	if err != nil {
		return ""
	}
	return string(encoded)
}
