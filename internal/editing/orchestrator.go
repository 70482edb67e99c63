package editing

import (
	"context"
	"log/slog"
	"path"

	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/videoeditor"
)

// Edit modes carried in the job payload.
const (
	ModeInPlace = "in_place"
	ModeFork    = "fork"
)

// Payload is the queued description of one edit job.
type Payload struct {
	Mode string               `json:"mode"`
	Spec videoeditor.EditSpec `json:"spec"`
}

// Orchestrator runs queued edit jobs and restores document consistency
// when the retry budget runs out.
type Orchestrator struct {
	cfg    *config.Config
	store  *projects.Store
	blobs  blobstore.Store
	editor videoeditor.Editor
	logger *slog.Logger
}

var _ taskqueue.Handler = (*Orchestrator)(nil)

// NewOrchestrator constructs the edit job handler.
func NewOrchestrator(cfg *config.Config, store *projects.Store, blobs blobstore.Store, editor videoeditor.Editor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		editor: editor,
		logger: logging.NewComponentLogger(logger, "edit"),
	}
}

// Execute performs one full edit attempt against a freshly read document.
// Earlier attempts leave no blobs behind, so every attempt starts clean.
func (o *Orchestrator) Execute(ctx context.Context, job *taskqueue.Job) error {
	var payload Payload
	if err := job.DecodePayload(&payload); err != nil {
		return services.Wrap(services.ErrValidation, "edit", "payload", "undecodable payload", err)
	}
	if payload.Mode != ModeInPlace && payload.Mode != ModeFork {
		return services.Wrap(services.ErrValidation, "edit", "payload", "unknown edit mode "+payload.Mode, nil)
	}
	if err := payload.Spec.Validate(); err != nil {
		return err
	}

	doc, err := o.store.GetByID(ctx, job.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "edit", "load", "read project document", err)
	}
	if doc == nil {
		return services.Wrap(services.ErrNotFound, "edit", "load", "project "+job.ProjectID+" not found", nil)
	}

	source, err := o.blobs.Get(ctx, doc.StorageRef)
	if err != nil {
		return err
	}

	edited, meta, err := o.editor.Edit(ctx, source, doc.Metadata, payload.Spec)
	if err != nil {
		return err
	}

	switch payload.Mode {
	case ModeFork:
		return o.finishFork(ctx, doc, edited, meta)
	default:
		return o.finishInPlace(ctx, doc, edited, meta)
	}
}

// finishFork writes the fork's own blob and swaps the document pointer off
// the parent's bytes. The written blob is removed if finalization fails so
// the next attempt starts from the parent snapshot again.
func (o *Orchestrator) finishFork(ctx context.Context, doc *projects.Project, edited []byte, meta *projects.Metadata) error {
	newRef := path.Join(doc.Folder, doc.Filename)
	ref, err := o.blobs.Put(ctx, newRef, edited)
	if err != nil {
		return err
	}
	if err := o.finalize(ctx, doc, ref, meta); err != nil {
		if _, cleanupErr := o.blobs.Delete(ctx, ref); cleanupErr != nil {
			logging.WithContext(ctx, o.logger).Warn("cleanup of failed fork blob failed",
				logging.String("storage_ref", ref), logging.Error(cleanupErr))
		}
		return err
	}
	return nil
}

// finishInPlace swaps the bytes under the existing pointer atomically, so a
// failed attempt never leaves a superseded blob next to the live one.
func (o *Orchestrator) finishInPlace(ctx context.Context, doc *projects.Project, edited []byte, meta *projects.Metadata) error {
	ref, err := o.blobs.Replace(ctx, doc.StorageRef, edited)
	if err != nil {
		return err
	}
	return o.finalize(ctx, doc, ref, meta)
}

func (o *Orchestrator) finalize(ctx context.Context, doc *projects.Project, storageRef string, meta *projects.Metadata) error {
	staleThumbs := doc.ThumbnailRefs()
	if doc.PreviewThumbnail != nil && doc.PreviewThumbnail.StorageRef != "" {
		staleThumbs = append(staleThumbs, doc.PreviewThumbnail.StorageRef)
	}

	doc.StorageRef = storageRef
	doc.Metadata = meta
	doc.Thumbnails = nil
	doc.PreviewThumbnail = nil
	doc.Processing = false
	doc.URL = projects.PublicURL(o.cfg.Media.PublicBaseURL, storageRef)
	if err := o.store.Update(ctx, doc); err != nil {
		return services.Wrap(services.ErrTransient, "edit", "finalize", "update project document", err)
	}

	// Derivations of the pre-edit bytes are unreachable once the document
	// is updated; removal failures only leak storage.
	for _, ref := range staleThumbs {
		if _, err := o.blobs.Delete(ctx, ref); err != nil {
			logging.WithContext(ctx, o.logger).Warn("stale thumbnail removal failed",
				logging.String("storage_ref", ref), logging.Error(err))
		}
	}
	return nil
}

// Rollback drives the project to its terminal state after the last failed
// attempt: forks are deleted outright, originals are released back to their
// pre-edit state.
func (o *Orchestrator) Rollback(ctx context.Context, job *taskqueue.Job) error {
	logger := logging.WithContext(ctx, o.logger)

	doc, err := o.store.GetByID(ctx, job.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "edit", "rollback", "read project document", err)
	}
	if doc == nil {
		return nil
	}

	if doc.Version == 1 {
		if err := o.store.EndProcessing(ctx, doc.ID); err != nil {
			return services.Wrap(services.ErrTransient, "edit", "rollback", "release processing flag", err)
		}
		logger.Info("edit rolled back, project restored",
			logging.String(logging.FieldEventType, "edit_rollback"))
		return nil
	}

	// The fork never became usable. Its blob is removed only when it is not
	// shared with the parent, which still owns the original bytes.
	ownRef := doc.StorageRef
	if ownRef != "" && doc.Parent != "" {
		parent, parentErr := o.store.GetByID(ctx, doc.Parent)
		if parentErr == nil && parent != nil && parent.StorageRef == ownRef {
			ownRef = ""
		}
	}
	if ownRef != "" {
		if _, err := o.blobs.Delete(ctx, ownRef); err != nil {
			logger.Warn("fork blob removal failed", logging.String("storage_ref", ownRef), logging.Error(err))
		}
	}
	for _, ref := range doc.ThumbnailRefs() {
		if _, err := o.blobs.Delete(ctx, ref); err != nil {
			logger.Warn("fork thumbnail removal failed", logging.String("storage_ref", ref), logging.Error(err))
		}
	}
	if _, err := o.store.Delete(ctx, doc.ID); err != nil {
		return services.Wrap(services.ErrTransient, "edit", "rollback", "delete fork document", err)
	}
	logger.Info("edit rolled back, fork removed",
		logging.String(logging.FieldEventType, "edit_rollback"))
	return nil
}
