package api

import (
	"context"
	"log/slog"
	"strings"

	"reel/internal/activity"
	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/thumbnails"
	"reel/internal/videoeditor"
)

// Service is the synchronous operations surface consumed by the HTTP layer
// and the CLI. It owns validation, the processing-flag flips, and job
// enqueueing; the orchestrators own everything after that.
type Service struct {
	cfg      *config.Config
	store    *projects.Store
	blobs    blobstore.Store
	queue    *taskqueue.Store
	editor   videoeditor.Editor
	preview  *thumbnails.PreviewService
	activity *activity.Store
	logger   *slog.Logger
}

// New constructs the service facade.
func New(cfg *config.Config, store *projects.Store, blobs blobstore.Store, queue *taskqueue.Store, editor videoeditor.Editor, activityLog *activity.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		queue:    queue,
		editor:   editor,
		preview:  thumbnails.NewPreviewService(cfg, store, blobs, editor, logger),
		activity: activityLog,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// CheckClient enforces the client allowlist. An empty allowlist admits
// every caller.
func (s *Service) CheckClient(clientInfo string) error {
	allowed := s.cfg.Media.AllowedClients
	if len(allowed) == 0 {
		return nil
	}
	lowered := strings.ToLower(clientInfo)
	for _, entry := range allowed {
		if entry != "" && strings.Contains(lowered, strings.ToLower(entry)) {
			return nil
		}
	}
	return services.Wrap(services.ErrValidation, "api", "client", "client not allowed", nil)
}

// Get returns one project document.
func (s *Service) Get(ctx context.Context, id string) (*projects.Project, error) {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "get", "read project document", err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get", "project "+id+" not found", nil)
	}
	return doc, nil
}

// List returns a page of project documents, newest first, plus the total.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*projects.Project, int, error) {
	docs, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "api", "list", "list project documents", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "api", "list", "count project documents", err)
	}
	return docs, total, nil
}

// Activity returns recent log entries for one project.
func (s *Service) Activity(ctx context.Context, id string, limit int) ([]*activity.Entry, error) {
	return s.activity.List(ctx, id, limit)
}

// Jobs returns recent queue jobs for one project.
func (s *Service) Jobs(ctx context.Context, id string, limit int) ([]*taskqueue.Job, error) {
	return s.queue.ListForProject(ctx, id, limit)
}

func (s *Service) record(ctx context.Context, projectID, action, detail, clientInfo string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, projectID, action, detail, clientInfo); err != nil {
		logging.WithContext(ctx, s.logger).Warn("activity record failed",
			logging.String("action", action), logging.Error(err))
	}
}
