package thumbnails

import (
	"context"
	"log/slog"
	"path"

	"reel/internal/blobstore"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/videoeditor"
)

// PreviewRequest describes one preview thumbnail operation. Exactly one of
// Image or Timestamp drives the variant: supplied bytes or a captured frame.
type PreviewRequest struct {
	// Image holds raw image bytes for the upload variant.
	Image []byte
	// Timestamp selects the capture position in seconds for the capture
	// variant. Ignored when Image is set.
	Timestamp float64
}

// PreviewService sets a project's single preview thumbnail synchronously.
type PreviewService struct {
	cfg    *config.Config
	store  *projects.Store
	blobs  blobstore.Store
	editor videoeditor.Editor
	logger *slog.Logger
}

// NewPreviewService constructs the preview thumbnail service.
func NewPreviewService(cfg *config.Config, store *projects.Store, blobs blobstore.Store, editor videoeditor.Editor, logger *slog.Logger) *PreviewService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PreviewService{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		editor: editor,
		logger: logging.NewComponentLogger(logger, "preview"),
	}
}

// Run produces and persists the preview thumbnail. The document is mutated
// only after a non-empty image and its metadata exist.
func (s *PreviewService) Run(ctx context.Context, projectID string, req PreviewRequest) (*projects.Thumbnail, error) {
	doc, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "preview", "load", "read project document", err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrNotFound, "preview", "load", "project "+projectID+" not found", nil)
	}
	if doc.Processing {
		return nil, services.Wrap(services.ErrAlreadyProcessing, "preview", "load", "project "+projectID+" is processing", nil)
	}

	var (
		image []byte
		meta  *videoeditor.ImageMeta
	)
	if len(req.Image) > 0 {
		image = req.Image
		meta, err = s.editor.ProbeImage(ctx, image)
		if err != nil {
			return nil, err
		}
	} else {
		source, getErr := s.blobs.Get(ctx, doc.StorageRef)
		if getErr != nil {
			return nil, getErr
		}
		image, meta, err = s.editor.CaptureFrame(ctx, source, doc.Metadata, req.Timestamp)
		if err != nil {
			return nil, err
		}
	}
	if len(image) == 0 || meta == nil {
		return nil, services.Wrap(services.ErrExternalTool, "preview", "produce", "no image produced", nil)
	}

	filename := doc.BaseName() + "_thumbnail.png"
	target := path.Join(doc.Folder, filename)
	ref, putErr := s.blobs.Put(ctx, target, image)
	if putErr != nil {
		// A blob can survive at the target when a prior preview exists or
		// an earlier cleanup failed; overwrite it in place.
		var replaceErr error
		ref, replaceErr = s.blobs.Replace(ctx, target, image)
		if replaceErr != nil {
			return nil, putErr
		}
	}

	thumb := &projects.Thumbnail{
		Filename:   filename,
		StorageRef: ref,
		MimeType:   "image/png",
		Width:      meta.Width,
		Height:     meta.Height,
		Size:       meta.Size,
		URL:        projects.PublicURL(s.cfg.Media.PublicBaseURL, ref),
	}
	doc.PreviewThumbnail = thumb
	if err := s.store.Update(ctx, doc); err != nil {
		return nil, services.Wrap(services.ErrTransient, "preview", "finalize", "update project document", err)
	}
	return thumb, nil
}
