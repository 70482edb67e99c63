package api

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"reel/internal/activity"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
)

var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// Upload probes and stores new media, creating a version-1 project.
func (s *Service) Upload(ctx context.Context, originalFilename string, data []byte, clientInfo string) (*projects.Project, error) {
	if err := s.CheckClient(clientInfo); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "upload", "empty media payload", nil)
	}

	meta, err := s.editor.Probe(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.checkCodec(meta.CodecName); err != nil {
		return nil, err
	}

	id := newDocumentID()
	ext := strings.ToLower(path.Ext(originalFilename))
	if ext == "" {
		ext = ".mp4"
	}
	filename := id + ext
	folder := dateFolder(time.Now().UTC())

	ref, err := s.blobs.Put(ctx, path.Join(folder, filename), data)
	if err != nil {
		return nil, err
	}

	doc := &projects.Project{
		ID:               id,
		StorageRef:       ref,
		Filename:         filename,
		Folder:           folder,
		MimeType:         mimeTypeFor(ext),
		OriginalFilename: originalFilename,
		Metadata:         meta,
		Version:          1,
		URL:              projects.PublicURL(s.cfg.Media.PublicBaseURL, ref),
		ClientInfo:       clientInfo,
		CreateDate:       time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		if _, cleanupErr := s.blobs.Delete(ctx, ref); cleanupErr != nil {
			logging.WithContext(ctx, s.logger).Warn("orphaned upload blob",
				logging.String(logging.FieldProjectID, id), logging.Error(cleanupErr))
		}
		return nil, services.Wrap(services.ErrTransient, "api", "upload", "insert project document", err)
	}

	s.record(ctx, id, activity.ActionUpload, originalFilename, clientInfo)
	return doc, nil
}

func (s *Service) checkCodec(codec string) error {
	allowed := s.cfg.Media.AllowedCodecs
	if len(allowed) == 0 {
		return nil
	}
	lowered := strings.ToLower(codec)
	for _, entry := range allowed {
		if lowered == strings.ToLower(entry) {
			return nil
		}
	}
	return services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("codec %q not allowed", codec), nil)
}

// newDocumentID produces a compact hex id for documents and filenames.
func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// dateFolder shards blobs by upload date without zero padding, e.g. 2026/8/3.
func dateFolder(now time.Time) string {
	return fmt.Sprintf("%d/%d/%d", now.Year(), int(now.Month()), now.Day())
}

func mimeTypeFor(ext string) string {
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
