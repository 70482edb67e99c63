package api

import (
	"context"
	"fmt"

	"reel/internal/projects"
	"reel/internal/services"
)

// Content returns the full stored bytes of a project's media.
func (s *Service) Content(ctx context.Context, id string) ([]byte, *projects.Project, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.StorageRef)
	if err != nil {
		return nil, nil, err
	}
	return data, doc, nil
}

// ContentRange returns an inclusive byte range of a project's media, used
// for HTTP range serving.
func (s *Service) ContentRange(ctx context.Context, id string, start, end int64) ([]byte, *projects.Project, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.GetRange(ctx, doc.StorageRef, start, end)
	if err != nil {
		return nil, nil, err
	}
	return data, doc, nil
}

// ThumbnailContent returns the bytes of one stored thumbnail blob.
func (s *Service) ThumbnailContent(ctx context.Context, ref string) ([]byte, error) {
	return s.blobs.Get(ctx, ref)
}

// TimelineThumbnailContent returns one timeline frame by its zero-based
// index within the project's stored set.
func (s *Service) TimelineThumbnailContent(ctx context.Context, id string, index int) ([]byte, *projects.Thumbnail, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, set := range doc.Thumbnails {
		if index < 0 || index >= len(set) {
			break
		}
		thumb := set[index]
		data, err := s.blobs.Get(ctx, thumb.StorageRef)
		if err != nil {
			return nil, nil, err
		}
		return data, &thumb, nil
	}
	return nil, nil, services.Wrap(services.ErrNotFound, "api", "thumbnail",
		fmt.Sprintf("project %s has no timeline thumbnail %d", id, index), nil)
}
