package api

import (
	"context"

	"reel/internal/activity"
	"reel/internal/logging"
	"reel/internal/projects"
	"reel/internal/services"
)

// Delete removes a project document and its blobs. Deleting an original
// also removes its derived versions. Rejected while any affected document
// is processing, since an in-flight job would resurrect state.
func (s *Service) Delete(ctx context.Context, id string, clientInfo string) error {
	if err := s.CheckClient(clientInfo); err != nil {
		return err
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Processing {
		return services.Wrap(services.ErrAlreadyProcessing, "api", "delete", "project "+doc.ID+" is processing", nil)
	}

	targets := []*projects.Project{doc}
	if !doc.IsFork() {
		children, err := s.store.Children(ctx, doc.ID)
		if err != nil {
			return services.Wrap(services.ErrTransient, "api", "delete", "list derived projects", err)
		}
		for _, child := range children {
			if child.Processing {
				return services.Wrap(services.ErrAlreadyProcessing, "api", "delete", "derived project "+child.ID+" is processing", nil)
			}
		}
		targets = append(targets, children...)
	}

	// Children first so a failure midway never leaves a derived document
	// pointing at removed parent state.
	for i := len(targets) - 1; i >= 0; i-- {
		if err := s.deleteOne(ctx, targets[i], doc); err != nil {
			return err
		}
	}

	s.record(ctx, doc.ID, activity.ActionDelete, doc.OriginalFilename, clientInfo)
	return nil
}

func (s *Service) deleteOne(ctx context.Context, target, requested *projects.Project) error {
	logger := logging.WithContext(ctx, s.logger)

	refs := target.ThumbnailRefs()
	if target.PreviewThumbnail != nil && target.PreviewThumbnail.StorageRef != "" {
		refs = append(refs, target.PreviewThumbnail.StorageRef)
	}
	ownsBlob := target.StorageRef != "" && !sharesBlob(target, requested)
	if ownsBlob && target.IsFork() && target.Parent != "" {
		parent, err := s.store.GetByID(ctx, target.Parent)
		if err == nil && parent != nil && parent.StorageRef == target.StorageRef {
			ownsBlob = false
		}
	}
	if ownsBlob {
		refs = append(refs, target.StorageRef)
	}
	for _, ref := range refs {
		if _, err := s.blobs.Delete(ctx, ref); err != nil {
			logger.Warn("blob removal failed during delete",
				logging.String("storage_ref", ref), logging.Error(err))
		}
	}

	if _, err := s.store.Delete(ctx, target.ID); err != nil {
		return services.Wrap(services.ErrTransient, "api", "delete", "delete project document", err)
	}
	return nil
}

// sharesBlob reports whether a derived document still points at another
// document's bytes, which happens while its edit never completed.
func sharesBlob(target, other *projects.Project) bool {
	return target.ID != other.ID && target.StorageRef == other.StorageRef
}
