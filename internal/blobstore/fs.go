package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"reel/internal/config"
	"reel/internal/fileutil"
	"reel/internal/services"
)

// FS stores blobs as files under a root directory. Refs are slash-separated
// paths relative to the root.
type FS struct {
	root string
}

// NewFS constructs a filesystem store rooted at cfg's media directory.
func NewFS(cfg *config.Config) (*FS, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.MediaDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "new", "media directory is not configured", nil)
	}
	if err := os.MkdirAll(cfg.Paths.MediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &FS{root: cfg.Paths.MediaDir}, nil
}

// Root returns the directory blobs are stored under.
func (s *FS) Root() string {
	return s.root
}

func (s *FS) Put(ctx context.Context, keyHint string, data []byte) (string, error) {
	ref, err := s.cleanRef(keyHint)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err == nil {
		return "", services.Wrap(services.ErrValidation, "blobstore", "put", fmt.Sprintf("blob already exists at %s", ref), nil)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "blobstore", "put", ref, err)
	}
	return ref, nil
}

func (s *FS) Get(ctx context.Context, ref string) ([]byte, error) {
	ref, err := s.cleanRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blobstore", "get", ref, nil)
		}
		return nil, services.Wrap(services.ErrTransient, "blobstore", "get", ref, err)
	}
	return data, nil
}

func (s *FS) GetRange(ctx context.Context, ref string, start, end int64) ([]byte, error) {
	ref, err := s.cleanRef(ref)
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start {
		return nil, services.Wrap(services.ErrValidation, "blobstore", "get_range", fmt.Sprintf("invalid range %d-%d", start, end), nil)
	}
	file, err := os.Open(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blobstore", "get_range", ref, nil)
		}
		return nil, services.Wrap(services.ErrTransient, "blobstore", "get_range", ref, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "blobstore", "get_range", ref, err)
	}
	if start >= info.Size() {
		return nil, services.Wrap(services.ErrValidation, "blobstore", "get_range", fmt.Sprintf("range start %d beyond size %d", start, info.Size()), nil)
	}
	if end >= info.Size() {
		end = info.Size() - 1
	}

	buf := make([]byte, end-start+1)
	if _, err := file.ReadAt(buf, start); err != nil {
		return nil, services.Wrap(services.ErrTransient, "blobstore", "get_range", ref, err)
	}
	return buf, nil
}

func (s *FS) Replace(ctx context.Context, ref string, data []byte) (string, error) {
	ref, err := s.cleanRef(ref)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "blobstore", "replace", ref, nil)
		}
		return "", services.Wrap(services.ErrTransient, "blobstore", "replace", ref, err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "blobstore", "replace", ref, err)
	}
	return ref, nil
}

func (s *FS) Delete(ctx context.Context, ref string) (bool, error) {
	ref, err := s.cleanRef(ref)
	if err != nil {
		return false, err
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.ErrTransient, "blobstore", "delete", ref, err)
	}
	return true, nil
}

func (s *FS) cleanRef(ref string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(ref), "/")
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "blobstore", "ref", "empty ref", nil)
	}
	cleaned := filepath.ToSlash(filepath.Clean(trimmed))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", services.Wrap(services.ErrValidation, "blobstore", "ref", fmt.Sprintf("ref escapes store root: %s", ref), nil)
	}
	return cleaned, nil
}
