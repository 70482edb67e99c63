package blobstore

import (
	"context"
	"fmt"
	"sync"

	"reel/internal/services"
)

// Memory is an in-process Store used by tests and one-shot tooling.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Len reports the number of stored blobs.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Refs returns the refs of all stored blobs.
func (s *Memory) Refs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]string, 0, len(s.blobs))
	for ref := range s.blobs {
		refs = append(refs, ref)
	}
	return refs
}

func (s *Memory) Put(ctx context.Context, keyHint string, data []byte) (string, error) {
	if keyHint == "" {
		return "", services.Wrap(services.ErrValidation, "blobstore", "put", "empty ref", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[keyHint]; ok {
		return "", services.Wrap(services.ErrValidation, "blobstore", "put", fmt.Sprintf("blob already exists at %s", keyHint), nil)
	}
	s.blobs[keyHint] = append([]byte(nil), data...)
	return keyHint, nil
}

func (s *Memory) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "blobstore", "get", ref, nil)
	}
	return append([]byte(nil), data...), nil
}

func (s *Memory) GetRange(ctx context.Context, ref string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, services.Wrap(services.ErrValidation, "blobstore", "get_range", fmt.Sprintf("invalid range %d-%d", start, end), nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "blobstore", "get_range", ref, nil)
	}
	size := int64(len(data))
	if start >= size {
		return nil, services.Wrap(services.ErrValidation, "blobstore", "get_range", fmt.Sprintf("range start %d beyond size %d", start, size), nil)
	}
	if end >= size {
		end = size - 1
	}
	return append([]byte(nil), data[start:end+1]...), nil
}

func (s *Memory) Replace(ctx context.Context, ref string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref]; !ok {
		return "", services.Wrap(services.ErrNotFound, "blobstore", "replace", ref, nil)
	}
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *Memory) Delete(ctx context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref]; !ok {
		return false, nil
	}
	delete(s.blobs, ref)
	return true, nil
}
