package blobstore

import "context"

// Store is the content store contract: durable, key-addressed blob storage.
// Refs are opaque to callers; only a Store can mint or interpret them.
type Store interface {
	// Put writes a new blob and returns its ref. The key hint suggests a
	// storage location (e.g. a date-sharded relative path) and must not
	// collide with an existing blob.
	Put(ctx context.Context, keyHint string, data []byte) (string, error)
	// Get returns the full blob bytes.
	Get(ctx context.Context, ref string) ([]byte, error)
	// GetRange returns bytes [start, end] inclusive.
	GetRange(ctx context.Context, ref string, start, end int64) ([]byte, error)
	// Replace atomically overwrites the blob at ref and returns the ref the
	// new bytes live at (the same ref for this implementation family).
	Replace(ctx context.Context, ref string, data []byte) (string, error)
	// Delete removes the blob. Returns false when no blob existed at ref.
	Delete(ctx context.Context, ref string) (bool, error)
}
