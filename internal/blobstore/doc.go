// Package blobstore implements the content store: durable key-addressed
// blob storage for media bytes. The filesystem implementation shards by the
// caller-supplied key hint and writes atomically so a replace can never
// corrupt the previous bytes.
package blobstore
