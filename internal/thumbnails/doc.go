// Package thumbnails produces derived images: the queued timeline set and
// the synchronous single preview thumbnail.
package thumbnails
