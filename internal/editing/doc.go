// Package editing implements the queued edit job: applying cut, crop,
// rotate, and quality transformations to a project's stored bytes.
package editing
