// Package services provides the shared error taxonomy and context plumbing
// used by orchestrators and store wrappers. Sentinel errors tag failures for
// the task queue's retryable/fatal classification; context helpers carry
// project, job, and request identifiers into structured logs.
package services
