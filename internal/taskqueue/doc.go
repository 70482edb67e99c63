// Package taskqueue provides the persistent job queue and the polling
// dispatcher that drives asynchronous project work.
package taskqueue
