// Package api implements the synchronous project operations: upload,
// retrieval, deletion, and the flag-flip-then-enqueue entry points for the
// asynchronous pipelines.
package api
