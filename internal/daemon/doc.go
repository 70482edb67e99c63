// Package daemon runs the long-lived reel process: the job dispatcher, the
// HTTP API, and the single-instance lock.
package daemon
