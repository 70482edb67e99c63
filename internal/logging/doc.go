// Package logging wraps log/slog with the attribute helpers, well-known
// field names, and context plumbing shared by every component.
package logging
