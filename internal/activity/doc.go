// Package activity keeps an append-only audit log of actions taken
// against projects.
package activity
