// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store constructors with cleanup, and a deterministic fake editor.
package testsupport
