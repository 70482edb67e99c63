// Package projects is the document repository for project versions. One
// document exists per version; the processing flag on each document is the
// single concurrency gate for mutating jobs, flipped only through the
// store's conditional update.
package projects
