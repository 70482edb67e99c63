// Package videoeditor wraps ffmpeg and ffprobe behind the Editor
// capability used by the edit and thumbnail pipelines.
package videoeditor
