package videoeditor

import (
	"context"
	"fmt"

	"reel/internal/projects"
	"reel/internal/services"
)

// ImageMeta describes a produced image.
type ImageMeta struct {
	Width  int
	Height int
	Size   int64
}

// CutSpec trims the media to [Start, End] seconds.
type CutSpec struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CropSpec crops to a Width x Height window at offset (X, Y) in pixels.
type CropSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// RotateSpec rotates by Degree degrees clockwise.
type RotateSpec struct {
	Degree int `json:"degree"`
}

// QualitySpec re-encodes at an encoder-specific constant quality level.
type QualitySpec struct {
	CRF int `json:"crf"`
}

// EditSpec is one requested transformation set. Nil members are skipped.
type EditSpec struct {
	Cut     *CutSpec     `json:"cut,omitempty"`
	Crop    *CropSpec    `json:"crop,omitempty"`
	Rotate  *RotateSpec  `json:"rotate,omitempty"`
	Quality *QualitySpec `json:"quality,omitempty"`
}

// IsZero reports whether the spec requests no transformation at all.
func (s EditSpec) IsZero() bool {
	return s.Cut == nil && s.Crop == nil && s.Rotate == nil && s.Quality == nil
}

// Validate rejects malformed edit parameters before anything is enqueued.
func (s EditSpec) Validate() error {
	if s.IsZero() {
		return services.Wrap(services.ErrValidation, "editor", "spec", "no edit operation requested", nil)
	}
	if c := s.Cut; c != nil {
		if c.Start < 0 || c.End <= c.Start {
			return services.Wrap(services.ErrValidation, "editor", "spec", fmt.Sprintf("cut range %d-%d is invalid", c.Start, c.End), nil)
		}
	}
	if c := s.Crop; c != nil {
		if c.Width <= 0 || c.Height <= 0 || c.X < 0 || c.Y < 0 {
			return services.Wrap(services.ErrValidation, "editor", "spec", "crop dimensions must be positive and offsets non-negative", nil)
		}
	}
	if r := s.Rotate; r != nil {
		if r.Degree == 0 || r.Degree <= -360 || r.Degree >= 360 {
			return services.Wrap(services.ErrValidation, "editor", "spec", fmt.Sprintf("rotate degree %d is invalid", r.Degree), nil)
		}
	}
	if q := s.Quality; q != nil {
		if q.CRF < 0 || q.CRF > 51 {
			return services.Wrap(services.ErrValidation, "editor", "spec", fmt.Sprintf("quality crf %d outside 0-51", q.CRF), nil)
		}
	}
	return nil
}

// FrameSeq is a finite, non-restartable sequence of produced frames,
// consumed in the database/sql rows style.
type FrameSeq interface {
	// Next advances to the next frame, returning false when the sequence is
	// exhausted or failed.
	Next() bool
	// Frame returns the current frame bytes and metadata.
	Frame() ([]byte, ImageMeta)
	// Err returns the first error encountered while producing frames.
	Err() error
	// Close releases resources backing the sequence.
	Close() error
}

// Editor is the video transformation capability. Implementations are pure
// with respect to the stores: bytes in, bytes out.
type Editor interface {
	// Probe inspects media bytes and returns their structured metadata.
	Probe(ctx context.Context, data []byte) (*projects.Metadata, error)
	// ProbeImage inspects image bytes and returns their dimensions and size.
	ProbeImage(ctx context.Context, data []byte) (*ImageMeta, error)
	// Edit applies the spec and returns the transformed bytes plus their
	// fresh probe result.
	Edit(ctx context.Context, data []byte, meta *projects.Metadata, spec EditSpec) ([]byte, *projects.Metadata, error)
	// CaptureFrame extracts a single frame at the given timestamp (seconds).
	CaptureFrame(ctx context.Context, data []byte, meta *projects.Metadata, timestamp float64) ([]byte, *ImageMeta, error)
	// CaptureTimeline produces count frames spaced evenly across the media.
	CaptureTimeline(ctx context.Context, data []byte, meta *projects.Metadata, count int) (FrameSeq, error)
}
