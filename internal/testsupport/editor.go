package testsupport

import (
	"context"
	"fmt"
	"sync"

	"reel/internal/projects"
	"reel/internal/services"
	"reel/internal/videoeditor"
)

// FakeEditor is a deterministic Editor for pipeline tests. Zero value works;
// the Fail fields inject errors for retry and rollback scenarios.
type FakeEditor struct {
	mu sync.Mutex

	// ProbeMeta is returned by Probe; a sensible default is used when nil.
	ProbeMeta *projects.Metadata
	// ProbeErr fails every Probe call.
	ProbeErr error
	// FailEditAttempts fails the first N Edit calls with a transient error.
	FailEditAttempts int
	// EditErr overrides the injected Edit failure.
	EditErr error
	// FailFrameAt makes timeline sequences error at the given 1-based frame.
	FailFrameAt int

	editCalls    int
	captureCalls int
}

var _ videoeditor.Editor = (*FakeEditor)(nil)

// EditCalls reports how many Edit invocations occurred.
func (f *FakeEditor) EditCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editCalls
}

func (f *FakeEditor) defaultMeta() *projects.Metadata {
	if f.ProbeMeta != nil {
		copied := *f.ProbeMeta
		return &copied
	}
	return &projects.Metadata{
		CodecName: "h264",
		Width:     1920,
		Height:    1080,
		Duration:  12.5,
		BitRate:   4_000_000,
		Size:      1 << 20,
	}
}

func (f *FakeEditor) Probe(_ context.Context, data []byte) (*projects.Metadata, error) {
	if f.ProbeErr != nil {
		return nil, f.ProbeErr
	}
	meta := f.defaultMeta()
	meta.Size = int64(len(data))
	return meta, nil
}

func (f *FakeEditor) ProbeImage(_ context.Context, data []byte) (*videoeditor.ImageMeta, error) {
	return &videoeditor.ImageMeta{Width: 320, Height: 180, Size: int64(len(data))}, nil
}

func (f *FakeEditor) Edit(_ context.Context, data []byte, _ *projects.Metadata, spec videoeditor.EditSpec) ([]byte, *projects.Metadata, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	f.editCalls++
	call := f.editCalls
	f.mu.Unlock()

	if call <= f.FailEditAttempts {
		if f.EditErr != nil {
			return nil, nil, f.EditErr
		}
		return nil, nil, services.Wrap(services.ErrTransient, "editor", "edit",
			fmt.Sprintf("injected failure on attempt %d", call), nil)
	}
	edited := append([]byte(fmt.Sprintf("edited-%d:", call)), data...)
	meta := f.defaultMeta()
	meta.Size = int64(len(edited))
	if spec.Cut != nil {
		meta.Duration = float64(spec.Cut.End - spec.Cut.Start)
	}
	return edited, meta, nil
}

func (f *FakeEditor) CaptureFrame(_ context.Context, _ []byte, _ *projects.Metadata, timestamp float64) ([]byte, *videoeditor.ImageMeta, error) {
	f.mu.Lock()
	f.captureCalls++
	f.mu.Unlock()
	frame := []byte(fmt.Sprintf("frame@%0.2f", timestamp))
	return frame, &videoeditor.ImageMeta{Width: 320, Height: 180, Size: int64(len(frame))}, nil
}

func (f *FakeEditor) CaptureTimeline(_ context.Context, _ []byte, _ *projects.Metadata, count int) (videoeditor.FrameSeq, error) {
	if count <= 0 {
		return nil, services.Wrap(services.ErrValidation, "editor", "capture_timeline", "frame count must be positive", nil)
	}
	return &fakeFrameSeq{count: count, failAt: f.FailFrameAt}, nil
}

type fakeFrameSeq struct {
	count  int
	failAt int

	index int
	frame []byte
	meta  videoeditor.ImageMeta
	err   error
}

func (s *fakeFrameSeq) Next() bool {
	if s.err != nil || s.index >= s.count {
		return false
	}
	s.index++
	if s.failAt > 0 && s.index >= s.failAt {
		s.err = services.Wrap(services.ErrTransient, "editor", "capture_timeline",
			fmt.Sprintf("injected failure at frame %d", s.index), nil)
		return false
	}
	s.frame = []byte(fmt.Sprintf("timeline-%02d", s.index))
	s.meta = videoeditor.ImageMeta{Width: 160, Height: 90, Size: int64(len(s.frame))}
	return true
}

func (s *fakeFrameSeq) Frame() ([]byte, videoeditor.ImageMeta) { return s.frame, s.meta }

func (s *fakeFrameSeq) Err() error { return s.err }

func (s *fakeFrameSeq) Close() error { return nil }
