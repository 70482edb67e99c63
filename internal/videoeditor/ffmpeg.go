package videoeditor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reel/internal/projects"
	"reel/internal/services"
)

// FFmpeg implements Editor by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
}

// NewFFmpeg returns an Editor backed by the given binaries. Empty values
// fall back to the binaries found on PATH.
func NewFFmpeg(ffmpegBin, ffprobeBin string) *FFmpeg {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	return &FFmpeg{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin}
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	NBFrames      string `json:"nb_frames"`
	RFrameRate    string `json:"r_frame_rate"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Size       string `json:"size"`
}

// Probe runs ffprobe over the media bytes and maps the first video stream
// plus the container format into Metadata.
func (f *FFmpeg) Probe(ctx context.Context, data []byte) (*projects.Metadata, error) {
	in, cleanup, err := writeTemp(data, "reel-probe-*")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return f.probeFile(ctx, in)
}

func (f *FFmpeg) probeFile(ctx context.Context, path string) (*projects.Metadata, error) {
	cmd := exec.CommandContext(ctx, f.ffprobeBin,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "editor", "probe", strings.TrimSpace(stderr.String()), err)
	}
	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "editor", "probe", "unparseable ffprobe output", err)
	}
	var video *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return nil, services.Wrap(services.ErrValidation, "editor", "probe", "no video stream found", nil)
	}
	meta := &projects.Metadata{
		CodecName:     video.CodecName,
		CodecLongName: video.CodecLongName,
		Width:         video.Width,
		Height:        video.Height,
		FrameRate:     video.RFrameRate,
		FormatName:    out.Format.FormatName,
	}
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	meta.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	meta.NBFrames, _ = strconv.ParseInt(video.NBFrames, 10, 64)
	meta.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	return meta, nil
}

// ProbeImage decodes just the image header to learn dimensions.
func (f *FFmpeg) ProbeImage(_ context.Context, data []byte) (*ImageMeta, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "editor", "probe_image", "undecodable image", err)
	}
	return &ImageMeta{Width: cfg.Width, Height: cfg.Height, Size: int64(len(data))}, nil
}

// Edit applies the spec as a single ffmpeg invocation and probes the result.
func (f *FFmpeg) Edit(ctx context.Context, data []byte, meta *projects.Metadata, spec EditSpec) ([]byte, *projects.Metadata, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	ext := containerExt(meta)
	in, cleanupIn, err := writeTemp(data, "reel-edit-in-*"+ext)
	if err != nil {
		return nil, nil, err
	}
	defer cleanupIn()
	outDir, err := os.MkdirTemp("", "reel-edit-out-")
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "editor", "edit", "temp dir", err)
	}
	defer os.RemoveAll(outDir)
	outPath := filepath.Join(outDir, "out"+ext)

	args := []string{"-hide_banner", "-y", "-i", in}
	if c := spec.Cut; c != nil {
		args = append(args, "-ss", strconv.Itoa(c.Start), "-to", strconv.Itoa(c.End))
	}
	if filter := buildFilter(spec); filter != "" {
		args = append(args, "-filter:v", filter)
	}
	if q := spec.Quality; q != nil {
		args = append(args, "-crf", strconv.Itoa(q.CRF))
	}
	args = append(args, outPath)

	if err := f.run(ctx, "edit", args); err != nil {
		return nil, nil, err
	}
	edited, err := os.ReadFile(outPath)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "editor", "edit", "read output", err)
	}
	newMeta, err := f.probeFile(ctx, outPath)
	if err != nil {
		return nil, nil, err
	}
	return edited, newMeta, nil
}

// CaptureFrame extracts one frame at the given timestamp as PNG.
func (f *FFmpeg) CaptureFrame(ctx context.Context, data []byte, meta *projects.Metadata, timestamp float64) ([]byte, *ImageMeta, error) {
	ext := containerExt(meta)
	in, cleanup, err := writeTemp(data, "reel-frame-in-*"+ext)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()
	outDir, err := os.MkdirTemp("", "reel-frame-out-")
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "editor", "capture_frame", "temp dir", err)
	}
	defer os.RemoveAll(outDir)
	outPath := filepath.Join(outDir, "frame.png")

	args := []string{
		"-hide_banner", "-y",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", in,
		"-frames:v", "1",
		outPath,
	}
	if err := f.run(ctx, "capture_frame", args); err != nil {
		return nil, nil, err
	}
	frame, err := os.ReadFile(outPath)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrExternalTool, "editor", "capture_frame", "no frame produced", err)
	}
	imgMeta, err := f.ProbeImage(ctx, frame)
	if err != nil {
		return nil, nil, err
	}
	return frame, imgMeta, nil
}

// CaptureTimeline extracts count evenly spaced frames. The heavy ffmpeg run
// happens up front; frame bytes are read lazily as the sequence advances.
func (f *FFmpeg) CaptureTimeline(ctx context.Context, data []byte, meta *projects.Metadata, count int) (FrameSeq, error) {
	if count <= 0 {
		return nil, services.Wrap(services.ErrValidation, "editor", "capture_timeline", fmt.Sprintf("frame count %d is invalid", count), nil)
	}
	duration := 0.0
	if meta != nil {
		duration = meta.Duration
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "editor", "capture_timeline", "media has no usable duration", nil)
	}
	ext := containerExt(meta)
	in, cleanupIn, err := writeTemp(data, "reel-timeline-in-*"+ext)
	if err != nil {
		return nil, err
	}
	defer cleanupIn()
	outDir, err := os.MkdirTemp("", "reel-timeline-out-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "editor", "capture_timeline", "temp dir", err)
	}

	interval := duration / float64(count)
	args := []string{
		"-hide_banner", "-y",
		"-i", in,
		"-vf", fmt.Sprintf("fps=1/%0.6f", interval),
		"-frames:v", strconv.Itoa(count),
		filepath.Join(outDir, "frame_%02d.png"),
	}
	if err := f.run(ctx, "capture_timeline", args); err != nil {
		os.RemoveAll(outDir)
		return nil, err
	}
	return &diskFrameSeq{editor: f, dir: outDir, count: count}, nil
}

func (f *FFmpeg) run(ctx context.Context, operation string, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return services.Wrap(services.ErrExternalTool, "editor", operation, detail, err)
	}
	return nil
}

// diskFrameSeq walks the numbered frame files ffmpeg left behind.
type diskFrameSeq struct {
	editor *FFmpeg
	dir    string
	count  int

	index int
	frame []byte
	meta  ImageMeta
	err   error
}

func (s *diskFrameSeq) Next() bool {
	if s.err != nil || s.index >= s.count {
		return false
	}
	s.index++
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%02d.png", s.index))
	data, err := os.ReadFile(path)
	if err != nil {
		s.err = services.Wrap(services.ErrExternalTool, "editor", "capture_timeline",
			fmt.Sprintf("frame %d missing", s.index), err)
		return false
	}
	meta, err := s.editor.ProbeImage(context.Background(), data)
	if err != nil {
		s.err = err
		return false
	}
	s.frame = data
	s.meta = *meta
	return true
}

func (s *diskFrameSeq) Frame() ([]byte, ImageMeta) { return s.frame, s.meta }

func (s *diskFrameSeq) Err() error { return s.err }

func (s *diskFrameSeq) Close() error { return os.RemoveAll(s.dir) }

func buildFilter(spec EditSpec) string {
	var filters []string
	if c := spec.Crop; c != nil {
		filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y))
	}
	if r := spec.Rotate; r != nil {
		switch ((r.Degree % 360) + 360) % 360 {
		case 90:
			filters = append(filters, "transpose=1")
		case 180:
			filters = append(filters, "transpose=1,transpose=1")
		case 270:
			filters = append(filters, "transpose=2")
		default:
			filters = append(filters, fmt.Sprintf("rotate=%d*PI/180", r.Degree))
		}
	}
	return strings.Join(filters, ",")
}

func containerExt(meta *projects.Metadata) string {
	if meta == nil || meta.FormatName == "" {
		return ".mp4"
	}
	// ffprobe reports demuxer lists like "mov,mp4,m4a,3gp,3g2,mj2".
	first := strings.Split(meta.FormatName, ",")[0]
	switch first {
	case "mov", "mp4", "m4a":
		return ".mp4"
	case "matroska", "webm":
		return ".mkv"
	case "avi":
		return ".avi"
	default:
		return ".mp4"
	}
}

func writeTemp(data []byte, pattern string) (string, func(), error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, services.Wrap(services.ErrTransient, "editor", "temp", "create temp file", err)
	}
	path := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(path)
		return "", nil, services.Wrap(services.ErrTransient, "editor", "temp", "write temp file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", nil, services.Wrap(services.ErrTransient, "editor", "temp", "close temp file", err)
	}
	return path, func() { os.Remove(path) }, nil
}
