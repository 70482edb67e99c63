package projects

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata is the structured probe result for a stored media blob. Field
// names follow the ffprobe vocabulary so documents stay compatible with the
// wire format clients already consume.
type Metadata struct {
	CodecName     string  `json:"codec_name"`
	CodecLongName string  `json:"codec_long_name,omitempty"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Duration      float64 `json:"duration"`
	BitRate       int64   `json:"bit_rate"`
	NBFrames      int64   `json:"nb_frames"`
	FrameRate     string  `json:"r_frame_rate,omitempty"`
	FormatName    string  `json:"format_name,omitempty"`
	Size          int64   `json:"size"`
}

// Thumbnail describes one derived image blob.
type Thumbnail struct {
	Filename   string `json:"filename"`
	StorageRef string `json:"storage_ref"`
	MimeType   string `json:"mime_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	URL        string `json:"url,omitempty"`
}

// Project is one document per project version.
type Project struct {
	ID               string
	StorageRef       string
	Filename         string
	Folder           string
	MimeType         string
	OriginalFilename string
	Metadata         *Metadata
	Version          int
	Parent           string
	Processing       bool
	Thumbnails       map[string][]Thumbnail
	PreviewThumbnail *Thumbnail
	URL              string
	ClientInfo       string
	CreateDate       time.Time
	UpdatedAt        time.Time
}

// IsFork reports whether the project is a derived version rather than an
// original upload. Only version-1 projects may be forked; only forks may be
// edited in place.
func (p *Project) IsFork() bool {
	return p.Version >= 2
}

// TimelineSet returns the stored thumbnail list for the requested count, or
// nil when none has been generated.
func (p *Project) TimelineSet(count int) []Thumbnail {
	if p == nil || len(p.Thumbnails) == 0 {
		return nil
	}
	return p.Thumbnails[strconv.Itoa(count)]
}

// ThumbnailRefs returns the storage refs of every timeline thumbnail across
// all stored sets.
func (p *Project) ThumbnailRefs() []string {
	if p == nil {
		return nil
	}
	var refs []string
	for _, set := range p.Thumbnails {
		for _, thumb := range set {
			if thumb.StorageRef != "" {
				refs = append(refs, thumb.StorageRef)
			}
		}
	}
	return refs
}

// PublicURL joins the configured public base URL with a storage ref.
// Returns empty when no base URL is configured.
func PublicURL(baseURL, storageRef string) string {
	if baseURL == "" || storageRef == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(storageRef, "/")
}

// BaseName returns the filename without its extension, the stem derived
// artifacts are named after.
func (p *Project) BaseName() string {
	name := p.Filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

// ValidateLineage enforces the two-level version tree: version 1 has no
// parent, version >= 2 must name one, and versions below 1 are meaningless.
func (p *Project) ValidateLineage() error {
	switch {
	case p.Version < 1:
		return fmt.Errorf("project %s: version %d is invalid", p.ID, p.Version)
	case p.Version == 1 && p.Parent != "":
		return fmt.Errorf("project %s: version 1 must not have a parent", p.ID)
	case p.Version >= 2 && p.Parent == "":
		return fmt.Errorf("project %s: version %d requires a parent", p.ID, p.Version)
	}
	return nil
}
