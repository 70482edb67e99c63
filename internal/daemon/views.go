package daemon

import (
	"time"

	"reel/internal/activity"
	"reel/internal/projects"
	"reel/internal/taskqueue"
)

type statusResponse struct {
	Running    bool   `json:"running"`
	ListenAddr string `json:"listen_addr"`
	DataDir    string `json:"data_dir"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type projectView struct {
	ID               string                           `json:"id"`
	Filename         string                           `json:"filename"`
	Folder           string                           `json:"folder"`
	MimeType         string                           `json:"mime_type"`
	OriginalFilename string                           `json:"original_filename"`
	Metadata         *projects.Metadata               `json:"metadata"`
	Version          int                              `json:"version"`
	Parent           string                           `json:"parent,omitempty"`
	Processing       bool                             `json:"processing"`
	Thumbnails       map[string][]projects.Thumbnail  `json:"thumbnails,omitempty"`
	PreviewThumbnail *projects.Thumbnail              `json:"preview_thumbnail,omitempty"`
	URL              string                           `json:"url,omitempty"`
	CreateDate       time.Time                        `json:"create_date"`
}

type projectListResponse struct {
	Projects []projectView `json:"projects"`
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
}

type jobView struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type jobListResponse struct {
	Jobs []jobView `json:"jobs"`
}

type activityView struct {
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	ClientInfo string    `json:"client_info,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type activityListResponse struct {
	Entries []activityView `json:"entries"`
}

type thumbnailListResponse struct {
	Thumbnails []projects.Thumbnail `json:"thumbnails"`
}

type thumbnailResponse struct {
	Thumbnail projects.Thumbnail `json:"thumbnail"`
}

type enqueueResponse struct {
	Project *projectView `json:"project,omitempty"`
	Job     *jobView     `json:"job,omitempty"`
}

func viewProject(p *projects.Project) projectView {
	return projectView{
		ID:               p.ID,
		Filename:         p.Filename,
		Folder:           p.Folder,
		MimeType:         p.MimeType,
		OriginalFilename: p.OriginalFilename,
		Metadata:         p.Metadata,
		Version:          p.Version,
		Parent:           p.Parent,
		Processing:       p.Processing,
		Thumbnails:       p.Thumbnails,
		PreviewThumbnail: p.PreviewThumbnail,
		URL:              p.URL,
		CreateDate:       p.CreateDate,
	}
}

func viewJob(j *taskqueue.Job) jobView {
	return jobView{
		ID:        j.ID,
		Kind:      j.Kind,
		Status:    string(j.Status),
		Attempts:  j.Attempts,
		LastError: j.LastError,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func viewActivity(entries []*activity.Entry) []activityView {
	views := make([]activityView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, activityView{
			Action:     entry.Action,
			Detail:     entry.Detail,
			ClientInfo: entry.ClientInfo,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return views
}
