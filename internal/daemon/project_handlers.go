package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/thumbnails"
	"reel/internal/videoeditor"
)

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyProcessing):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) listProjects(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	docs, total, err := s.daemon.service.List(r.Context(), offset, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views := make([]projectView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, viewProject(doc))
	}
	s.writeJSON(w, http.StatusOK, projectListResponse{
		Projects: views,
		Total:    total,
		Offset:   offset,
		Limit:    limit,
	})
}

// uploadProject accepts either a multipart form with a "file" part or a raw
// body with a filename query parameter.
func (s *apiServer) uploadProject(w http.ResponseWriter, r *http.Request) {
	var (
		filename string
		data     []byte
	)
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "missing file part")
			return
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		filename = header.Filename
	} else {
		var err error
		data, err = readBody(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		filename = strings.TrimSpace(r.URL.Query().Get("filename"))
	}
	if filename == "" {
		s.writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	doc, err := s.daemon.service.Upload(r.Context(), filename, data, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view := viewProject(doc)
	s.writeJSON(w, http.StatusCreated, enqueueResponse{Project: &view})
}

func (s *apiServer) getProject(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := s.daemon.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewProject(doc))
}

func (s *apiServer) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.daemon.service.Delete(r.Context(), id, clientInfo(r)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeEditSpec(r *http.Request) (videoeditor.EditSpec, error) {
	var spec videoeditor.EditSpec
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		return spec, services.Wrap(services.ErrValidation, "http", "edit", "undecodable edit spec", err)
	}
	return spec, nil
}

func (s *apiServer) editInPlace(w http.ResponseWriter, r *http.Request, id string) {
	spec, err := decodeEditSpec(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	job, err := s.daemon.service.EnqueueEditInPlace(r.Context(), id, spec, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view := viewJob(job)
	s.writeJSON(w, http.StatusAccepted, enqueueResponse{Job: &view})
}

func (s *apiServer) editFork(w http.ResponseWriter, r *http.Request, id string) {
	spec, err := decodeEditSpec(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	fork, job, err := s.daemon.service.EnqueueEditFork(r.Context(), id, spec, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	projectView := viewProject(fork)
	jobView := viewJob(job)
	s.writeJSON(w, http.StatusAccepted, enqueueResponse{Project: &projectView, Job: &jobView})
}

func (s *apiServer) requestTimeline(w http.ResponseWriter, r *http.Request, id string) {
	count := queryInt(r, "count", 0)
	force := queryBool(r, "force")

	existing, job, err := s.daemon.service.EnqueueTimelineThumbnails(r.Context(), id, count, force, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeJSON(w, http.StatusOK, thumbnailListResponse{Thumbnails: existing})
		return
	}
	view := viewJob(job)
	s.writeJSON(w, http.StatusAccepted, enqueueResponse{Job: &view})
}

// requestPreview accepts an uploaded image part or a timestamp query.
func (s *apiServer) requestPreview(w http.ResponseWriter, r *http.Request, id string) {
	var req thumbnails.PreviewRequest
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "missing file part")
			return
		}
		defer file.Close()
		req.Image, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
	} else {
		value := strings.TrimSpace(r.URL.Query().Get("timestamp"))
		if value == "" {
			s.writeError(w, http.StatusBadRequest, "timestamp or image file is required")
			return
		}
		timestamp, err := strconv.ParseFloat(value, 64)
		if err != nil || timestamp < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid timestamp")
			return
		}
		req.Timestamp = timestamp
	}

	thumb, err := s.daemon.service.RunPreviewThumbnail(r.Context(), id, req, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, thumbnailResponse{Thumbnail: *thumb})
}

// serveContent streams the stored media, honoring a single-range Range
// header for seekable playback.
func (s *apiServer) serveContent(w http.ResponseWriter, r *http.Request, id string) {
	rangeHeader := strings.TrimSpace(r.Header.Get("Range"))
	if rangeHeader == "" {
		data, doc, err := s.daemon.service.Content(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", doc.MimeType)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	start, end, ok := parseByteRange(rangeHeader)
	if !ok {
		s.writeError(w, http.StatusRequestedRangeNotSatisfiable, "unsupported range")
		return
	}
	doc, err := s.daemon.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	size := int64(0)
	if doc.Metadata != nil {
		size = doc.Metadata.Size
	}
	if end < 0 || (size > 0 && end >= size) {
		if size > 0 {
			end = size - 1
		} else {
			end = start + (4 << 20) - 1
		}
	}
	data, doc, err := s.daemon.service.ContentRange(r.Context(), id, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if size > 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+int64(len(data))-1, size))
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/*", start, start+int64(len(data))-1))
	}
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(data)
}

// parseByteRange handles "bytes=start-end" and "bytes=start-" forms.
func parseByteRange(header string) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	endStr = strings.TrimSpace(endStr)
	if endStr == "" {
		return start, -1, true
	}
	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// serveTimelineThumbnail serves one timeline frame by its zero-based index.
func (s *apiServer) serveTimelineThumbnail(w http.ResponseWriter, r *http.Request, id, rest string) {
	index, err := strconv.Atoi(rest)
	if err != nil || index < 0 {
		s.writeError(w, http.StatusNotFound, "thumbnail not found")
		return
	}
	data, thumb, err := s.daemon.service.TimelineThumbnailContent(r.Context(), id, index)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", thumb.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// serveMedia serves stored blobs by ref, matching the URLs published on
// project documents and their thumbnails.
func (s *apiServer) serveMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/media/")
	if ref == "" {
		s.writeError(w, http.StatusNotFound, "media not found")
		return
	}
	data, err := s.daemon.service.ThumbnailContent(r.Context(), ref)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *apiServer) listActivity(w http.ResponseWriter, r *http.Request, id string) {
	limit := queryInt(r, "limit", 50)
	entries, err := s.daemon.service.Activity(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activityListResponse{Entries: viewActivity(entries)})
}

func (s *apiServer) listJobs(w http.ResponseWriter, r *http.Request, id string) {
	limit := queryInt(r, "limit", 50)
	jobs, err := s.daemon.service.Jobs(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewJob(job))
	}
	s.writeJSON(w, http.StatusOK, jobListResponse{Jobs: views})
}
