package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reel/internal/projects"
	"reel/internal/videoeditor"
)

const clientUserAgent = "reel-cli/1.0"

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

type projectPayload struct {
	ID               string                          `json:"id"`
	Filename         string                          `json:"filename"`
	Folder           string                          `json:"folder"`
	MimeType         string                          `json:"mime_type"`
	OriginalFilename string                          `json:"original_filename"`
	Metadata         *projects.Metadata              `json:"metadata"`
	Version          int                             `json:"version"`
	Parent           string                          `json:"parent"`
	Processing       bool                            `json:"processing"`
	Thumbnails       map[string][]projects.Thumbnail `json:"thumbnails"`
	PreviewThumbnail *projects.Thumbnail             `json:"preview_thumbnail"`
	URL              string                          `json:"url"`
	CreateDate       time.Time                       `json:"create_date"`
}

type jobPayload struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

type enqueuePayload struct {
	Project *projectPayload `json:"project"`
	Job     *jobPayload     `json:"job"`
}

type listPayload struct {
	Projects []projectPayload `json:"projects"`
	Total    int              `json:"total"`
}

type activityPayload struct {
	Entries []struct {
		Action     string    `json:"action"`
		Detail     string    `json:"detail"`
		ClientInfo string    `json:"client_info"`
		CreatedAt  time.Time `json:"created_at"`
	} `json:"entries"`
}

type jobsPayload struct {
	Jobs []jobPayload `json:"jobs"`
}

type statusPayload struct {
	Running    bool   `json:"running"`
	ListenAddr string `json:"listen_addr"`
	DataDir    string `json:"data_dir"`
}

type thumbnailsPayload struct {
	Thumbnails []projects.Thumbnail `json:"thumbnails"`
}

func (c *apiClient) do(method, path string, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", clientUserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&failure); decodeErr == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) upload(path string, data []byte) (*projectPayload, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var out enqueuePayload
	if err := c.do(http.MethodPost, "/api/projects", writer.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	if out.Project == nil {
		return nil, fmt.Errorf("daemon returned no project")
	}
	return out.Project, nil
}

func (c *apiClient) list(offset, limit int) (*listPayload, error) {
	var out listPayload
	path := fmt.Sprintf("/api/projects?offset=%d&limit=%d", offset, limit)
	if err := c.do(http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) get(id string) (*projectPayload, error) {
	var out projectPayload
	if err := c.do(http.MethodGet, "/api/projects/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) deleteProject(id string) error {
	return c.do(http.MethodDelete, "/api/projects/"+url.PathEscape(id), "", nil, nil)
}

func (c *apiClient) edit(id string, spec videoeditor.EditSpec, fork bool) (*enqueuePayload, error) {
	encoded, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	method := http.MethodPut
	if fork {
		method = http.MethodPost
	}
	var out enqueuePayload
	if err := c.do(method, "/api/projects/"+url.PathEscape(id)+"/edit", "application/json", bytes.NewReader(encoded), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) thumbnails(id string, count int, force bool) (*thumbnailsPayload, *jobPayload, error) {
	path := "/api/projects/" + url.PathEscape(id) + "/thumbnails?count=" + strconv.Itoa(count)
	if force {
		path += "&force=1"
	}
	var out struct {
		Thumbnails []projects.Thumbnail `json:"thumbnails"`
		Job        *jobPayload          `json:"job"`
	}
	if err := c.do(http.MethodPost, path, "", nil, &out); err != nil {
		return nil, nil, err
	}
	return &thumbnailsPayload{Thumbnails: out.Thumbnails}, out.Job, nil
}

func (c *apiClient) previewFromImage(id string, image []byte, filename string) (*projects.Thumbnail, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	var out struct {
		Thumbnail projects.Thumbnail `json:"thumbnail"`
	}
	if err := c.do(http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/preview", writer.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	return &out.Thumbnail, nil
}

func (c *apiClient) previewAtTimestamp(id string, timestamp float64) (*projects.Thumbnail, error) {
	path := fmt.Sprintf("/api/projects/%s/preview?timestamp=%s",
		url.PathEscape(id), strconv.FormatFloat(timestamp, 'f', -1, 64))
	var out struct {
		Thumbnail projects.Thumbnail `json:"thumbnail"`
	}
	if err := c.do(http.MethodPost, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Thumbnail, nil
}

func (c *apiClient) activity(id string, limit int) (*activityPayload, error) {
	var out activityPayload
	path := fmt.Sprintf("/api/projects/%s/activity?limit=%d", url.PathEscape(id), limit)
	if err := c.do(http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) jobs(id string, limit int) (*jobsPayload, error) {
	var out jobsPayload
	path := fmt.Sprintf("/api/projects/%s/jobs?limit=%d", url.PathEscape(id), limit)
	if err := c.do(http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) status() (*statusPayload, error) {
	var out statusPayload
	if err := c.do(http.MethodGet, "/api/status", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
