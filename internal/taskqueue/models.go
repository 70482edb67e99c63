package taskqueue

import (
	"encoding/json"
	"time"
)

// Job kinds dispatched by the daemon.
const (
	KindEdit       = "edit"
	KindThumbnails = "thumbnails"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
	StatusExhausted Status = "exhausted"
)

// Job is one unit of asynchronous work against a project. MaxRetries counts
// automatic re-executions after the initial run, so a job executes at most
// MaxRetries+1 times.
type Job struct {
	ID         int64
	Kind       string
	ProjectID  string
	Payload    json.RawMessage
	Status     Status
	Attempts   int
	MaxRetries int
	NextRunAt  time.Time
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DecodePayload unmarshals the job payload into dst.
func (j *Job) DecodePayload(dst any) error {
	if len(j.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(j.Payload, dst)
}

// Terminal reports whether the job will never run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExhausted
}
