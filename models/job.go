package models

import (
	"encoding/json"
	"time"
)

// JobStatus tracks an async bulk job through the worker
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// BulkJob is the persisted state of a queued bulk run
type BulkJob struct {
	ID         string          `json:"id"`
	Entity     Entity          `json:"entity"`
	Operation  BulkOperation   `json:"operation"`
	Status     JobStatus       `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Response   interface{}     `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
}
