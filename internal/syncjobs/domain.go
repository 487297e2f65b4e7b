// Package syncjobs persists bulk export/import job records and exposes
// their status over HTTP.
package syncjobs

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind distinguishes the two bulk pipelines.
type Kind string

const (
	// KindExport is a bulk adjustment export job.
	KindExport Kind = "export"
	// KindImport is a bulk adjustment import job.
	KindImport Kind = "import"
)

// Status is a job's lifecycle state. done and error are terminal; error
// means at least one group failed or the run aborted.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// GroupError records one failed import group on the job record.
type GroupError struct {
	GroupKey string `json:"groupKey"`
	Message  string `json:"message"`
}

// Job is the persisted record of one bulk run.
type Job struct {
	ID           string          `json:"id"`
	CredentialID int64           `json:"credentialId"`
	Kind         Kind            `json:"kind"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	SuccessCount int             `json:"successCount"`
	FailedCount  int             `json:"failedCount"`
	Errors       []GroupError    `json:"errors,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ResultPath   string          `json:"resultPath,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// ErrNotFound indicates an unknown job id.
var ErrNotFound = errors.New("syncjobs: not found")
