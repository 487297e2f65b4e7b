package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/stoklink/stoklink/internal/adjustments"
)

const (
	// QueueSync is the queue all ERP sync jobs run on. A single queue keeps
	// job ordering roughly FIFO against one account-wide rate limit.
	QueueSync = "sync"
	// TaskAdjustmentExport walks a date range and produces a workbook.
	TaskAdjustmentExport = "adjustment:export"
	// TaskAdjustmentImport persists grouped adjustment documents.
	TaskAdjustmentImport = "adjustment:import"
	// TaskSessionKeepAlive reopens every credential's ERP session.
	TaskSessionKeepAlive = "session:keepalive"
)

// ExportPayload describes one bulk export run.
type ExportPayload struct {
	JobID        string `json:"jobId"`
	CredentialID int64  `json:"credentialId"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Limit        int    `json:"limit,omitempty"`
}

// ImportPayload describes one bulk import run. Rows were validated at
// enqueue time; the pipeline does not re-validate.
type ImportPayload struct {
	JobID            string                  `json:"jobId"`
	CredentialID     int64                   `json:"credentialId"`
	Rows             []adjustments.ImportRow `json:"rows"`
	UseAutoNumbering bool                    `json:"useAutoNumbering"`
}

// NewAdjustmentExportTask constructs an export task.
func NewAdjustmentExportTask(payload ExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAdjustmentExport, data), nil
}

// NewAdjustmentImportTask constructs an import task.
func NewAdjustmentImportTask(payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAdjustmentImport, data), nil
}

// NewSessionKeepAliveTask constructs the keep-alive cron task.
func NewSessionKeepAliveTask() *asynq.Task {
	return asynq.NewTask(TaskSessionKeepAlive, nil)
}
