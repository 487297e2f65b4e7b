package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/stoklink/stoklink/internal/accurate"
	"github.com/stoklink/stoklink/internal/adjustments"
	"github.com/stoklink/stoklink/internal/credentials"
	"github.com/stoklink/stoklink/internal/syncjobs"
)

// PipelineRunner executes queued export/import jobs and the session
// keep-alive cron. Every handler is wrapped with asynq.SkipRetry on
// failure: a failed pipeline run is recorded on the job record, and a
// blind retry against the ERP would double-submit imports.
type PipelineRunner struct {
	creds     *credentials.Service
	pipelines *adjustments.Service
	jobs      syncjobs.Repository
	exportDir string
	logger    *slog.Logger
}

// NewPipelineRunner constructs the runner.
func NewPipelineRunner(creds *credentials.Service, pipelines *adjustments.Service, jobs syncjobs.Repository, exportDir string, logger *slog.Logger) *PipelineRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineRunner{
		creds:     creds,
		pipelines: pipelines,
		jobs:      jobs,
		exportDir: exportDir,
		logger:    logger,
	}
}

// Handlers returns the task registrations for this runner.
func (p *PipelineRunner) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAdjustmentExport, Handler: p.HandleExport},
		{Type: TaskAdjustmentImport, Handler: p.HandleImport},
		{Type: TaskSessionKeepAlive, Handler: p.HandleSessionKeepAlive},
	}
}

// HandleExport runs one bulk export: walk the date range, render the
// workbook and store it under the export directory keyed by job id.
func (p *PipelineRunner) HandleExport(ctx context.Context, task *asynq.Task) error {
	var payload ExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode export payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := p.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		return fmt.Errorf("mark running: %w: %w", err, asynq.SkipRetry)
	}

	var records []adjustments.ExportRecord
	err := p.creds.Execute(ctx, payload.CredentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		records, err = p.pipelines.Export(ctx, creds, payload.StartDate, payload.EndDate, payload.Limit)
		return err
	})
	if err != nil {
		return p.fail(ctx, payload.JobID, "export", err)
	}

	workbook, err := adjustments.WriteWorkbook(records)
	if err != nil {
		return p.fail(ctx, payload.JobID, "export workbook", err)
	}
	path := filepath.Join(p.exportDir, payload.JobID+".xlsx")
	if err := workbook.SaveAs(path); err != nil {
		return p.fail(ctx, payload.JobID, "export save", err)
	}

	if err := p.jobs.MarkDone(ctx, payload.JobID, len(records), 0, nil, path); err != nil {
		return fmt.Errorf("mark done: %w: %w", err, asynq.SkipRetry)
	}
	p.logger.Info("export job finished",
		slog.String("job_id", payload.JobID),
		slog.Int("records", len(records)),
		slog.String("path", path),
	)
	return nil
}

// HandleImport runs one bulk import. Per-group failures are part of the
// result, not a handler error; only an aborted run marks the job failed.
func (p *PipelineRunner) HandleImport(ctx context.Context, task *asynq.Task) error {
	var payload ImportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode import payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := p.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		return fmt.Errorf("mark running: %w: %w", err, asynq.SkipRetry)
	}

	var result adjustments.ImportResult
	err := p.creds.Execute(ctx, payload.CredentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		result, err = p.pipelines.Import(ctx, creds, payload.Rows, adjustments.ImportOptions{
			UseAutoNumbering: payload.UseAutoNumbering,
		})
		return err
	})
	if err != nil {
		return p.fail(ctx, payload.JobID, "import", err)
	}

	groupErrors := make([]syncjobs.GroupError, 0, len(result.Errors))
	for _, e := range result.Errors {
		groupErrors = append(groupErrors, syncjobs.GroupError{GroupKey: e.GroupKey, Message: e.Message})
	}
	if err := p.jobs.MarkDone(ctx, payload.JobID, result.SuccessCount, result.FailedCount, groupErrors, ""); err != nil {
		return fmt.Errorf("mark done: %w: %w", err, asynq.SkipRetry)
	}
	p.logger.Info("import job finished",
		slog.String("job_id", payload.JobID),
		slog.Int("succeeded", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
	)
	return nil
}

// HandleSessionKeepAlive reopens the session for every credential so the
// host/session pairs stay warm between user-initiated calls. Failures are
// logged per credential and never abort the sweep.
func (p *PipelineRunner) HandleSessionKeepAlive(ctx context.Context, _ *asynq.Task) error {
	creds, err := p.creds.List(ctx)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}
	for _, cred := range creds {
		if _, err := p.creds.RefreshSession(ctx, cred.ID); err != nil {
			p.logger.Warn("session keep-alive failed",
				slog.Int64("credential_id", cred.ID),
				slog.String("label", cred.Label),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (p *PipelineRunner) fail(ctx context.Context, jobID, stage string, cause error) error {
	if err := p.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		p.logger.Error("mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	return fmt.Errorf("%s: %w: %w", stage, cause, asynq.SkipRetry)
}
