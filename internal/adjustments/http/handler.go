package adjhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stoklink/stoklink/internal/accurate"
	"github.com/stoklink/stoklink/internal/adjustments"
	"github.com/stoklink/stoklink/internal/credentials"
	"github.com/stoklink/stoklink/internal/platform/httpx"
	"github.com/stoklink/stoklink/internal/syncjobs"
	"github.com/stoklink/stoklink/jobs"
)

// Enqueuer is the slice of the queue client the handler uses.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload jobs.ExportPayload) (*asynq.TaskInfo, error)
	EnqueueImport(ctx context.Context, payload jobs.ImportPayload) (*asynq.TaskInfo, error)
}

// Handler exposes the export/import pipelines over HTTP, both synchronously
// for small ranges and through the job queue for bulk runs.
type Handler struct {
	creds     *credentials.Service
	pipelines *adjustments.Service
	jobs      syncjobs.Repository
	queue     Enqueuer
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs the adjustments HTTP handler.
func NewHandler(creds *credentials.Service, pipelines *adjustments.Service, jobRepo syncjobs.Repository, queue Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		creds:     creds,
		pipelines: pipelines,
		jobs:      jobRepo,
		queue:     queue,
		validate:  validator.New(),
		logger:    logger,
	}
}

// MountRoutes attaches adjustment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/export/preview", h.exportPreview)
	r.Get("/export.xlsx", h.exportWorkbook)
	r.Post("/export", h.exportAsync)
	r.Post("/import", h.importSync)
	r.Post("/import/async", h.importAsync)
	r.Get("/items", h.findItem)
}

type exportRequest struct {
	CredentialID int64  `json:"credentialId" validate:"required"`
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Limit        int    `json:"limit" validate:"gte=0"`
}

type importRequest struct {
	CredentialID     int64                   `json:"credentialId" validate:"required"`
	Rows             []adjustments.ImportRow `json:"rows" validate:"required,min=1,dive"`
	UseAutoNumbering bool                    `json:"useAutoNumbering"`
}

func (h *Handler) exportPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExport(w, r)
	if !ok {
		return
	}

	var records []adjustments.ExportRecord
	err := h.creds.Execute(r.Context(), req.CredentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		records, err = h.pipelines.Export(ctx, creds, req.StartDate, req.EndDate, req.Limit)
		return err
	})
	if err != nil {
		h.logger.Error("export preview", slog.Int64("credential_id", req.CredentialID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// exportWorkbook runs the export inline and streams the workbook back.
// Suited to narrow date ranges; bulk ranges should go through POST /export.
func (h *Handler) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	credentialID, err := strconv.ParseInt(q.Get("credentialId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "credentialId must be numeric")
		return
	}
	req := exportRequest{
		CredentialID: credentialID,
		StartDate:    q.Get("start"),
		EndDate:      q.Get("end"),
	}
	if raw := q.Get("limit"); raw != "" {
		req.Limit, err = strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be numeric")
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var records []adjustments.ExportRecord
	err = h.creds.Execute(r.Context(), req.CredentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		records, err = h.pipelines.Export(ctx, creds, req.StartDate, req.EndDate, req.Limit)
		return err
	})
	if err != nil {
		h.logger.Error("export workbook", slog.Int64("credential_id", req.CredentialID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	workbook, err := adjustments.WriteWorkbook(records)
	if err != nil {
		h.logger.Error("render workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("adjustments_%s_%s.xlsx", req.StartDate, req.EndDate)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := workbook.Write(w); err != nil {
		h.logger.Error("stream workbook", slog.Any("error", err))
	}
}

func (h *Handler) exportAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExport(w, r)
	if !ok {
		return
	}
	if _, err := h.creds.Get(r.Context(), req.CredentialID); err != nil {
		httpx.RespondError(w, err)
		return
	}

	payload := jobs.ExportPayload{
		JobID:        uuid.NewString(),
		CredentialID: req.CredentialID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Limit:        req.Limit,
	}
	if !h.createAndEnqueue(w, r, syncjobs.KindExport, payload.JobID, req.CredentialID, payload, func(ctx context.Context) error {
		_, err := h.queue.EnqueueExport(ctx, payload)
		return err
	}) {
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"jobId": payload.JobID})
}

func (h *Handler) importSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeImport(w, r)
	if !ok {
		return
	}

	var result adjustments.ImportResult
	err := h.creds.Execute(r.Context(), req.CredentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		result, err = h.pipelines.Import(ctx, creds, req.Rows, adjustments.ImportOptions{
			UseAutoNumbering: req.UseAutoNumbering,
		})
		return err
	})
	if err != nil {
		h.logger.Error("import", slog.Int64("credential_id", req.CredentialID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	status := http.StatusOK
	if result.FailedCount > 0 {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) importAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeImport(w, r)
	if !ok {
		return
	}
	if _, err := h.creds.Get(r.Context(), req.CredentialID); err != nil {
		httpx.RespondError(w, err)
		return
	}

	payload := jobs.ImportPayload{
		JobID:            uuid.NewString(),
		CredentialID:     req.CredentialID,
		Rows:             req.Rows,
		UseAutoNumbering: req.UseAutoNumbering,
	}
	if !h.createAndEnqueue(w, r, syncjobs.KindImport, payload.JobID, req.CredentialID, payload, func(ctx context.Context) error {
		_, err := h.queue.EnqueueImport(ctx, payload)
		return err
	}) {
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"jobId": payload.JobID, "rows": len(req.Rows)})
}

// findItem looks an item up by its code. A code with no match is a valid
// empty answer, not an error.
func (h *Handler) findItem(w http.ResponseWriter, r *http.Request) {
	credentialID, err := strconv.ParseInt(r.URL.Query().Get("credentialId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "credentialId must be numeric")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "code is required")
		return
	}

	var item *accurate.Item
	err = h.creds.Execute(r.Context(), credentialID, func(ctx context.Context, creds accurate.Credentials) error {
		var err error
		item, err = h.pipelines.FindItem(ctx, creds, code)
		return err
	})
	if err != nil {
		h.logger.Error("find item", slog.String("code", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": item, "found": item != nil})
}

func (h *Handler) decodeExport(w http.ResponseWriter, r *http.Request) (exportRequest, bool) {
	var req exportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) decodeImport(w http.ResponseWriter, r *http.Request) (importRequest, bool) {
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) createAndEnqueue(w http.ResponseWriter, r *http.Request, kind syncjobs.Kind, jobID string, credentialID int64, payload any, enqueue func(ctx context.Context) error) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal job payload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	if err := h.jobs.Create(r.Context(), syncjobs.Job{
		ID:           jobID,
		CredentialID: credentialID,
		Kind:         kind,
		Status:       syncjobs.StatusQueued,
		Payload:      raw,
	}); err != nil {
		h.logger.Error("create job record", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	if err := enqueue(r.Context()); err != nil {
		h.logger.Error("enqueue job", slog.String("job_id", jobID), slog.Any("error", err))
		if markErr := h.jobs.MarkFailed(r.Context(), jobID, "enqueue failed: "+err.Error()); markErr != nil {
			h.logger.Error("mark job failed", slog.String("job_id", jobID), slog.Any("error", markErr))
		}
		httpx.RespondError(w, err)
		return false
	}
	return true
}
