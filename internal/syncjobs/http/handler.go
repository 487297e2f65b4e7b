package syncjobshttp

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stoklink/stoklink/internal/platform/httpx"
	"github.com/stoklink/stoklink/internal/syncjobs"
)

// Handler exposes job status and export downloads.
type Handler struct {
	repo   syncjobs.Repository
	logger *slog.Logger
}

// NewHandler constructs the jobs HTTP handler.
func NewHandler(repo syncjobs.Repository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/result", h.downloadResult)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	jobs, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list jobs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []syncjobs.Job{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

// downloadResult streams a finished export's workbook.
func (h *Handler) downloadResult(w http.ResponseWriter, r *http.Request) {
	job, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if job.ResultPath == "" {
		httpx.Problem(w, http.StatusNotFound, "No Result", "the job has no downloadable result")
		return
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		h.logger.Warn("export file missing", slog.String("job_id", job.ID), slog.String("path", job.ResultPath))
		httpx.Problem(w, http.StatusGone, "Result Expired", "the export file is no longer available")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ID+`.xlsx"`)
	http.ServeFile(w, r, job.ResultPath)
}
