package credhttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stoklink/stoklink/internal/credentials"
	"github.com/stoklink/stoklink/internal/platform/httpx"
)

// Handler exposes credential connect/refresh endpoints. The upstream
// gateway is expected to authenticate callers; nothing here stores
// passwords.
type Handler struct {
	service  *credentials.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the credentials HTTP handler.
func NewHandler(service *credentials.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes attaches credential routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.connect)
	r.Post("/{id}/session", h.refreshSession)
}

type connectRequest struct {
	Label           string `json:"label" validate:"required"`
	APIToken        string `json:"apiToken" validate:"required"`
	RefreshToken    string `json:"refreshToken"`
	AppKey          string `json:"appKey"`
	SignatureSecret string `json:"signatureSecret" validate:"required"`
	DBID            int64  `json:"dbId" validate:"required"`
}

// credentialView redacts tokens and secrets from API responses.
type credentialView struct {
	ID              int64     `json:"id"`
	Label           string    `json:"label"`
	DBID            int64     `json:"dbId"`
	Host            string    `json:"host"`
	HasRefreshToken bool      `json:"hasRefreshToken"`
	SessionOpenedAt time.Time `json:"sessionOpenedAt"`
}

func viewOf(c credentials.Credential) credentialView {
	return credentialView{
		ID:              c.ID,
		Label:           c.Label,
		DBID:            c.DBID,
		Host:            c.Host,
		HasRefreshToken: c.RefreshToken != "",
		SessionOpenedAt: c.SessionOpenedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	creds, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list credentials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]credentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, viewOf(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"credentials": views})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cred, err := h.service.Connect(r.Context(), credentials.ConnectInput{
		Label:           req.Label,
		APIToken:        req.APIToken,
		RefreshToken:    req.RefreshToken,
		AppKey:          req.AppKey,
		SignatureSecret: req.SignatureSecret,
		DBID:            req.DBID,
	})
	if err != nil {
		h.logger.Error("connect credential", slog.String("label", req.Label), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(cred))
}

func (h *Handler) refreshSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "credential id must be numeric")
		return
	}

	cred, err := h.service.RefreshSession(r.Context(), id)
	if err != nil {
		h.logger.Error("refresh session", slog.Int64("credential_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(cred))
}
