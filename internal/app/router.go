package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	adjhttp "github.com/stoklink/stoklink/internal/adjustments/http"
	credhttp "github.com/stoklink/stoklink/internal/credentials/http"
	"github.com/stoklink/stoklink/internal/observability"
	syncjobshttp "github.com/stoklink/stoklink/internal/syncjobs/http"
	"github.com/stoklink/stoklink/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CredentialsHandler *credhttp.Handler
	AdjustmentsHandler *adjhttp.Handler
	SyncJobsHandler    *syncjobshttp.Handler
	QueueHandler       *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with default wiring.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/credentials", params.CredentialsHandler.MountRoutes)
	r.Route("/adjustments", params.AdjustmentsHandler.MountRoutes)
	r.Route("/jobs", params.SyncJobsHandler.MountRoutes)
	if params.QueueHandler != nil {
		r.Route("/queue", params.QueueHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
