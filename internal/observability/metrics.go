package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	erpCalls        *prometheus.CounterVec
	erpCallDuration *prometheus.HistogramVec
	erpLimiterWait  prometheus.Histogram
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stoklink_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stoklink_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	erpCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stoklink_erp_calls_total",
		Help: "Jumlah panggilan API Accurate per endpoint dan hasil.",
	}, []string{"path", "outcome"})
	erpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stoklink_erp_call_duration_seconds",
		Help:    "Durasi panggilan API Accurate per endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	erpWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stoklink_erp_limiter_wait_seconds",
		Help:    "Lama antrean di rate limiter sebelum panggilan dikirim.",
		Buckets: []float64{.005, .025, .125, .25, .5, 1, 2.5, 5, 10},
	})
	registry.MustRegister(requests, duration, erpCalls, erpDuration, erpWait)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		erpCalls:        erpCalls,
		erpCallDuration: erpDuration,
		erpLimiterWait:  erpWait,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveCall mencatat satu panggilan API Accurate.
func (m *Metrics) ObserveCall(path, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.erpCalls.WithLabelValues(path, outcome).Inc()
	m.erpCallDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// ObserveLimiterWait mencatat waktu tunggu di rate limiter.
func (m *Metrics) ObserveLimiterWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.erpLimiterWait.Observe(elapsed.Seconds())
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
