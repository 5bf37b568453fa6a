package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/api/swagger"
	"github.com/bher20/utilitybill/internal/history"
	"github.com/bher20/utilitybill/internal/logging"
	"github.com/bher20/utilitybill/internal/metrics"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/tariffs"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Store   storage.Storage
	Tariffs *tariffs.Service
	History *history.Service
	Log     *zap.Logger
	// Now is used for default period labels and export timestamps.
	Now func() time.Time
	// ExportFont is the TrueType font for PDF exports; see export.Options.
	ExportFont string
}

// NewMux constructs the HTTP mux, wiring in the billing API, metrics, and
// health endpoints.
func NewMux(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.Ping(r.Context()); err != nil {
			d.Log.Warn("readyz: storage ping failed", zap.Error(err))
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// API documentation.
	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))

	mux.HandleFunc("POST /api/v1/calculate", h.instrument("/api/v1/calculate", h.calculate))

	mux.HandleFunc("GET /api/v1/history", h.instrument("/api/v1/history", h.listHistory))
	mux.HandleFunc("POST /api/v1/history", h.instrument("/api/v1/history", h.commitHistory))
	mux.HandleFunc("DELETE /api/v1/history", h.instrument("/api/v1/history", h.deleteHistoryByKey))
	mux.HandleFunc("DELETE /api/v1/history/{id}", h.instrument("/api/v1/history/{id}", h.deleteHistoryByID))
	mux.HandleFunc("GET /api/v1/history/summary", h.instrument("/api/v1/history/summary", h.historySummary))
	mux.HandleFunc("GET /api/v1/history/prefill", h.instrument("/api/v1/history/prefill", h.prefill))
	mux.HandleFunc("GET /api/v1/history/export.xlsx", h.instrument("/api/v1/history/export", h.exportHistory("xlsx")))
	mux.HandleFunc("GET /api/v1/history/export.pdf", h.instrument("/api/v1/history/export", h.exportHistory("pdf")))

	mux.HandleFunc("GET /api/v1/tariffs", h.instrument("/api/v1/tariffs", h.getTariffs))
	mux.HandleFunc("PUT /api/v1/tariffs", h.instrument("/api/v1/tariffs", h.putTariffs))

	return mux
}

type handlers struct {
	Deps
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request count, duration and error responses for route
// and logs each request with its X-Request-ID (generated when absent).
func (h *handlers) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		log := logging.WithRequestID(h.Log, reqID)

		metrics.RequestsTotal.WithLabelValues(route).Inc()
		defer func() {
			dur := time.Since(start).Seconds()
			metrics.RequestDurationSeconds.WithLabelValues(route, r.Method).Observe(dur)
			if rec.status >= 400 {
				metrics.RequestErrorsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			}
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Float64("duration_seconds", dur))
		}()

		next(rec, r)
	}
}
