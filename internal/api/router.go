// Package api exposes snapshots over HTTP: on-demand JSON reads plus websocket
// and server-sent-event push.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
	"dockpulse/internal/stream"
)

type Snapshots interface {
	Get() (*model.CombinedSnapshot, error)
}

type HealthReporter interface {
	Healthy() bool
	Snapshot() map[string]any
}

type RuntimeInfoer interface {
	Info(ctx context.Context) (model.RuntimeInfo, error)
}

type Options struct {
	Snapshots    Snapshots
	Hub          *stream.Hub
	Metrics      *metrics.Metrics
	Health       HealthReporter
	Runtime      RuntimeInfoer
	Version      func() any
	Logger       *slog.Logger
	WriteTimeout time.Duration
	PingInterval time.Duration
}

type handlers struct {
	opts Options
}

func NewRouter(o Options) http.Handler {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	h := &handlers{opts: o}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(requestLogger(o.Logger))
	mux.Use(middleware.Recoverer)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/system", h.system)
		r.Get("/services", h.services)
		r.Get("/snapshot", h.snapshot)
		r.Get("/runtime", h.runtime)
		r.Get("/version", h.version)
		r.Get("/events", h.events)
	})
	mux.Get("/ws", h.websocket)
	mux.Get("/healthz", h.healthz)
	if o.Metrics != nil {
		mux.Handle("/metrics", o.Metrics.Handler())
	}
	return mux
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
