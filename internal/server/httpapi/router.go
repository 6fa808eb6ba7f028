// Package httpapi exposes the drive upload endpoints over HTTP.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires h into a chi router together with /metrics.
func NewRouter(h *Handler, logger logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger.With("module", "http_access")))
	r.Use(Metrics)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/drive/files", func(r chi.Router) {
		r.Post("/create", h.Create)
		r.Route("/multipart", func(r chi.Router) {
			r.Post("/preflight", h.Preflight)
			r.Post("/partial-upload", h.PartialUpload)
			r.Post("/finish-upload", h.FinishUpload)
			r.Post("/abort", h.Abort)
		})
	})

	return r
}
