// Package httpapi is the rendering boundary: it exposes the wizard, the
// section registry and the record over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	intake "github.com/goliatone/go-intake"
)

// Handler wires intake endpoints to one wizard.
type Handler struct {
	wizard   *intake.Wizard
	registry *intake.Registry
	logger   *slog.Logger
	metrics  http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(handler *Handler) {
		handler.metrics = h
	}
}

// New constructs a handler over wizard.
func New(wizard *intake.Wizard, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		wizard:   wizard,
		registry: wizard.Registry(),
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Router returns a chi router with every endpoint mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	h.Register(r)
	return r
}

// Register mounts intake endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/sections", h.HandleSections)
	r.Get("/sections/{id}/schema", h.HandleSchema)

	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", h.HandleView)
		r.Post("/select/{id}", h.HandleSelect)
		r.Post("/next", h.HandleNext)
		r.Post("/previous", h.HandlePrevious)
		r.Post("/reset", h.HandleReset)
		r.Post("/save", h.HandleSave)
		r.Put("/fields/{name}", h.HandleSetField)
		r.Post("/collections/{name}/entries", h.HandleAppendEntry)
		r.Delete("/collections/{name}/entries/{entryID}", h.HandleRemoveEntry)
		r.Put("/collections/{name}/entries/{entryID}/fields/{field}", h.HandleSetEntryField)
	})

	r.Get("/record", h.HandleRecord)
	r.Delete("/record", h.HandleDeleteRecord)
	r.Get("/review", h.HandleReview)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
