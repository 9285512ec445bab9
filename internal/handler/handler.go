package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/lsocheck/internal/metrics"
	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/store"
)

// Dispatcher hands finished submissions to the sinks in the background.
type Dispatcher interface {
	DispatchAsync(sub model.Submission, done func(error))
}

// ContactPoster forwards the stand-alone contact form.
type ContactPoster interface {
	PostContact(ctx context.Context, c model.Contact) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	dispatcher Dispatcher
	contact    ContactPoster
	config     model.AppConfig
	sessions   *registry
}

// New creates a new Handler. dispatcher and contact may be nil, which
// disables submission forwarding and the contact form respectively.
func New(s *store.Store, d Dispatcher, contact ContactPoster, cfg model.AppConfig) (*Handler, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	return &Handler{
		store:      s,
		dispatcher: d,
		contact:    contact,
		config:     cfg,
		sessions:   newRegistry(cfg.SessionTTL),
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/access", h.handleAccess)
		r.Delete("/access", h.handleAccessLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAccess)

			r.Route("/questionnaire", func(r chi.Router) {
				r.Post("/", h.handleStart)
				r.Get("/", h.withSession(h.handleState))
				r.Put("/contact", h.withSession(h.handleSetContact))
				r.Post("/answer", h.withSession(h.handleAnswer))
				r.Post("/next", h.withSession(h.handleNext))
				r.Post("/previous", h.withSession(h.handlePrevious))
				r.Post("/reset", h.withSession(h.handleReset))
				r.Post("/reset-track", h.withSession(h.handleResetTrack))
			})
			r.Post("/contact", h.handleContact)
		})

		r.With(h.requireAdmin).Get("/submissions/export", h.handleExport)
	})
}

// BasePathMiddleware stores the configured URL prefix in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// RunJanitor drops idle questionnaire sessions and expired access sessions
// every interval until ctx ends.
func (h *Handler) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := h.sessions.sweep(); n > 0 {
				slog.Debug("dropped idle questionnaire sessions", "count", n)
			}
			metrics.SetActiveSessions(h.sessions.len())
			if err := h.store.CleanupExpiredAccessSessions(); err != nil {
				slog.Warn("failed to clean up access sessions", "error", err)
			}
		}
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.SubmissionCount(); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error      string `json:"error"`
	QuestionID string `json:"question_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
