// Package handler serves the REST API the browser client talks to.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/scheduling"
)

type Handler struct {
	svc *scheduling.Service
	log *slog.Logger
	now func() time.Time
}

func New(svc *scheduling.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log, now: time.Now}
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// throttles register and login; nil disables
	AuthLimiter *middleware.RateLimiter
}

func (h *Handler) Routes(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, middleware.Logger(h.log), chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}

		r.Group(func(r chi.Router) {
			if opts.AuthLimiter != nil {
				r.Use(opts.AuthLimiter.Handler)
			}
			r.Post("/auth/register", h.register)
			r.Post("/auth/login", h.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.svc))
			r.Get("/auth/me", h.me)
			r.Get("/users/participants", h.participants)

			r.Route("/meetings", func(r chi.Router) {
				r.Get("/", h.listMeetings)
				r.Post("/", h.createMeeting)
				r.Post("/check", h.checkConflicts)
				r.Get("/calendar.ics", h.calendar)
				r.Get("/{id}", h.getMeeting)
				r.Put("/{id}", h.updateMeeting)
				r.Delete("/{id}", h.deleteMeeting)
			})
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
