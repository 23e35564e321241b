package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/auth"
	"subquestion-challenge-service/internal/metrics"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Dispatcher  *app.Dispatcher
	Reporter    *app.Reporter
	Hub         *app.ProgressHub
	Auth        *auth.Authenticator
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	CORSOrigins []string
}

// NewRouter mounts the challenge API, the admin report and the operational endpoints.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handlers{
		dispatcher: d.Dispatcher,
		reporter:   d.Reporter,
		log:        d.Log,
	}
	live := newLiveFeed(d.Dispatcher, d.Hub, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Route("/api/v1/challenges", func(r chi.Router) {
			r.With(auth.RequireAccount).Post("/attempt", h.attempt)
			r.Get("/{id}", h.read)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/", h.create)
				r.Patch("/{id}", h.update)
				r.Delete("/{id}", h.delete)
			})
		})

		r.Route("/admin/challenges/{id}/partial-solves", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", h.report)
			r.Get("/live", live.serve)
		})
	})
	return r
}
