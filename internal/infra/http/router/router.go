package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
)

type Options struct {
	Leads          *handlers.LeadHandler
	Health         *handlers.HealthHandler
	Validator      *middleware.JWTValidator
	AuthDisabled   bool
	AllowedOrigins []string
}

func New(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key"},
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.Handle)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if !opts.AuthDisabled {
			r.Use(middleware.Auth(opts.Validator))
		}

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", opts.Leads.Create)
			r.Get("/{leadId}", opts.Leads.GetStatus)
			r.Post("/{leadId}", opts.Leads.Create)
			r.Post("/{leadId}/sync", opts.Leads.Sync)
			r.Post("/{leadId}/close", opts.Leads.Close)
		})
		r.Post("/admin/bulk", opts.Leads.Bulk)
	})

	return r
}
