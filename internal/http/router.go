package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"

	"github.com/laundrydesk/laundrydesk/internal/http/account"
	"github.com/laundrydesk/laundrydesk/internal/http/catalog"
	"github.com/laundrydesk/laundrydesk/internal/http/dropoff"
	"github.com/laundrydesk/laundrydesk/internal/http/export"
	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
	"github.com/laundrydesk/laundrydesk/internal/http/invoice"
)

type Options struct {
	Logger    *slog.Logger
	JWTSecret string
	// Limiter throttles the write routes. Nil disables it.
	Limiter *limiter.Limiter
}

func New(
	opts Options,
	accountsV1 *account.Handler,
	catalogV1 *catalog.Handler,
	dropOffsV1 *dropoff.Handler,
	invoicesV1 *invoice.Handler,
	exportsV1 *export.Handler,
) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", httpx.RequestIDHeader},
		ExposedHeaders: []string{httpx.RequestIDHeader},
		MaxAge:         300,
	}))
	router.Use(httpx.RequestLogger(opts.Logger))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(httpx.Auth(opts.JWTSecret))

		r.Route("/accounts", accountsV1.Routes)

		r.Route("/catalog", func(r chi.Router) {
			catalogV1.Routes(r)

			r.Group(func(r chi.Router) {
				throttle(r, opts.Limiter)
				catalogV1.WriteRoutes(r)
			})
		})

		r.Route("/dropoffs", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			throttle(r, opts.Limiter)
			dropOffsV1.Routes(r)
		})

		r.Route("/invoices", func(r chi.Router) {
			invoicesV1.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				throttle(r, opts.Limiter)
				invoicesV1.WriteRoutes(r)
			})
		})

		r.Route("/exports", exportsV1.Routes)
	})

	return router
}

func throttle(r chi.Router, l *limiter.Limiter) {
	if l != nil {
		r.Use(httpx.RateLimit(l))
	}
}
