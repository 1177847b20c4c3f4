package qapi

import (
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/quatton/qtube/pkg/qapi/schemas"
)

type Api struct {
	Api    huma.API
	Router *chi.Mux
}

// Options tune the router. The zero value is enough for OpenAPI generation
// and tests.
type Options struct {
	CORSOrigins []string
	// RateLimit, when set, throttles write requests under /api/.
	RateLimit *RateLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// MediaDir is served under /media when media lives on local disk.
	MediaDir string
	// Quiet drops the per-request access log.
	Quiet bool
}

func NewApi(opts Options) *Api {
	huma.NewError = schemas.NewError

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	if !opts.Quiet {
		router.Use(middleware.Logger)
	}
	router.Use(middleware.Recoverer)

	// No origins means no CORS. A wildcard never carries credentials, since
	// cors would echo any Origin back with the session cookies allowed.
	if origins := opts.CORSOrigins; len(origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: !slices.Contains(origins, "*"),
			MaxAge:           300,
		}))
	}

	if opts.RateLimit != nil {
		router.Use(opts.RateLimit.Middleware)
	}

	config := huma.DefaultConfig("qtube Accounts API", "1.0.0")
	// Bodies are exactly the envelope; no $schema link.
	config.CreateHooks = nil

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Access token from /api/v1/users/login",
		},
		"cookie": {
			Type:        "apiKey",
			In:          "cookie",
			Name:        "accessToken",
			Description: "Access token cookie set by login and refresh",
		},
	}

	api := humachi.New(router, config)

	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}
	if opts.MediaDir != "" {
		router.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	return &Api{Api: api, Router: router}
}
