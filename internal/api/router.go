package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/api/middleware"
	"github.com/clinicops/trainingdesk/internal/handlers"
)

// maxJSONBody bounds every non-upload request body.
const maxJSONBody = 64 * 1024

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(maxJSONBody))

			r.Get("/state", h.State)
			r.Post("/room", h.ResolveRoom)
			r.Get("/chat/messages", h.ListMessages)
			r.Post("/chat/messages", h.SendMessage)
			r.Post("/entry", h.Entry)

			r.Get("/uploads", h.ListUploads)
			r.Delete("/uploads/{id}", h.RemoveUpload)
			r.Put("/uploads/metadata", h.SetUploadMetadata)
			r.Post("/uploads/submit", h.SubmitUploads)
		})

		// Staged files are buffered in memory, so their limit is separate.
		maxUpload := cfg.MaxUploadBytes
		if maxUpload <= 0 {
			maxUpload = 32 << 20
		}
		r.With(middleware.MaxBodySize(maxUpload)).Post("/uploads", h.AddUploads)
	})

	return r
}
