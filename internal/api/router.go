package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/api/middleware"
	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/config"
	"github.com/eldtechnologies/whiteboard/internal/handlers"
	"github.com/eldtechnologies/whiteboard/internal/raster"
	"github.com/eldtechnologies/whiteboard/internal/relay"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil.
func NewRouter(logger zerolog.Logger, cfg *config.Config, db store.DataStore, redisStore *store.RedisStore, hub *relay.Hub, rooms *canvas.Store) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
	r.Use(middleware.ValidateRequest)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	opts := raster.Options{Width: cfg.CanvasWidth, Height: cfg.CanvasHeight, LineWidth: cfg.LineWidth}
	h := handlers.NewHandler(db, redisStore, hub, rooms, opts, logger)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)
	r.Get("/api", h.Root)

	// Real-time channel
	r.Get("/ws", hub.ServeWS)

	// Session persistence
	r.Post("/save-session", h.SaveSession)
	r.Get("/load-session/{roomId}", h.LoadSession)
	r.Get("/load-user-session", h.LoadUserSessions)

	// User directory
	r.Post("/create-user", h.CreateUser)
	r.Post("/login", h.Login)

	// Live rooms
	r.Route("/room/{roomId}", func(r chi.Router) {
		r.Get("/", h.GetRoom)
		r.Get("/preview.png", h.RoomPreview)
		r.Get("/export.pdf", h.RoomExport)
	})

	return r
}
