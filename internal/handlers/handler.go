package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/gateway"
	"github.com/eldtechnologies/whiteboard/internal/raster"
	"github.com/eldtechnologies/whiteboard/internal/relay"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db       store.DataStore
	redis    *store.RedisStore
	sessions *gateway.Sessions
	users    *gateway.Users
	hub      *relay.Hub
	rooms    *canvas.Store
	canvas   raster.Options
	logger   zerolog.Logger
}

// NewHandler creates a new Handler. redis may be nil.
func NewHandler(db store.DataStore, redis *store.RedisStore, hub *relay.Hub, rooms *canvas.Store, opts raster.Options, logger zerolog.Logger) *Handler {
	var cache gateway.SnapshotCache
	if redis != nil {
		cache = redis
	}
	return &Handler{
		db:       db,
		redis:    redis,
		sessions: gateway.NewSessions(db, cache, logger),
		users:    gateway.NewUsers(db),
		hub:      hub,
		rooms:    rooms,
		canvas:   opts,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// roomParam returns the decoded roomId route parameter. chi matches on the
// escaped path when the request has one, so ids holding '/' or '%' arrive
// still escaped.
func roomParam(r *http.Request) string {
	id := chi.URLParam(r, "roomId")
	if r.URL.RawPath == "" {
		return id
	}
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}
