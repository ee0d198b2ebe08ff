package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eldtechnologies/whiteboard/internal/gateway"
	"github.com/eldtechnologies/whiteboard/internal/metrics"
)

// SaveSessionRequest represents the save-session request body.
// A null, missing or blank username stores an unattributed snapshot.
type SaveSessionRequest struct {
	RoomID   string  `json:"roomId"`
	Data     string  `json:"data"`
	Username *string `json:"username"`
}

// SaveSession stores a new snapshot of a room.
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	var req SaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	snap, err := h.sessions.SaveSession(r.Context(), req.RoomID, req.Data, req.Username)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidInput) {
			h.Error(w, http.StatusBadRequest, "roomId and data are required")
			return
		}
		h.logger.Error().Err(err).Str("room", req.RoomID).Msg("save session failed")
		h.Error(w, http.StatusInternalServerError, "Error saving session")
		return
	}

	metrics.SessionsSaved.WithLabelValues("client").Inc()
	h.JSON(w, http.StatusCreated, snap)
}

// LoadSession returns the newest snapshot of a room.
func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)

	snap, err := h.sessions.LoadLatestSession(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error().Err(err).Str("room", roomID).Msg("load session failed")
		h.Error(w, http.StatusInternalServerError, "Error loading session")
		return
	}

	h.JSON(w, http.StatusOK, snap)
}

// LoadUserSessions lists the rooms a user has saved to, newest first.
func (h *Handler) LoadUserSessions(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	rooms, err := h.sessions.ListSessionsForUser(r.Context(), username)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error().Err(err).Msg("list user sessions failed")
		h.Error(w, http.StatusInternalServerError, "Error loading session")
		return
	}

	h.JSON(w, http.StatusOK, rooms)
}
