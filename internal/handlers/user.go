package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eldtechnologies/whiteboard/internal/gateway"
	"github.com/eldtechnologies/whiteboard/internal/metrics"
)

// CredentialsRequest is the body of create-user and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUser registers a new username.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, gateway.ErrConflict):
		h.Error(w, http.StatusBadRequest, "Username already exists")
		return
	case errors.Is(err, gateway.ErrInvalidInput):
		h.Error(w, http.StatusBadRequest, "username and password are required")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("create user failed")
		h.Error(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	metrics.UsersCreated.Inc()
	h.JSON(w, http.StatusCreated, user)
}

// Login checks a username and password pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidCredentials) {
			h.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		h.Error(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	h.JSON(w, http.StatusOK, user)
}
