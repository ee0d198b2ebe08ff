package handlers

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/eldtechnologies/whiteboard/internal/export"
	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/raster"
)

// GetRoom reports the live state of a room held by the relay.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	if !models.ValidRoomID(roomID) {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	info, err := h.hub.RoomInfo(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}
	if info == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	h.JSON(w, http.StatusOK, info)
}

// RoomPreview rasterizes the live log of a room to PNG.
func (h *Handler) RoomPreview(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	if !models.ValidRoomID(roomID) {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, h.rooms.SnapshotSequence(roomID), h.canvas); err != nil {
		h.logger.Error().Err(err).Str("room", roomID).Msg("render preview failed")
		h.Error(w, http.StatusInternalServerError, "failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// RoomExport writes the live log of a room as a single-page PDF.
func (h *Handler) RoomExport(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	if !models.ValidRoomID(roomID) {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, h.rooms.SnapshotSequence(roomID), h.canvas); err != nil {
		h.logger.Error().Err(err).Str("room", roomID).Msg("export pdf failed")
		h.Error(w, http.StatusInternalServerError, "failed to export room")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": roomID + ".pdf"}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
