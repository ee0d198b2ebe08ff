package relay

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/eldtechnologies/whiteboard/internal/models"
)

// Event names on the real-time channel. These are the wire contract.
const (
	EventJoinRoom         = "joinRoom"
	EventDraw             = "draw"
	EventClearCanvas      = "clearCanvas"
	EventInitializeCanvas = "initializeCanvas"
)

const maxColorLength = 64

var errInvalidPayload = errors.New("invalid payload")

// Envelope is one frame on the real-time channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomRef is the payload of clearCanvas and the object form of joinRoom.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// encodeFrame marshals an outbound frame.
func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// decodeRoomRef accepts either a bare JSON string or {"roomId": "..."}.
func decodeRoomRef(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	var id string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", errInvalidPayload
		}
	} else {
		var ref RoomRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return "", errInvalidPayload
		}
		id = ref.RoomID
	}
	if !models.ValidRoomID(id) {
		return "", errInvalidPayload
	}
	return id, nil
}

func decodeDraw(raw json.RawMessage) (models.DrawEvent, error) {
	var ev models.DrawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, errInvalidPayload
	}
	if !models.ValidRoomID(ev.RoomID) || ev.Color == "" || len(ev.Color) > maxColorLength || !ev.Finite() {
		return ev, errInvalidPayload
	}
	return ev, nil
}
