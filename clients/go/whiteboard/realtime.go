package whiteboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Real-time event names.
const (
	EventJoinRoom         = "joinRoom"
	EventDraw             = "draw"
	EventClearCanvas      = "clearCanvas"
	EventInitializeCanvas = "initializeCanvas"
)

// Segment is one stroke between two points.
type Segment struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color"`
}

// DrawEvent is a segment addressed to a room.
type DrawEvent struct {
	RoomID string `json:"roomId"`
	Segment
}

// Event is one frame received from the relay. Exactly one of Draw,
// RoomID (for clearCanvas) or Segments (for initializeCanvas) is set
// according to Name.
type Event struct {
	Name     string
	Draw     *DrawEvent
	RoomID   string
	Segments []Segment
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is a connection to the relay.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writers
}

// Dial connects to the relay at wsURL (e.g. ws://localhost:8080/ws).
func Dial(ctx context.Context, wsURL string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(envelope{Event: event, Data: raw})
}

// JoinRoom subscribes to a room. The relay answers with initializeCanvas
// only when the room already holds segments.
func (c *Conn) JoinRoom(roomID string) error {
	return c.send(EventJoinRoom, roomID)
}

// Draw sends a segment to every other member of the room.
func (c *Conn) Draw(roomID string, seg Segment) error {
	return c.send(EventDraw, DrawEvent{RoomID: roomID, Segment: seg})
}

// ClearCanvas empties the room for everyone.
func (c *Conn) ClearCanvas(roomID string) error {
	return c.send(EventClearCanvas, map[string]string{"roomId": roomID})
}

// ReadEvent blocks for the next known event. Unknown events are skipped.
func (c *Conn) ReadEvent() (*Event, error) {
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return nil, err
		}

		ev := &Event{Name: env.Event}
		switch env.Event {
		case EventDraw:
			ev.Draw = new(DrawEvent)
			if err := json.Unmarshal(env.Data, ev.Draw); err != nil {
				return nil, fmt.Errorf("decode draw: %w", err)
			}
		case EventClearCanvas:
			var ref struct {
				RoomID string `json:"roomId"`
			}
			if err := json.Unmarshal(env.Data, &ref); err != nil {
				return nil, fmt.Errorf("decode clearCanvas: %w", err)
			}
			ev.RoomID = ref.RoomID
		case EventInitializeCanvas:
			if err := json.Unmarshal(env.Data, &ev.Segments); err != nil {
				return nil, fmt.Errorf("decode initializeCanvas: %w", err)
			}
		default:
			continue
		}
		return ev, nil
	}
}

// SetReadDeadline bounds the next ReadEvent.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}
