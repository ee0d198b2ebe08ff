package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/crypto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Conn is one client attached to the relay.
type Conn struct {
	hub    *Hub
	ws     *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, buffer int) *Conn {
	id := crypto.NewConnID()
	return &Conn{
		hub:    h,
		ws:     ws,
		send:   make(chan []byte, buffer),
		logger: h.logger.With().Str("conn", id).Logger(),
	}
}

// closeSend stops the write pump. Only the hub calls it.
func (c *Conn) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump decodes frames and hands them to the hub in arrival order.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if !c.hub.deliver(inbound{conn: c, data: data}) {
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
