// Package relay fans drawing events out to every connection joined to a room.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/metrics"
	"github.com/eldtechnologies/whiteboard/internal/models"
)

const archiveTimeout = 30 * time.Second

// ErrClosed is returned by hub queries after Run has exited.
var ErrClosed = errors.New("relay: hub closed")

// Flush is a room log leaving memory.
type Flush struct {
	RoomID   string
	Segments []models.Segment
	// Cleared reports a clearCanvas since the previous flush. The log then
	// starts from a blank canvas rather than the room's latest snapshot.
	Cleared bool
}

// Archiver persists flushed room logs. Flushes of one room are delivered
// one at a time, in the order they were taken.
type Archiver interface {
	Archive(ctx context.Context, f Flush) error
}

// Options tunes the hub.
type Options struct {
	IdleTTL        time.Duration // 0 disables reaping
	ReapInterval   time.Duration
	MaxSegments    int // 0 means unbounded
	SendBuffer     int
	AllowedOrigins []string
}

// RoomInfo describes a live room.
type RoomInfo struct {
	RoomID     string    `json:"roomId"`
	Segments   int       `json:"segments"`
	Members    int       `json:"members"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

type inbound struct {
	conn *Conn
	data []byte
}

// Hub owns the connection registry. All registry state is touched only by
// the goroutine running Run, which also serializes append and broadcast.
type Hub struct {
	store    *canvas.Store
	archiver Archiver
	logger   zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader

	registerCh   chan *Conn
	unregisterCh chan *Conn
	inboundCh    chan inbound
	calls        chan func()
	done         chan struct{}

	members map[string]map[*Conn]struct{}
	joined  map[*Conn]map[string]struct{}
	cleared map[string]bool

	archives   sync.WaitGroup
	archiveMu  sync.Mutex
	archiveTip map[string]chan struct{}
}

// NewHub creates a hub over store. archiver may be nil.
func NewHub(store *canvas.Store, archiver Archiver, logger zerolog.Logger, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	h := &Hub{
		store:        store,
		archiver:     archiver,
		logger:       logger.With().Str("component", "relay").Logger(),
		opts:         opts,
		registerCh:   make(chan *Conn),
		unregisterCh: make(chan *Conn),
		inboundCh:    make(chan inbound),
		calls:        make(chan func()),
		done:         make(chan struct{}),
		members:      make(map[string]map[*Conn]struct{}),
		joined:       make(map[*Conn]map[string]struct{}),
		cleared:      make(map[string]bool),
		archiveTip:   make(map[string]chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// Run processes registry changes and inbound events until ctx is cancelled.
// Every open connection is closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.joined {
			h.remove(c)
		}
		close(h.done)
	}()

	var reap <-chan time.Time
	if h.opts.IdleTTL > 0 && h.opts.ReapInterval > 0 {
		ticker := time.NewTicker(h.opts.ReapInterval)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.registerCh:
			h.add(c)
		case c := <-h.unregisterCh:
			h.remove(c)
		case in := <-h.inboundCh:
			h.handle(in.conn, in.data)
		case fn := <-h.calls:
			fn()
		case now := <-reap:
			h.reapIdle(now)
		}
	}
}

// Wait blocks until in-flight archival has finished.
func (h *Hub) Wait() {
	h.archives.Wait()
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := newConn(h, ws, h.opts.SendBuffer)
	select {
	case h.registerCh <- c:
	case <-h.done:
		ws.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ServeHTTP makes the hub usable as the /ws handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// RoomInfo returns the state of a live room, or nil if the room is not held.
func (h *Hub) RoomInfo(ctx context.Context, roomID string) (*RoomInfo, error) {
	room, ok := h.store.Lookup(roomID)
	if !ok {
		return nil, nil
	}

	var members int
	if err := h.call(ctx, func() { members = len(h.members[roomID]) }); err != nil {
		return nil, err
	}

	return &RoomInfo{
		RoomID:     roomID,
		Segments:   room.Len(),
		Members:    members,
		CreatedAt:  room.CreatedAt(),
		LastActive: room.LastActive(),
	}, nil
}

// call runs fn on the hub goroutine and waits for it.
func (h *Hub) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
	<-finished
	return nil
}

func (h *Hub) deliver(in inbound) bool {
	select {
	case h.inboundCh <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Conn) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c *Conn) {
	h.joined[c] = make(map[string]struct{})
	metrics.ConnectionsActive.Inc()
	c.logger.Debug().Msg("connected")
}

// remove detaches c from every room. Rooms and their logs stay.
func (h *Hub) remove(c *Conn) {
	rooms, ok := h.joined[c]
	if !ok {
		return
	}
	for roomID := range rooms {
		h.leave(c, roomID)
	}
	delete(h.joined, c)
	c.closeSend()
	metrics.ConnectionsActive.Dec()
	c.logger.Debug().Msg("disconnected")
}

func (h *Hub) leave(c *Conn, roomID string) {
	set := h.members[roomID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.members, roomID)
	}
}

// handle dispatches one inbound frame.
func (h *Hub) handle(c *Conn, data []byte) {
	if _, ok := h.joined[c]; !ok {
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.invalid(c, "", err)
		return
	}

	switch env.Event {
	case EventJoinRoom:
		roomID, err := decodeRoomRef(env.Data)
		if err != nil {
			h.invalid(c, env.Event, err)
			return
		}
		h.join(c, roomID)
	case EventDraw:
		ev, err := decodeDraw(env.Data)
		if err != nil {
			h.invalid(c, env.Event, err)
			return
		}
		h.draw(c, ev)
	case EventClearCanvas:
		roomID, err := decodeRoomRef(env.Data)
		if err != nil {
			h.invalid(c, env.Event, err)
			return
		}
		h.clear(c, roomID)
	default:
		c.logger.Debug().Str("event", env.Event).Msg("ignoring unknown event")
		return
	}
	metrics.RelayEvents.WithLabelValues(env.Event).Inc()
}

func (h *Hub) invalid(c *Conn, event string, err error) {
	metrics.InvalidFrames.Inc()
	c.logger.Warn().Err(err).Str("event", event).Msg("dropping invalid frame")
}

func (h *Hub) join(c *Conn, roomID string) {
	room := h.store.GetOrCreate(roomID)
	metrics.RoomsLive.Set(float64(h.store.Len()))

	set, ok := h.members[roomID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.members[roomID] = set
	}
	set[c] = struct{}{}
	h.joined[c][roomID] = struct{}{}
	c.logger.Info().Str("room", roomID).Msg("joined room")

	segments := room.Segments()
	if len(segments) == 0 {
		return
	}
	frame, err := encodeFrame(EventInitializeCanvas, segments)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode replay")
		return
	}
	h.enqueue(c, EventInitializeCanvas, frame)
}

func (h *Hub) draw(c *Conn, ev models.DrawEvent) {
	n := h.store.Append(ev.RoomID, ev.Segment)
	metrics.RoomsLive.Set(float64(h.store.Len()))

	frame, err := encodeFrame(EventDraw, ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode draw")
		return
	}
	h.broadcast(ev.RoomID, c, EventDraw, frame)

	if h.opts.MaxSegments > 0 && n >= h.opts.MaxSegments {
		h.compact(ev.RoomID)
	}
}

func (h *Hub) clear(c *Conn, roomID string) {
	if _, ok := h.store.Lookup(roomID); ok {
		h.store.Clear(roomID)
		h.cleared[roomID] = true
	}

	frame, err := encodeFrame(EventClearCanvas, RoomRef{RoomID: roomID})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode clear")
		return
	}
	h.broadcast(roomID, c, EventClearCanvas, frame)
}

// broadcast queues frame to every member of roomID except the sender.
func (h *Hub) broadcast(roomID string, except *Conn, event string, frame []byte) {
	for m := range h.members[roomID] {
		if m == except {
			continue
		}
		h.enqueue(m, event, frame)
	}
}

// enqueue never blocks. A member whose queue is full is dropped.
func (h *Hub) enqueue(c *Conn, event string, frame []byte) {
	select {
	case c.send <- frame:
		metrics.FramesSent.WithLabelValues(event).Inc()
	default:
		metrics.SlowConsumersDropped.Inc()
		c.logger.Warn().Msg("send queue full, dropping connection")
		h.remove(c)
	}
}

// compact flattens a room log that reached the segment bound.
func (h *Hub) compact(roomID string) {
	segments := h.store.Take(roomID)
	metrics.RoomsEvicted.WithLabelValues("compacted").Inc()
	h.logger.Info().Str("room", roomID).Int("segments", len(segments)).Msg("compacting room")
	h.archive(roomID, segments)
}

// reapIdle evicts rooms with no members that have been quiet since before
// now minus the idle TTL.
func (h *Hub) reapIdle(now time.Time) {
	for _, roomID := range h.store.IdleSince(now.Add(-h.opts.IdleTTL)) {
		if len(h.members[roomID]) > 0 {
			continue
		}
		segments := h.store.Remove(roomID)
		metrics.RoomsEvicted.WithLabelValues("idle").Inc()
		h.logger.Info().Str("room", roomID).Int("segments", len(segments)).Msg("evicting idle room")
		h.archive(roomID, segments)
		delete(h.cleared, roomID)
	}
	metrics.RoomsLive.Set(float64(h.store.Len()))
}

// archive persists segments off the hub goroutine. Each job for a room
// waits for the room's previous job, so snapshots land in log order.
func (h *Hub) archive(roomID string, segments []models.Segment) {
	if h.archiver == nil || len(segments) == 0 {
		return
	}
	f := Flush{RoomID: roomID, Segments: segments, Cleared: h.cleared[roomID]}
	delete(h.cleared, roomID)

	done := make(chan struct{})
	h.archiveMu.Lock()
	prev := h.archiveTip[roomID]
	h.archiveTip[roomID] = done
	h.archiveMu.Unlock()

	h.archives.Add(1)
	go func() {
		defer h.archives.Done()
		defer func() {
			h.archiveMu.Lock()
			if h.archiveTip[roomID] == done {
				delete(h.archiveTip, roomID)
			}
			h.archiveMu.Unlock()
			close(done)
		}()
		if prev != nil {
			<-prev
		}

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.archiver.Archive(ctx, f); err != nil {
			metrics.ArchiveFailures.Inc()
			h.logger.Error().Err(err).Str("room", roomID).Msg("failed to archive room")
		}
	}()
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
