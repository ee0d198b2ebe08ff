// Package canvas holds the in-memory replay log of every live room.
package canvas

import (
	"sort"
	"sync"
	"time"

	"github.com/eldtechnologies/whiteboard/internal/models"
)

// Room is a handle to one room's ordered segment log.
type Room struct {
	id        string
	createdAt time.Time

	mu         sync.RWMutex
	segments   []models.Segment
	lastActive time.Time
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// CreatedAt returns when the room entered the store.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// LastActive returns the time of the last append or clear.
func (r *Room) LastActive() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActive
}

// Len returns the number of segments in the log.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments)
}

// Segments returns a copy of the log in append order.
func (r *Room) Segments() []models.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

func (r *Room) append(seg models.Segment, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, seg)
	r.lastActive = now
	return len(r.segments)
}

// take empties the log and hands the previous contents to the caller.
func (r *Room) take(now time.Time) []models.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.segments
	r.segments = nil
	r.lastActive = now
	return out
}

// Stats summarizes store occupancy.
type Stats struct {
	Rooms    int
	Segments int
}

// Store maps room ids to rooms. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// GetOrCreate returns the room for id, creating an empty one if needed.
func (s *Store) GetOrCreate(id string) *Room {
	s.mu.RLock()
	room, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return room
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		return room
	}
	now := s.now()
	room = &Room{id: id, createdAt: now, lastActive: now}
	s.rooms[id] = room
	return room
}

// Lookup returns the room for id without creating it.
func (s *Store) Lookup(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// Append adds seg to the end of the room's log and returns the new length.
func (s *Store) Append(id string, seg models.Segment) int {
	return s.GetOrCreate(id).append(seg, s.clock())
}

// Clear truncates the room's log. Clearing an unknown room is a no-op.
func (s *Store) Clear(id string) {
	if room, ok := s.Lookup(id); ok {
		room.take(s.clock())
	}
}

// Take empties the room's log and returns what it held.
func (s *Store) Take(id string) []models.Segment {
	if room, ok := s.Lookup(id); ok {
		return room.take(s.clock())
	}
	return nil
}

// SnapshotSequence returns the room's log in append order.
// An unknown room yields an empty, non-nil slice.
func (s *Store) SnapshotSequence(id string) []models.Segment {
	if room, ok := s.Lookup(id); ok {
		return room.Segments()
	}
	return []models.Segment{}
}

// Remove evicts the room and returns its remaining log.
func (s *Store) Remove(id string) []models.Segment {
	s.mu.Lock()
	room, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return room.take(s.clock())
}

// IdleSince lists rooms whose last activity is before cutoff, oldest first.
func (s *Store) IdleSince(cutoff time.Time) []string {
	s.mu.RLock()
	var idle []*Room
	for _, room := range s.rooms {
		if room.LastActive().Before(cutoff) {
			idle = append(idle, room)
		}
	}
	s.mu.RUnlock()

	sort.Slice(idle, func(i, j int) bool {
		return idle[i].LastActive().Before(idle[j].LastActive())
	})
	ids := make([]string, len(idle))
	for i, room := range idle {
		ids[i] = room.id
	}
	return ids
}

// Len returns the number of rooms held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Stats returns the current room and segment counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Rooms: len(s.rooms)}
	for _, room := range s.rooms {
		st.Segments += room.Len()
	}
	return st
}

func (s *Store) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}
