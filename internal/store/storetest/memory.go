// Package storetest provides an in-memory store.DataStore for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/eldtechnologies/whiteboard/internal/crypto"
	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

// Memory is a goroutine-safe DataStore backed by slices and maps.
// Setting Err makes every operation fail with it.
type Memory struct {
	mu       sync.Mutex
	sessions []models.Snapshot
	users    map[string]models.User
	nextID   int64

	Err error
}

var _ store.DataStore = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]models.User)}
}

func (m *Memory) Close() {}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *Memory) SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	snap := models.Snapshot{
		ID:        m.nextID,
		RoomID:    roomID,
		Data:      data,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	m.sessions = append(m.sessions, snap)
	return &snap, nil
}

func (m *Memory) GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].RoomID == roomID {
			snap := m.sessions[i]
			return &snap, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListUserRooms(ctx context.Context, username string) ([]models.UserRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := make(map[string]bool)
	var rooms []models.UserRoom
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.Username == nil || *s.Username != username || seen[s.RoomID] {
			continue
		}
		seen[s.RoomID] = true
		rooms = append(rooms, models.UserRoom{RoomID: s.RoomID})
	}
	return rooms, nil
}

func (m *Memory) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.users[username]; ok {
		return nil, store.ErrDuplicate
	}
	user := models.User{
		ID:           crypto.NewUUIDv7(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[username] = user
	return &user, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// Sessions returns every stored snapshot in insert order.
func (m *Memory) Sessions() []models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Snapshot, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// SetErr makes subsequent operations fail with err (nil restores them).
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}
