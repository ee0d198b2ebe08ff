package gateway

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

// SnapshotCache is a read-through cache of each room's newest snapshot.
type SnapshotCache interface {
	GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error)
	SetLatestSession(ctx context.Context, snap *models.Snapshot) error
	InvalidateLatestSession(ctx context.Context, roomID string) error
}

// Sessions saves and restores room snapshots.
type Sessions struct {
	db     store.DataStore
	cache  SnapshotCache
	logger zerolog.Logger
}

// NewSessions creates a Sessions gateway. cache may be nil.
func NewSessions(db store.DataStore, cache SnapshotCache, logger zerolog.Logger) *Sessions {
	return &Sessions{db: db, cache: cache, logger: logger}
}

// Attribution normalizes an optional username: nil or blank means unattributed.
func Attribution(username *string) *string {
	if username == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*username)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// SaveSession stores a new snapshot for roomID.
func (s *Sessions) SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error) {
	if !models.ValidRoomID(roomID) || data == "" {
		return nil, ErrInvalidInput
	}

	snap, err := s.db.SaveSession(ctx, roomID, data, Attribution(username))
	if err != nil {
		return nil, storageError("save session", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateLatestSession(ctx, roomID); err != nil {
			s.logger.Warn().Err(err).Str("room", roomID).Msg("snapshot cache invalidation failed")
		}
	}

	return snap, nil
}

// LoadLatestSession returns the newest snapshot for roomID.
func (s *Sessions) LoadLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error) {
	if !models.ValidRoomID(roomID) {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		cached, err := s.cache.GetLatestSession(ctx, roomID)
		if err != nil {
			s.logger.Warn().Err(err).Str("room", roomID).Msg("snapshot cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	snap, err := s.db.GetLatestSession(ctx, roomID)
	if err != nil {
		return nil, storageError("load session", err)
	}
	if snap == nil {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		if err := s.cache.SetLatestSession(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Str("room", roomID).Msg("snapshot cache fill failed")
		}
	}

	return snap, nil
}

// ListSessionsForUser returns every room username saved to, newest first.
func (s *Sessions) ListSessionsForUser(ctx context.Context, username string) ([]models.UserRoom, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNotFound
	}

	rooms, err := s.db.ListUserRooms(ctx, username)
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	if len(rooms) == 0 {
		return nil, ErrNotFound
	}
	return rooms, nil
}
