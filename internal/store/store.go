package store

import (
	"context"
	"errors"
	"time"

	"github.com/eldtechnologies/whiteboard/internal/metrics"
	"github.com/eldtechnologies/whiteboard/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// DataStore defines the interface for persistent storage of snapshots and users.
// Both PostgresStore and SQLiteStore implement this interface.
// Single-row lookups return (nil, nil) when nothing matches.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Session snapshots
	SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error)
	GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error)
	ListUserRooms(ctx context.Context, username string) ([]models.UserRoom, error)

	// Users
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
