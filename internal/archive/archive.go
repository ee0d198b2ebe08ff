// Package archive flattens room logs leaving memory into persisted snapshots.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/gateway"
	"github.com/eldtechnologies/whiteboard/internal/metrics"
	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/raster"
	"github.com/eldtechnologies/whiteboard/internal/relay"
)

// SessionStore is the part of the session gateway the archiver needs.
type SessionStore interface {
	LoadLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error)
	SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error)
}

// Archiver layers a flushed segment log over the room's latest snapshot and
// stores the result as a new unattributed snapshot.
type Archiver struct {
	sessions SessionStore
	opts     raster.Options
	logger   zerolog.Logger
}

var _ relay.Archiver = (*Archiver)(nil)

// New creates an Archiver.
func New(sessions SessionStore, opts raster.Options, logger zerolog.Logger) *Archiver {
	return &Archiver{
		sessions: sessions,
		opts:     opts,
		logger:   logger.With().Str("component", "archive").Logger(),
	}
}

// Archive implements relay.Archiver.
func (a *Archiver) Archive(ctx context.Context, f relay.Flush) error {
	base, err := a.base(ctx, f)
	if err != nil {
		return err
	}

	data, err := raster.FlattenDataURL(base, f.Segments, a.opts)
	if err != nil && base != "" {
		a.logger.Warn().Err(err).Str("room", f.RoomID).Msg("latest snapshot unreadable, flattening onto a blank canvas")
		data, err = raster.FlattenDataURL("", f.Segments, a.opts)
	}
	if err != nil {
		return fmt.Errorf("rasterize room %s: %w", f.RoomID, err)
	}

	snap, err := a.sessions.SaveSession(ctx, f.RoomID, data, nil)
	if err != nil {
		return fmt.Errorf("save snapshot for room %s: %w", f.RoomID, err)
	}

	metrics.SessionsSaved.WithLabelValues("archive").Inc()
	a.logger.Info().
		Str("room", f.RoomID).
		Int("segments", len(f.Segments)).
		Bool("layered", base != "").
		Int64("snapshot", snap.ID).
		Msg("archived room")
	return nil
}

// base returns the data URL the flush is drawn over, or "" for a blank canvas.
func (a *Archiver) base(ctx context.Context, f relay.Flush) (string, error) {
	if f.Cleared {
		return "", nil
	}
	latest, err := a.sessions.LoadLatestSession(ctx, f.RoomID)
	switch {
	case err == nil:
		return latest.Data, nil
	case errors.Is(err, gateway.ErrNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("load latest snapshot for room %s: %w", f.RoomID, err)
	}
}
