package models

import "time"

// Snapshot is a flattened raster of a room saved at a point in time.
// Data is an opaque encoded image (usually a PNG data URL).
type Snapshot struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	Data      string    `json:"data"`
	Username  *string   `json:"username"` // nil when unattributed
	CreatedAt time.Time `json:"createdAt"`
}

// UserRoom is one entry of a user's saved-room listing.
type UserRoom struct {
	RoomID string `json:"roomId"`
}
