package crypto

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUUIDv7 returns a time-ordered UUID v7, used for user ids.
func NewUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewConnID returns a lexically sortable id for a real-time connection.
func NewConnID() string {
	return ulid.Make().String()
}
