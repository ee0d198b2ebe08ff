package models

import "math"

// Segment is one straight stroke between two points in device pixels.
// Segments carry no identity; their order is the order the relay appended them.
type Segment struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color"`
}

// Finite reports whether every coordinate is a finite number.
func (s Segment) Finite() bool {
	for _, v := range [...]float64{s.X0, s.Y0, s.X1, s.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DrawEvent is the draw payload exchanged on the real-time channel.
type DrawEvent struct {
	RoomID string `json:"roomId"`
	Segment
}

// MaxRoomIDLength bounds room identifiers accepted anywhere in the service.
const MaxRoomIDLength = 128

// ValidRoomID reports whether id is acceptable as a room identifier.
func ValidRoomID(id string) bool {
	return id != "" && len(id) <= MaxRoomIDLength
}
