package domain

import (
	"encoding/json"
	"time"
)

// RotationStatus is the state of a single pairing slot.
type RotationStatus string

const (
	RotationStatusScheduled  RotationStatus = "scheduled"
	RotationStatusInProgress RotationStatus = "in_progress"
	RotationStatusCompleted  RotationStatus = "completed"
	RotationStatusCancelled  RotationStatus = "cancelled"
)

// Valid reports whether s is a known rotation status.
func (s RotationStatus) Valid() bool {
	switch s {
	case RotationStatusScheduled, RotationStatusInProgress, RotationStatusCompleted, RotationStatusCancelled:
		return true
	}
	return false
}

// Rotation is one timed pairing slot of a session. StartsAt and EndsAt are nil
// when the owning session has no start time.
type Rotation struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId"`
	Number          int             `json:"rotationNumber"`
	DurationSeconds int             `json:"durationSeconds"`
	StartsAt        *time.Time      `json:"startsAt,omitempty"`
	EndsAt          *time.Time      `json:"endsAt,omitempty"`
	Status          RotationStatus  `json:"status"`
	SeatingPlan     json.RawMessage `json:"seatingPlan,omitempty"`
	PairingSeed     string          `json:"pairingSeed"`
	HostNotes       string          `json:"hostNotes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Clone returns a deep copy of the rotation.
func (r Rotation) Clone() Rotation {
	out := r
	out.StartsAt = CloneTime(r.StartsAt)
	out.EndsAt = CloneTime(r.EndsAt)
	out.SeatingPlan = CloneRaw(r.SeatingPlan)
	return out
}

// Contains reports whether now falls inside [StartsAt, EndsAt). Rotations
// without both bounds never contain any instant.
func (r Rotation) Contains(now time.Time) bool {
	if r.StartsAt == nil || r.EndsAt == nil {
		return false
	}
	return !now.Before(*r.StartsAt) && now.Before(*r.EndsAt)
}

// CloneRotations deep-copies a rotation slice.
func CloneRotations(rotations []Rotation) []Rotation {
	if rotations == nil {
		return nil
	}
	out := make([]Rotation, len(rotations))
	for i, r := range rotations {
		out[i] = r.Clone()
	}
	return out
}
