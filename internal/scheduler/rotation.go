// Package scheduler derives rotation timetables for speed-networking sessions
// and locates the rotation that is live at a given instant.
package scheduler

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/example/speednet/internal/domain"
)

const (
	// MinRotationSeconds is the shortest rotation a session may use.
	MinRotationSeconds = 60
	// MaxRotationSeconds is the longest rotation a session may use.
	MaxRotationSeconds = 600
	// DefaultRotationSeconds applies when no rotation duration is requested.
	DefaultRotationSeconds = 120
	// DefaultSessionMinutes applies when neither a length nor an end time is known.
	DefaultSessionMinutes = 30
	// MaxSessionMinutes caps a session at one day.
	MaxSessionMinutes = 24 * 60
	// MaxRotations is the most rotations a session can hold: a full day of
	// the shortest rotation.
	MaxRotations = MaxSessionMinutes * 60 / MinRotationSeconds
)

// ClampDuration rounds the requested rotation length to whole seconds and
// clamps it into [MinRotationSeconds, MaxRotationSeconds].
func ClampDuration(seconds float64) int {
	if math.IsNaN(seconds) {
		return DefaultRotationSeconds
	}
	rounded := math.Round(seconds)
	if rounded < MinRotationSeconds {
		return MinRotationSeconds
	}
	if rounded > MaxRotationSeconds {
		return MaxRotationSeconds
	}
	return int(rounded)
}

// Override is a manually supplied rotation. Nil fields are derived from the
// session parameters.
type Override struct {
	Number          *int
	DurationSeconds *float64
	StartsAt        *time.Time
	EndsAt          *time.Time
	Status          domain.RotationStatus
	SeatingPlan     json.RawMessage
	PairingSeed     string
	HostNotes       string
}

// Params describes the session a timetable is built for.
type Params struct {
	SessionID       string
	Start           *time.Time
	LengthMinutes   int
	DurationSeconds int
	// Explicit switches the scheduler to manual mode when non-empty.
	Explicit []Override
}

// RotationCount returns how many full rotations fit into the session. A
// session always has at least one rotation.
func RotationCount(lengthMinutes, durationSeconds int) int {
	if durationSeconds <= 0 {
		durationSeconds = DefaultRotationSeconds
	}
	if lengthMinutes < 0 {
		lengthMinutes = 0
	}
	if lengthMinutes > MaxSessionMinutes {
		lengthMinutes = MaxSessionMinutes
	}
	total := (lengthMinutes * 60) / durationSeconds
	if total < 1 {
		return 1
	}
	return min(total, MaxRotations)
}

// BuildSchedule produces the full, ordered rotation set for a session. The
// result always replaces any previous set; rotations are never patched.
//
// newSeed supplies the opaque pairing seed consumed by the pairing algorithm.
// Identifiers and creation stamps are left for the caller to assign.
func BuildSchedule(p Params, newSeed func() string) []domain.Rotation {
	if newSeed == nil {
		newSeed = func() string { return "" }
	}
	duration := p.DurationSeconds
	if duration <= 0 {
		duration = DefaultRotationSeconds
	}

	if len(p.Explicit) > 0 {
		return buildExplicit(p, duration, newSeed)
	}

	total := RotationCount(p.LengthMinutes, duration)
	rotations := make([]domain.Rotation, 0, total)
	for i := 1; i <= total; i++ {
		startsAt, endsAt := slotBounds(p.Start, i, duration)
		rotations = append(rotations, domain.Rotation{
			SessionID:       p.SessionID,
			Number:          i,
			DurationSeconds: duration,
			StartsAt:        startsAt,
			EndsAt:          endsAt,
			Status:          domain.RotationStatusScheduled,
			PairingSeed:     newSeed(),
		})
	}
	return rotations
}

func buildExplicit(p Params, sessionDuration int, newSeed func() string) []domain.Rotation {
	capacity := min(len(p.Explicit), MaxRotations)
	seen := make(map[int]struct{}, capacity)
	rotations := make([]domain.Rotation, 0, capacity)

	for i, entry := range p.Explicit {
		number := i + 1
		if entry.Number != nil {
			number = *entry.Number
		}
		if number <= 0 || number > MaxRotations {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		duration := sessionDuration
		if entry.DurationSeconds != nil {
			duration = ClampDuration(*entry.DurationSeconds)
		}

		startsAt := domain.CloneTime(entry.StartsAt)
		if startsAt == nil && p.Start != nil {
			offset := time.Duration(number-1) * time.Duration(duration) * time.Second
			v := p.Start.Add(offset)
			startsAt = &v
		}
		endsAt := domain.CloneTime(entry.EndsAt)
		if endsAt == nil && startsAt != nil {
			v := startsAt.Add(time.Duration(duration) * time.Second)
			endsAt = &v
		}

		status := entry.Status
		if status == "" {
			status = domain.RotationStatusScheduled
		}
		seed := entry.PairingSeed
		if seed == "" {
			seed = newSeed()
		}

		rotations = append(rotations, domain.Rotation{
			SessionID:       p.SessionID,
			Number:          number,
			DurationSeconds: duration,
			StartsAt:        startsAt,
			EndsAt:          endsAt,
			Status:          status,
			SeatingPlan:     domain.CloneRaw(entry.SeatingPlan),
			PairingSeed:     seed,
			HostNotes:       entry.HostNotes,
		})
	}

	sort.SliceStable(rotations, func(i, j int) bool {
		return rotations[i].Number < rotations[j].Number
	})
	return rotations
}

func slotBounds(start *time.Time, number, duration int) (*time.Time, *time.Time) {
	if start == nil {
		return nil, nil
	}
	length := time.Duration(duration) * time.Second
	s := start.Add(time.Duration(number-1) * length)
	e := s.Add(length)
	return &s, &e
}
