package scheduler

import (
	"time"

	"github.com/example/speednet/internal/domain"
)

// Locate finds the rotation running at now and the earliest rotation that
// starts after now. Rotations lacking timestamps are ignored, so sessions
// without a start time report neither.
func Locate(rotations []domain.Rotation, now time.Time) (active, next *domain.Rotation) {
	for i := range rotations {
		r := rotations[i]
		if active == nil && r.Contains(now) {
			c := r.Clone()
			active = &c
		}
		if r.StartsAt == nil || !r.StartsAt.After(now) {
			continue
		}
		if next == nil || r.StartsAt.Before(*next.StartsAt) {
			c := r.Clone()
			next = &c
		}
	}
	return active, next
}
