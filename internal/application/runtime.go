package application

import (
	"time"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/scheduler"
)

// Project computes the live view of a session at now. It has no side effects.
func Project(session domain.Session, rotations []domain.Rotation, signups []domain.Signup, now time.Time) RuntimeSnapshot {
	own := make([]domain.Signup, 0, len(signups))
	for _, signup := range signups {
		if signup.SessionID == session.ID {
			own = append(own, signup)
		}
	}

	active, next := scheduler.Locate(rotations, now)
	snapshot := RuntimeSnapshot{
		ActiveRotation: active,
		NextRotation:   next,
		Registered:     []domain.Signup{},
		CheckedIn:      []domain.Signup{},
		Waitlist:       []domain.Signup{},
		Completed:      []domain.Signup{},
		NoShows:        []domain.Signup{},
		Counts:         countSignups(own),
		GeneratedAt:    now,
	}

	for _, signup := range own {
		switch signup.Status {
		case domain.SignupStatusRegistered:
			snapshot.Registered = append(snapshot.Registered, signup.Clone())
		case domain.SignupStatusCheckedIn:
			snapshot.CheckedIn = append(snapshot.CheckedIn, signup.Clone())
		case domain.SignupStatusWaitlisted:
			snapshot.Waitlist = append(snapshot.Waitlist, signup.Clone())
		case domain.SignupStatusCompleted:
			snapshot.Completed = append(snapshot.Completed, signup.Clone())
		case domain.SignupStatusNoShow:
			snapshot.NoShows = append(snapshot.NoShows, signup.Clone())
		}
	}
	return snapshot
}

func countSignups(signups []domain.Signup) SignupCounts {
	var counts SignupCounts
	for _, signup := range signups {
		switch signup.Status {
		case domain.SignupStatusRegistered:
			counts.Registered++
		case domain.SignupStatusWaitlisted:
			counts.Waitlisted++
		case domain.SignupStatusCheckedIn:
			counts.CheckedIn++
		case domain.SignupStatusCompleted:
			counts.Completed++
		case domain.SignupStatusNoShow:
			counts.NoShow++
		case domain.SignupStatusRemoved:
			counts.Removed++
		}
	}
	return counts
}
