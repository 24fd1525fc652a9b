package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/scheduler"
)

func TestProject(t *testing.T) {
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)
	session := domain.Session{ID: "s-1", StartTime: &start}
	rotations := scheduler.BuildSchedule(scheduler.Params{
		SessionID:       "s-1",
		Start:           &start,
		LengthMinutes:   10,
		DurationSeconds: 120,
	}, nil)
	signups := []domain.Signup{
		{ID: "a", SessionID: "s-1", Status: domain.SignupStatusRegistered},
		{ID: "b", SessionID: "s-1", Status: domain.SignupStatusCheckedIn},
		{ID: "c", SessionID: "s-1", Status: domain.SignupStatusWaitlisted},
		{ID: "d", SessionID: "s-1", Status: domain.SignupStatusNoShow},
		{ID: "e", SessionID: "s-1", Status: domain.SignupStatusRemoved},
		{ID: "f", SessionID: "other", Status: domain.SignupStatusRegistered},
	}

	t.Run("mid session", func(t *testing.T) {
		now := start.Add(5 * time.Minute)
		snapshot := Project(session, rotations, signups, now)

		require.NotNil(t, snapshot.ActiveRotation)
		assert.Equal(t, 3, snapshot.ActiveRotation.Number)
		require.NotNil(t, snapshot.NextRotation)
		assert.Equal(t, 4, snapshot.NextRotation.Number)

		assert.Len(t, snapshot.Registered, 1)
		assert.Len(t, snapshot.CheckedIn, 1)
		assert.Len(t, snapshot.Waitlist, 1)
		assert.Len(t, snapshot.NoShows, 1)
		assert.Empty(t, snapshot.Completed)
		assert.Equal(t, SignupCounts{Registered: 1, Waitlisted: 1, CheckedIn: 1, NoShow: 1, Removed: 1}, snapshot.Counts)
		assert.Equal(t, 3, snapshot.Counts.Active())
		assert.True(t, snapshot.GeneratedAt.Equal(now))
	})

	t.Run("before start", func(t *testing.T) {
		snapshot := Project(session, rotations, nil, start.Add(-time.Minute))
		assert.Nil(t, snapshot.ActiveRotation)
		require.NotNil(t, snapshot.NextRotation)
		assert.Equal(t, 1, snapshot.NextRotation.Number)
		assert.NotNil(t, snapshot.Registered, "empty buckets serialize as arrays")
	})

	t.Run("after end", func(t *testing.T) {
		snapshot := Project(session, rotations, nil, start.Add(10*time.Minute))
		assert.Nil(t, snapshot.ActiveRotation)
		assert.Nil(t, snapshot.NextRotation)
	})

	t.Run("unscheduled session", func(t *testing.T) {
		unscheduled := scheduler.BuildSchedule(scheduler.Params{SessionID: "s-1", LengthMinutes: 10, DurationSeconds: 120}, nil)
		snapshot := Project(domain.Session{ID: "s-1"}, unscheduled, nil, start)
		assert.Nil(t, snapshot.ActiveRotation)
		assert.Nil(t, snapshot.NextRotation)
	})
}
