// Package persistencetest holds the behavioural checks every
// persistence.Store implementation must pass.
package persistencetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) persistence.Store

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises store semantics shared by all implementations.
func Run(t *testing.T, newStore Factory) {
	t.Run("session round trip", func(t *testing.T) { testSessionRoundTrip(t, newStore(t)) })
	t.Run("session filters", func(t *testing.T) { testSessionFilters(t, newStore(t)) })
	t.Run("duplicate slug", func(t *testing.T) { testDuplicateSlug(t, newStore(t)) })
	t.Run("rotations", func(t *testing.T) { testRotations(t, newStore(t)) })
	t.Run("signups", func(t *testing.T) { testSignups(t, newStore(t)) })
	t.Run("signup filters", func(t *testing.T) { testSignupFilters(t, newStore(t)) })
	t.Run("cards", func(t *testing.T) { testCards(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

// Session builds a minimal valid session for tests.
func Session(id, companyID string, start *time.Time) domain.Session {
	return domain.Session{
		ID:                      id,
		CompanyID:               companyID,
		Title:                   "Session " + id,
		Slug:                    "session-" + id,
		Status:                  domain.SessionStatusScheduled,
		Visibility:              domain.VisibilityWorkspace,
		AccessType:              domain.AccessTypeFree,
		StartTime:               domain.CloneTime(start),
		SessionLengthMinutes:    30,
		RotationDurationSeconds: 120,
		WaitlistLimit:           30,
		PenaltyRules:            domain.DefaultPenaltyRules(),
		CreatedAt:               baseTime,
		UpdatedAt:               baseTime,
	}
}

// Signup builds a registered signup for tests.
func Signup(id, sessionID, email string, createdAt time.Time) domain.Signup {
	return domain.Signup{
		ID:          id,
		SessionID:   sessionID,
		Email:       email,
		DisplayName: email,
		Status:      domain.SignupStatusRegistered,
		Source:      domain.SignupSourceSelf,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func write(t *testing.T, store persistence.Store, fn func(ctx context.Context, tx persistence.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithinTx(ctx, func(tx persistence.Tx) error { return fn(ctx, tx) }))
}

func read(t *testing.T, store persistence.Store, fn func(ctx context.Context, tx persistence.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.View(ctx, func(tx persistence.Tx) error { return fn(ctx, tx) }))
}

func testSessionRoundTrip(t *testing.T, store persistence.Store) {
	start := baseTime.Add(48 * time.Hour)
	price := int64(2599)
	limit := 12
	session := Session("s1", "acme", &start)
	session.AccessType = domain.AccessTypePaid
	session.PriceCents = &price
	session.JoinLimit = &limit
	session.RequiresApproval = true
	session.VideoConfig = []byte(`{"provider":"meet"}`)
	session.PenaltyRules = domain.PenaltyRules{NoShowThreshold: 3, CooldownDays: 7, PenaltyWeight: 2}

	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		return tx.CreateSession(ctx, session)
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		got, err := tx.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.CompanyID)
		assert.Equal(t, domain.AccessTypePaid, got.AccessType)
		require.NotNil(t, got.PriceCents)
		assert.Equal(t, price, *got.PriceCents)
		require.NotNil(t, got.JoinLimit)
		assert.Equal(t, 12, *got.JoinLimit)
		require.NotNil(t, got.StartTime)
		assert.True(t, got.StartTime.Equal(start))
		assert.Nil(t, got.EndTime)
		assert.True(t, got.RequiresApproval)
		assert.JSONEq(t, `{"provider":"meet"}`, string(got.VideoConfig))
		assert.Equal(t, 3, got.PenaltyRules.NoShowThreshold)
		assert.Equal(t, 7, got.PenaltyRules.CooldownDays)
		assert.True(t, got.CreatedAt.Equal(baseTime))
		return nil
	})

	session.Title = "Renamed"
	session.JoinLimit = nil
	session.UpdatedAt = baseTime.Add(time.Hour)
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		return tx.UpdateSession(ctx, session)
	})
	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		got, err := tx.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Nil(t, got.JoinLimit)
		assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))
		return nil
	})
}

func testSessionFilters(t *testing.T, store persistence.Store) {
	early := baseTime.Add(time.Hour)
	late := baseTime.Add(72 * time.Hour)
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		undated := Session("c", "acme", nil)
		if err := tx.CreateSession(ctx, undated); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, Session("b", "acme", &late)); err != nil {
			return err
		}
		other := Session("a", "globex", &early)
		other.Status = domain.SessionStatusCancelled
		return tx.CreateSession(ctx, other)
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		all, err := tx.FindSessions(ctx, persistence.SessionFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, sessionIDs(all), "ordered by start time with undated last")

		acme, err := tx.FindSessions(ctx, persistence.SessionFilter{CompanyIDs: []string{"acme"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, sessionIDs(acme))

		bound := baseTime.Add(2 * time.Hour)
		upcoming, err := tx.FindSessions(ctx, persistence.SessionFilter{StartsAfter: &bound})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, sessionIDs(upcoming))

		cancelled, err := tx.FindSessions(ctx, persistence.SessionFilter{Statuses: []domain.SessionStatus{domain.SessionStatusCancelled}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, sessionIDs(cancelled))

		bySlug, err := tx.FindSessions(ctx, persistence.SessionFilter{Slug: "session-b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, sessionIDs(bySlug))
		return nil
	})
}

func testDuplicateSlug(t *testing.T, store persistence.Store) {
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		return tx.CreateSession(ctx, Session("s1", "acme", nil))
	})

	dup := Session("s2", "acme", nil)
	dup.Slug = "session-s1"
	err := store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		return tx.CreateSession(context.Background(), dup)
	})
	require.ErrorIs(t, err, persistence.ErrDuplicate)

	dup.CompanyID = "globex"
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		return tx.CreateSession(ctx, dup)
	})
}

func testRotations(t *testing.T, store persistence.Store) {
	start := baseTime
	rotation := func(id string, n int) domain.Rotation {
		s := start.Add(time.Duration(n-1) * 2 * time.Minute)
		e := s.Add(2 * time.Minute)
		return domain.Rotation{
			ID: id, SessionID: "s1", Number: n, DurationSeconds: 120,
			StartsAt: &s, EndsAt: &e, Status: domain.RotationStatusScheduled,
			PairingSeed: "seed-" + id, CreatedAt: baseTime,
		}
	}

	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.CreateSession(ctx, Session("s1", "acme", &start)); err != nil {
			return err
		}
		return tx.CreateRotations(ctx, []domain.Rotation{rotation("r2", 2), rotation("r1", 1)})
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		got, err := tx.FindRotations(ctx, []string{"s1"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Number)
		assert.Equal(t, 2, got[1].Number)
		assert.Equal(t, "seed-r1", got[0].PairingSeed)
		require.NotNil(t, got[1].StartsAt)
		assert.True(t, got[1].StartsAt.Equal(start.Add(2*time.Minute)))
		return nil
	})

	err := store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		return tx.CreateRotations(context.Background(), []domain.Rotation{rotation("r3", 1)})
	})
	require.ErrorIs(t, err, persistence.ErrDuplicate)

	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.DeleteRotations(ctx, "s1"); err != nil {
			return err
		}
		return tx.CreateRotations(ctx, []domain.Rotation{rotation("r4", 1)})
	})
	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		got, err := tx.FindRotations(ctx, []string{"s1"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r4", got[0].ID)
		return nil
	})
}

func testSignups(t *testing.T, store persistence.Store) {
	checkedIn := baseTime.Add(time.Hour)
	score := 4.5
	seat := 3
	signup := Signup("u1", "s1", "ada@example.com", baseTime)
	signup.Status = domain.SignupStatusCheckedIn
	signup.CheckedInAt = &checkedIn
	signup.SatisfactionScore = &score
	signup.SeatNumber = &seat
	signup.Engagement = domain.Engagement{ProfileSharedCount: 2, MessagesSent: 5}
	signup.BusinessCard = &domain.CardSnapshot{CardID: "card-1", DisplayName: "Ada", CapturedAt: baseTime}
	signup.Metadata = []byte(`{"ticket":"A1"}`)

	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.CreateSession(ctx, Session("s1", "acme", nil)); err != nil {
			return err
		}
		return tx.CreateSignup(ctx, signup)
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		got, err := tx.GetSignup(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.SignupStatusCheckedIn, got.Status)
		require.NotNil(t, got.CheckedInAt)
		assert.True(t, got.CheckedInAt.Equal(checkedIn))
		require.NotNil(t, got.SatisfactionScore)
		assert.InDelta(t, 4.5, *got.SatisfactionScore, 0.0001)
		require.NotNil(t, got.SeatNumber)
		assert.Equal(t, 3, *got.SeatNumber)
		assert.Equal(t, 5, got.Engagement.MessagesSent)
		require.NotNil(t, got.BusinessCard)
		assert.Equal(t, "card-1", got.BusinessCard.CardID)
		assert.JSONEq(t, `{"ticket":"A1"}`, string(got.Metadata))
		assert.Nil(t, got.ParticipantID)
		return nil
	})

	// A second active signup for the same email differing only in case is rejected.
	err := store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		return tx.CreateSignup(context.Background(), Signup("u2", "s1", "ADA@example.com", baseTime))
	})
	require.ErrorIs(t, err, persistence.ErrDuplicate)

	// Removing the first signup frees the email.
	signup.Status = domain.SignupStatusRemoved
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.UpdateSignup(ctx, signup); err != nil {
			return err
		}
		return tx.CreateSignup(ctx, Signup("u2", "s1", "ada@example.com", baseTime.Add(time.Minute)))
	})

	err = store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		return tx.CreateSignup(context.Background(), Signup("u3", "missing", "bob@example.com", baseTime))
	})
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func testSignupFilters(t *testing.T, store persistence.Store) {
	participant := "p-1"
	penalized := baseTime.Add(-24 * time.Hour)
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.CreateSession(ctx, Session("s1", "acme", nil)); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, Session("s2", "globex", nil)); err != nil {
			return err
		}
		a := Signup("a", "s1", "ada@example.com", baseTime)
		a.PenaltyCount = 1
		a.LastPenaltyAt = &penalized
		a.Status = domain.SignupStatusNoShow
		b := Signup("b", "s2", "bob@example.com", baseTime.Add(time.Minute))
		b.ParticipantID = &participant
		c := Signup("c", "s2", "cy@example.com", baseTime.Add(2*time.Minute))
		c.Status = domain.SignupStatusWaitlisted
		for _, s := range []domain.Signup{c, b, a} {
			if err := tx.CreateSignup(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		all, err := tx.FindSignups(ctx, persistence.SignupFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, signupIDs(all), "ordered by creation")

		globex, err := tx.FindSignups(ctx, persistence.SignupFilter{CompanyIDs: []string{"globex"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, signupIDs(globex))

		either, err := tx.FindSignups(ctx, persistence.SignupFilter{ParticipantID: "p-1", Email: "ADA@example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, signupIDs(either))

		active, err := tx.FindSignups(ctx, persistence.SignupFilter{
			SessionIDs:      []string{"s2"},
			ExcludeStatuses: []domain.SignupStatus{domain.SignupStatusWaitlisted, domain.SignupStatusRemoved},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, signupIDs(active))

		since := baseTime.Add(-48 * time.Hour)
		recent, err := tx.FindSignups(ctx, persistence.SignupFilter{PenalizedSince: &since})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, signupIDs(recent))

		since = baseTime
		none, err := tx.FindSignups(ctx, persistence.SignupFilter{PenalizedSince: &since})
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
}

func testCards(t *testing.T, store persistence.Store) {
	owner := "user-1"
	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		for _, card := range []domain.BusinessCard{
			{ID: "k2", CompanyID: "acme", OwnerID: &owner, DisplayName: "Zed", CreatedAt: baseTime, UpdatedAt: baseTime},
			{ID: "k1", CompanyID: "acme", DisplayName: "Amy", Headline: "CTO", CreatedAt: baseTime, UpdatedAt: baseTime},
			{ID: "k3", CompanyID: "globex", DisplayName: "Bo", CreatedAt: baseTime, UpdatedAt: baseTime},
		} {
			if err := tx.CreateCard(ctx, card); err != nil {
				return err
			}
		}
		return nil
	})

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		acme, err := tx.FindCards(ctx, persistence.CardFilter{CompanyIDs: []string{"acme"}})
		require.NoError(t, err)
		require.Len(t, acme, 2)
		assert.Equal(t, "Amy", acme[0].DisplayName)
		assert.Equal(t, "CTO", acme[0].Headline)

		owned, err := tx.FindCards(ctx, persistence.CardFilter{OwnerID: owner})
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "k2", owned[0].ID)
		return nil
	})

	write(t, store, func(ctx context.Context, tx persistence.Tx) error {
		card, err := tx.GetCard(ctx, "k1")
		if err != nil {
			return err
		}
		card.Headline = "CEO"
		card.UpdatedAt = baseTime.Add(time.Hour)
		return tx.UpdateCard(ctx, card)
	})
	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		card, err := tx.GetCard(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "CEO", card.Headline)
		return nil
	})
}

func testRollback(t *testing.T, store persistence.Store) {
	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		ctx := context.Background()
		if err := tx.CreateSession(ctx, Session("s1", "acme", nil)); err != nil {
			return err
		}
		if err := tx.CreateSignup(ctx, Signup("u1", "s1", "ada@example.com", baseTime)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		sessions, err := tx.FindSessions(ctx, persistence.SessionFilter{})
		require.NoError(t, err)
		assert.Empty(t, sessions)
		signups, err := tx.FindSignups(ctx, persistence.SignupFilter{})
		require.NoError(t, err)
		assert.Empty(t, signups)
		return nil
	})
}

func testNotFound(t *testing.T, store persistence.Store) {
	read(t, store, func(ctx context.Context, tx persistence.Tx) error {
		_, err := tx.GetSession(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = tx.GetSignup(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = tx.GetCard(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		return nil
	})

	err := store.WithinTx(context.Background(), func(tx persistence.Tx) error {
		return tx.UpdateSession(context.Background(), Session("nope", "acme", nil))
	})
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func sessionIDs(sessions []domain.Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

func signupIDs(signups []domain.Signup) []string {
	ids := make([]string, len(signups))
	for i, s := range signups {
		ids[i] = s.ID
	}
	return ids
}
