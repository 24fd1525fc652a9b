package application

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/scheduler"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Founder Mixer":         "founder-mixer",
		"  Café  Énergie!! ":    "cafe-energie",
		"Q3 -- Sales & Rev Ops": "q3-sales-rev-ops",
		"東京":                    "",
		"---":                   "",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Slugify(in))
		})
	}

	long := Slugify(strings.Repeat("ab-", 40))
	assert.LessOrEqual(t, len(long), maxSlugLength)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func draftFor(in SessionInput) sessionDraft {
	return sessionDraft{input: in, creating: true, slugSuffix: func() string { return "deadbeef" }}
}

func TestSessionDraftDefaults(t *testing.T) {
	session, vErr := draftFor(SessionInput{Title: strPtr("Mixer")}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())

	assert.Equal(t, "mixer", session.Slug)
	assert.Equal(t, scheduler.DefaultRotationSeconds, session.RotationDurationSeconds)
	assert.Equal(t, scheduler.DefaultSessionMinutes, session.SessionLengthMinutes)
	assert.Equal(t, defaultWaitlistLimit, session.WaitlistLimit)
	assert.Nil(t, session.JoinLimit)
	assert.Equal(t, domain.DefaultPenaltyRules(), session.PenaltyRules)
}

func TestSessionDraftSlugFallback(t *testing.T) {
	session, vErr := draftFor(SessionInput{Title: strPtr("東京 ミートアップ")}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())
	assert.Equal(t, "session-deadbeef", session.Slug)
}

func TestSessionDraftClampsDuration(t *testing.T) {
	cases := map[float64]int{
		10:     60,
		59.4:   60,
		90.5:   91,
		120:    120,
		599.6:  600,
		100000: 600,
	}
	for requested, want := range cases {
		session, vErr := draftFor(SessionInput{
			Title:                   strPtr("Mixer"),
			RotationDurationSeconds: floatPtr(requested),
		}).apply(domain.Session{})
		require.False(t, vErr.HasErrors())
		assert.Equal(t, want, session.RotationDurationSeconds, "requested %v", requested)
	}
}

func TestSessionDraftDerivesLengthFromTimes(t *testing.T) {
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.FixedZone("EST", -5*3600))
	end := start.Add(75 * time.Minute)

	session, vErr := draftFor(SessionInput{
		Title:     strPtr("Mixer"),
		StartTime: &start,
		EndTime:   &end,
	}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())
	assert.Equal(t, 75, session.SessionLengthMinutes)
	assert.Equal(t, time.UTC, session.StartTime.Location())

	explicit, vErr := draftFor(SessionInput{
		Title:                strPtr("Mixer"),
		StartTime:            &start,
		EndTime:              &end,
		SessionLengthMinutes: intPtr(45),
	}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())
	assert.Equal(t, 45, explicit.SessionLengthMinutes)
}

func TestSessionDraftJoinLimit(t *testing.T) {
	cases := []struct {
		in   int
		want *int
	}{
		{in: 0, want: nil},
		{in: -3, want: nil},
		{in: 1, want: intPtr(2)},
		{in: 12, want: intPtr(12)},
	}
	for _, tc := range cases {
		session, vErr := draftFor(SessionInput{Title: strPtr("Mixer"), JoinLimit: intPtr(tc.in)}).apply(domain.Session{})
		require.False(t, vErr.HasErrors())
		assert.Equal(t, tc.want, session.JoinLimit, "joinLimit %d", tc.in)
	}
}

func TestSessionDraftPrice(t *testing.T) {
	t.Run("paid from major units", func(t *testing.T) {
		session, vErr := draftFor(SessionInput{
			Title:      strPtr("Mixer"),
			AccessType: strPtr("paid"),
			Price:      floatPtr(19.99),
		}).apply(domain.Session{})
		require.False(t, vErr.HasErrors())
		require.NotNil(t, session.PriceCents)
		assert.Equal(t, int64(1999), *session.PriceCents)
	})

	t.Run("paid without price", func(t *testing.T) {
		_, vErr := draftFor(SessionInput{Title: strPtr("Mixer"), AccessType: strPtr("paid")}).apply(domain.Session{})
		require.True(t, vErr.HasErrors())
		assert.Contains(t, vErr.FieldErrors, "priceCents")
	})

	t.Run("free drops price", func(t *testing.T) {
		price := int64(500)
		base := domain.Session{AccessType: domain.AccessTypePaid, PriceCents: &price}
		draft := sessionDraft{input: SessionInput{AccessType: strPtr("free")}}
		session, vErr := draft.apply(base)
		require.False(t, vErr.HasErrors())
		assert.Nil(t, session.PriceCents)
	})
}

func TestSessionDraftRejectsInvalidInput(t *testing.T) {
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)
	_, vErr := draftFor(SessionInput{
		Title:         strPtr("  "),
		Status:        strPtr("live"),
		Visibility:    strPtr("secret"),
		AccessType:    strPtr("barter"),
		StartTime:     &start,
		EndTime:       timePtr(start.Add(-time.Minute)),
		WaitlistLimit: intPtr(-1),
		PenaltyRules:  &PenaltyRulesInput{CooldownDays: intPtr(0)},
		VideoConfig:   json.RawMessage(`{"room":`),
		Rotations:     []RotationInput{{Status: strPtr("paused")}},
	}).apply(domain.Session{})

	require.True(t, vErr.HasErrors())
	for _, field := range []string{
		"title", "status", "visibility", "accessType", "endTime",
		"waitlistLimit", "penaltyRules.cooldownDays", "videoConfig", "rotations[0].status",
	} {
		assert.Contains(t, vErr.FieldErrors, field)
	}
}

func TestSessionDraftTitleLengthCountsCharacters(t *testing.T) {
	title := strings.Repeat("é", maxTitleLength)
	session, vErr := draftFor(SessionInput{Title: strPtr(title)}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())
	assert.Equal(t, title, session.Title)

	_, vErr = draftFor(SessionInput{Title: strPtr(title + "é")}).apply(domain.Session{})
	assert.Contains(t, vErr.FieldErrors, "title")
}

func TestSessionDraftBoundsLength(t *testing.T) {
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)

	_, vErr := draftFor(SessionInput{
		Title:                strPtr("Mixer"),
		SessionLengthMinutes: intPtr(scheduler.MaxSessionMinutes + 1),
	}).apply(domain.Session{})
	assert.Contains(t, vErr.FieldErrors, "sessionLengthMinutes")

	_, vErr = draftFor(SessionInput{
		Title:     strPtr("Mixer"),
		StartTime: &start,
		EndTime:   timePtr(start.AddDate(2, 0, 0)),
	}).apply(domain.Session{})
	assert.Contains(t, vErr.FieldErrors, "endTime")

	_, vErr = draftFor(SessionInput{
		Title:     strPtr("Mixer"),
		Rotations: make([]RotationInput, scheduler.MaxRotations+1),
	}).apply(domain.Session{})
	assert.Contains(t, vErr.FieldErrors, "rotations")

	session, vErr := draftFor(SessionInput{
		Title:                strPtr("Mixer"),
		SessionLengthMinutes: intPtr(scheduler.MaxSessionMinutes),
	}).apply(domain.Session{})
	require.False(t, vErr.HasErrors())
	assert.Equal(t, scheduler.MaxSessionMinutes, session.SessionLengthMinutes)
}

func TestSessionDraftUpdateKeepsUntouchedFields(t *testing.T) {
	limit := 8
	base := domain.Session{
		Title:                   "Mixer",
		Slug:                    "mixer",
		SessionLengthMinutes:    60,
		RotationDurationSeconds: 180,
		JoinLimit:               &limit,
		WaitlistLimit:           4,
		PenaltyRules:            domain.PenaltyRules{NoShowThreshold: 3, CooldownDays: 7, PenaltyWeight: 1},
	}
	updated, vErr := sessionDraft{input: SessionInput{Title: strPtr("Renamed")}}.apply(base)
	require.False(t, vErr.HasErrors())

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "mixer", updated.Slug, "slug survives a title change")
	assert.Equal(t, 60, updated.SessionLengthMinutes)
	assert.Equal(t, 180, updated.RotationDurationSeconds)
	assert.Equal(t, 8, *updated.JoinLimit)
	assert.Equal(t, 4, updated.WaitlistLimit)
	assert.Equal(t, 3, updated.PenaltyRules.NoShowThreshold)
}

func TestNormalizeEmail(t *testing.T) {
	email, ok := normalizeEmail("  Ada@Example.COM ")
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)

	for _, bad := range []string{"", "ada", "Ada <ada@example.com>", "ada@"} {
		_, ok := normalizeEmail(bad)
		assert.False(t, ok, bad)
	}
}
