package application

import (
	"context"
	"strings"
	"time"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

// PenaltyQuery identifies the participant whose recent no-shows are counted.
// CompanyID, when set, limits the count to that workspace's sessions.
type PenaltyQuery struct {
	CompanyID     string
	ParticipantID string
	Email         string
}

// IsBlocked reports whether the participant collected at least
// rules.NoShowThreshold penalized signups inside the cooldown window ending
// at now. It reads through tx so the decision shares the caller's unit of
// work.
func IsBlocked(ctx context.Context, tx persistence.Tx, q PenaltyQuery, rules domain.PenaltyRules, now time.Time) (bool, error) {
	participantID := strings.TrimSpace(q.ParticipantID)
	email := strings.ToLower(strings.TrimSpace(q.Email))
	if participantID == "" && email == "" {
		return false, nil
	}

	threshold := rules.NoShowThreshold
	if threshold < 1 {
		threshold = domain.DefaultNoShowThreshold
	}
	cooldown := rules.CooldownDays
	if cooldown < 1 {
		cooldown = domain.DefaultCooldownDays
	}
	since := now.Add(-time.Duration(cooldown) * 24 * time.Hour)

	filter := persistence.SignupFilter{
		ParticipantID:  participantID,
		Email:          email,
		PenalizedSince: &since,
	}
	if q.CompanyID != "" {
		filter.CompanyIDs = []string{q.CompanyID}
	}

	penalized, err := tx.FindSignups(ctx, filter)
	if err != nil {
		return false, err
	}
	return len(penalized) >= threshold, nil
}
