package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/speednet/internal/cache"
	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

const (
	duplicateSignupReason = "participant is already registered for this session"
	penaltyBlockReason    = "registration temporarily restricted due to recent no-shows"
	sessionFullReason     = "session is full"
	maxDisplayNameLength  = 120
)

// SignupService admits, waitlists and updates session signups.
type SignupService struct {
	store persistence.Store
	cache cache.Cache
	opts  Options
}

// NewSignupService constructs a signup service. A nil cache disables invalidation.
func NewSignupService(store persistence.Store, sessionCache cache.Cache, opts Options) *SignupService {
	if sessionCache == nil {
		sessionCache = cache.Nop{}
	}
	return &SignupService{store: store, cache: sessionCache, opts: opts.withDefaults()}
}

func (s *SignupService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.opts.Logger, "SignupService", operation, attrs...)
}

// Register admits the participant or places them on the waitlist. The
// duplicate check, the penalty check and the insert share one unit of work.
// Waitlisted signups are never promoted automatically.
func (s *SignupService) Register(ctx context.Context, params RegisterParams) (signup domain.Signup, err error) {
	if s == nil {
		err = fmt.Errorf("SignupService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Register", "session_id", params.SessionID)
	defer func() {
		logOutcome(ctx, logger, err, "signup registered",
			"signup_id", signup.ID,
			"status", signup.Status,
		)
	}()

	now := s.opts.now()
	candidate, vErr := newSignup(params, now)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.ID = s.opts.IDGenerator()

	var companyID string
	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		session, err := tx.GetSession(ctx, params.SessionID)
		if err != nil {
			return mapStoreError(err, "session", params.SessionID, "")
		}
		companyID = session.CompanyID

		if err := checkRegistrationWindow(session, now); err != nil {
			return err
		}

		existing, err := tx.FindSignups(ctx, persistence.SignupFilter{SessionIDs: []string{session.ID}})
		if err != nil {
			return err
		}
		if findDuplicate(existing, candidate) != nil {
			return conflict(duplicateSignupReason)
		}

		blocked, err := IsBlocked(ctx, tx, PenaltyQuery{
			CompanyID:     session.CompanyID,
			ParticipantID: deref(candidate.ParticipantID),
			Email:         candidate.Email,
		}, session.PenaltyRules, now)
		if err != nil {
			return err
		}
		if blocked {
			return conflict(penaltyBlockReason)
		}

		status, err := admit(session, existing)
		if err != nil {
			return err
		}
		candidate.Status = status

		if params.Input.BusinessCardID != nil {
			snapshot, err := snapshotCard(ctx, tx, session, *params.Input.BusinessCardID, candidate.ParticipantID, now)
			if err != nil {
				return err
			}
			candidate.BusinessCard = snapshot
		}

		return tx.CreateSignup(ctx, candidate)
	})
	if err != nil {
		err = mapStoreError(err, "session", params.SessionID, duplicateSignupReason)
		return
	}

	invalidateSession(ctx, s.cache, companyID, params.SessionID)
	signup = candidate
	return
}

// UpdateSignup applies a host-side patch and its status side effects.
func (s *SignupService) UpdateSignup(ctx context.Context, params UpdateSignupParams) (signup domain.Signup, err error) {
	if s == nil {
		err = fmt.Errorf("SignupService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSignup",
		"actor_id", params.Principal.ActorID,
		"session_id", params.SessionID,
		"signup_id", params.SignupID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "signup updated", "status", signup.Status)
	}()

	if vErr := validateSignupPatch(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.opts.now()
	var companyID string
	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		session, err := loadAuthorizedSession(ctx, tx, params.Principal, params.SessionID)
		if err != nil {
			return err
		}
		companyID = session.CompanyID

		current, err := tx.GetSignup(ctx, params.SignupID)
		if err != nil {
			return mapStoreError(err, "signup", params.SignupID, "")
		}
		if current.SessionID != session.ID {
			return notFound("signup", params.SignupID)
		}

		updated := applySignupPatch(current, params.Input, now)

		if params.Input.BusinessCardID != nil {
			snapshot, err := snapshotCard(ctx, tx, session, *params.Input.BusinessCardID, updated.ParticipantID, now)
			if err != nil {
				return err
			}
			updated.BusinessCard = snapshot
		}

		if current.Status == domain.SignupStatusRemoved && updated.Status != domain.SignupStatusRemoved {
			others, err := tx.FindSignups(ctx, persistence.SignupFilter{SessionIDs: []string{session.ID}})
			if err != nil {
				return err
			}
			if findDuplicate(others, updated) != nil {
				return conflict(duplicateSignupReason)
			}
		}

		if err := tx.UpdateSignup(ctx, updated); err != nil {
			return err
		}
		signup = updated
		return nil
	})
	if err != nil {
		err = mapStoreError(err, "signup", params.SignupID, duplicateSignupReason)
		return
	}

	invalidateSession(ctx, s.cache, companyID, params.SessionID)
	return
}

// newSignup validates a registration payload into an unsaved signup.
func newSignup(params RegisterParams, now time.Time) (domain.Signup, *ValidationError) {
	in := params.Input
	vErr := &ValidationError{}

	email, ok := normalizeEmail(in.Email)
	if !ok {
		vErr.add("email", "a valid email is required")
	}
	name := strings.TrimSpace(in.DisplayName)
	switch {
	case name == "":
		vErr.add("displayName", "displayName is required")
	case utf8.RuneCountInString(name) > maxDisplayNameLength:
		vErr.add("displayName", fmt.Sprintf("displayName must be at most %d characters", maxDisplayNameLength))
	}

	source := domain.SignupSourceSelf
	if in.Source != nil {
		source = domain.SignupSource(strings.TrimSpace(*in.Source))
		if !source.Valid() {
			vErr.add("source", "source must be one of self, invite, import, host, api")
		}
	}
	if in.SeatNumber != nil && *in.SeatNumber < 1 {
		vErr.add("seatNumber", "seatNumber must be at least 1")
	}
	if in.Metadata != nil && !json.Valid(in.Metadata) {
		vErr.add("metadata", "metadata must be valid JSON")
	}
	if in.BusinessCardID != nil && strings.TrimSpace(*in.BusinessCardID) == "" {
		vErr.add("businessCardId", "businessCardId must not be empty")
	}

	return domain.Signup{
		SessionID:     params.SessionID,
		ParticipantID: optionalString(in.ParticipantID),
		Email:         email,
		DisplayName:   name,
		Source:        source,
		SeatNumber:    in.SeatNumber,
		JoinURL:       optionalString(in.JoinURL),
		Metadata:      domain.CloneRaw(in.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, vErr
}

// checkRegistrationWindow rejects registrations for finished sessions and
// outside the open/close window.
func checkRegistrationWindow(session domain.Session, now time.Time) error {
	if session.Status.Terminal() {
		return conflict(fmt.Sprintf("session is %s", session.Status))
	}
	if session.RegistrationOpensAt != nil && now.Before(*session.RegistrationOpensAt) {
		return conflict("registration has not opened yet")
	}
	if session.RegistrationClosesAt != nil && now.After(*session.RegistrationClosesAt) {
		return conflict("registration is closed")
	}
	return nil
}

// findDuplicate returns the first non-removed signup other than candidate
// sharing its email or participant id.
func findDuplicate(existing []domain.Signup, candidate domain.Signup) *domain.Signup {
	for i := range existing {
		other := existing[i]
		if other.ID == candidate.ID || other.Status == domain.SignupStatusRemoved {
			continue
		}
		if strings.EqualFold(other.Email, candidate.Email) {
			return &other
		}
		if candidate.ParticipantID != nil && other.ParticipantID != nil && *other.ParticipantID == *candidate.ParticipantID {
			return &other
		}
	}
	return nil
}

// admit decides the initial status against the join and waitlist limits.
func admit(session domain.Session, existing []domain.Signup) (domain.SignupStatus, error) {
	if session.JoinLimit == nil {
		return domain.SignupStatusRegistered, nil
	}
	var active, waitlisted int
	for _, signup := range existing {
		switch {
		case signup.Status == domain.SignupStatusWaitlisted:
			waitlisted++
		case signup.Status.HoldsSeat():
			active++
		}
	}
	if active < *session.JoinLimit {
		return domain.SignupStatusRegistered, nil
	}
	if waitlisted >= session.WaitlistLimit {
		return "", conflict(sessionFullReason)
	}
	return domain.SignupStatusWaitlisted, nil
}

// snapshotCard loads the card and freezes a copy for the signup. Cards from
// another workspace are reported as missing.
func snapshotCard(ctx context.Context, tx persistence.Tx, session domain.Session, cardID string, participantID *string, now time.Time) (*domain.CardSnapshot, error) {
	cardID = strings.TrimSpace(cardID)
	card, err := tx.GetCard(ctx, cardID)
	if err != nil {
		return nil, mapStoreError(err, "business card", cardID, "")
	}
	if card.CompanyID != session.CompanyID {
		return nil, notFound("business card", cardID)
	}
	if participantID != nil && (card.OwnerID == nil || *card.OwnerID != *participantID) {
		vErr := &ValidationError{}
		vErr.add("businessCardId", "business card does not belong to the participant")
		return nil, vErr
	}
	snapshot := card.Snapshot(now)
	return &snapshot, nil
}

func validateSignupPatch(in SignupPatch) *ValidationError {
	vErr := &ValidationError{}
	if in.Status != nil && !domain.SignupStatus(strings.TrimSpace(*in.Status)).Valid() {
		vErr.add("status", "status must be one of registered, waitlisted, checked_in, completed, no_show, removed")
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			vErr.add("displayName", fmt.Sprintf("displayName must be 1 to %d characters", maxDisplayNameLength))
		}
	}
	if in.SeatNumber != nil && *in.SeatNumber < 1 {
		vErr.add("seatNumber", "seatNumber must be at least 1")
	}
	if score := in.SatisfactionScore; score != nil && (math.IsNaN(*score) || *score < 0 || *score > 5) {
		vErr.add("satisfactionScore", "satisfactionScore must be between 0 and 5")
	}
	if in.Metadata != nil && !json.Valid(in.Metadata) {
		vErr.add("metadata", "metadata must be valid JSON")
	}
	if in.BusinessCardID != nil && strings.TrimSpace(*in.BusinessCardID) == "" {
		vErr.add("businessCardId", "businessCardId must not be empty")
	}
	return vErr
}

// applySignupPatch copies the patch onto current and applies the status
// transition side effects. The patch must already be validated.
func applySignupPatch(current domain.Signup, in SignupPatch, now time.Time) domain.Signup {
	out := current.Clone()
	out.UpdatedAt = now

	if in.DisplayName != nil {
		out.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.SeatNumber != nil {
		seat := *in.SeatNumber
		out.SeatNumber = &seat
	}
	if in.JoinURL != nil {
		out.JoinURL = optionalString(in.JoinURL)
	}
	if in.SatisfactionScore != nil {
		score := math.Round(*in.SatisfactionScore*100) / 100
		out.SatisfactionScore = &score
	}
	if e := in.Engagement; e != nil {
		setCounter(&out.Engagement.ProfileSharedCount, e.ProfileSharedCount)
		setCounter(&out.Engagement.ConnectionsSaved, e.ConnectionsSaved)
		setCounter(&out.Engagement.MessagesSent, e.MessagesSent)
		setCounter(&out.Engagement.FollowUpsScheduled, e.FollowUpsScheduled)
	}
	if in.Metadata != nil {
		out.Metadata = domain.CloneRaw(in.Metadata)
	}
	if in.CheckedInAt != nil {
		out.CheckedInAt = utcPtr(in.CheckedInAt)
	}
	if in.CompletedAt != nil {
		out.CompletedAt = utcPtr(in.CompletedAt)
	}

	next := current.Status
	switch {
	case in.Status != nil:
		next = domain.SignupStatus(strings.TrimSpace(*in.Status))
	case in.CompletedAt != nil:
		next = domain.SignupStatusCompleted
	case in.CheckedInAt != nil:
		next = domain.SignupStatusCheckedIn
	}
	out.Status = next

	switch next {
	case domain.SignupStatusCheckedIn:
		if in.CheckedInAt == nil && (current.Status != next || out.CheckedInAt == nil) {
			stamp := now
			out.CheckedInAt = &stamp
		}
	case domain.SignupStatusCompleted:
		if in.CompletedAt == nil && (current.Status != next || out.CompletedAt == nil) {
			stamp := now
			out.CompletedAt = &stamp
		}
	case domain.SignupStatusNoShow:
		if current.Status != next {
			out.NoShowCount++
			out.PenaltyCount++
			stamp := now
			out.LastPenaltyAt = &stamp
		}
	case domain.SignupStatusRemoved:
		out.JoinURL = nil
		out.SeatNumber = nil
	}
	return out
}

func setCounter(target *int, value *int) {
	if value == nil {
		return
	}
	if *value < 0 {
		*target = 0
		return
	}
	*target = *value
}
