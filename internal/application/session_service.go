package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/speednet/internal/cache"
	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
	"github.com/example/speednet/internal/scheduler"
)

const slugConflictReason = "slug already in use in this workspace"

// SessionService orchestrates validation, scheduling, persistence and
// caching for sessions and their rotations.
type SessionService struct {
	store persistence.Store
	cache cache.Cache
	opts  Options
}

// NewSessionService constructs a session service. A nil cache disables caching.
func NewSessionService(store persistence.Store, sessionCache cache.Cache, opts Options) *SessionService {
	if sessionCache == nil {
		sessionCache = cache.Nop{}
	}
	return &SessionService{store: store, cache: sessionCache, opts: opts.withDefaults()}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.opts.Logger, "SessionService", operation, attrs...)
}

// CreateSession validates input, derives the rotation set and persists both
// in one unit of work.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (detail SessionDetail, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSession", "actor_id", params.Principal.ActorID)
	defer func() {
		logOutcome(ctx, logger, err, "session created",
			"session_id", detail.Session.ID,
			"rotations", len(detail.Rotations),
		)
	}()

	companyID, err := resolveCompany(params.Principal, params.Input.CompanyID)
	if err != nil {
		return
	}

	now := s.opts.now()
	base := domain.Session{
		ID:          s.opts.IDGenerator(),
		CompanyID:   companyID,
		Status:      domain.SessionStatusDraft,
		Visibility:  domain.VisibilityWorkspace,
		AccessType:  domain.AccessTypeFree,
		CreatedByID: params.Principal.ActorID,
		UpdatedByID: params.Principal.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	draft := sessionDraft{input: params.Input, creating: true, slugSuffix: s.opts.SlugSuffix}
	session, vErr := draft.apply(base)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	rotations := s.buildRotations(session, params.Input.Rotations, now)
	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		if err := ensureSlugAvailable(ctx, tx, session); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		return tx.CreateRotations(ctx, rotations)
	})
	if err != nil {
		err = mapStoreError(err, "session", session.ID, slugConflictReason)
		return
	}

	invalidateSession(ctx, s.cache, session.CompanyID, session.ID)
	detail = SessionDetail{Session: session, Rotations: rotations, Signups: []domain.Signup{}}
	return
}

// UpdateSession applies a partial update. A non-nil Rotations slice replaces
// the rotation set; other parameter changes leave existing rotations alone.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (detail SessionDetail, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSession",
		"actor_id", params.Principal.ActorID,
		"session_id", params.SessionID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session updated", "replaced_rotations", params.Input.Rotations != nil)
	}()

	now := s.opts.now()
	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		existing, err := loadAuthorizedSession(ctx, tx, params.Principal, params.SessionID)
		if err != nil {
			return err
		}

		vErr := &ValidationError{}
		if id := params.Input.CompanyID; id != nil && strings.TrimSpace(*id) != existing.CompanyID {
			vErr.add("companyId", "companyId cannot be changed")
		}
		draft := sessionDraft{input: params.Input, slugSuffix: s.opts.SlugSuffix}
		updated, applyErr := draft.apply(existing)
		vErr.merge("", applyErr)
		if vErr.HasErrors() {
			return vErr
		}
		updated.UpdatedAt = now
		updated.UpdatedByID = params.Principal.ActorID

		if updated.Slug != existing.Slug {
			if err := ensureSlugAvailable(ctx, tx, updated); err != nil {
				return err
			}
		}
		if err := tx.UpdateSession(ctx, updated); err != nil {
			return err
		}
		if params.Input.Rotations != nil {
			if err := s.replaceRotations(ctx, tx, updated, params.Input.Rotations, now); err != nil {
				return err
			}
		}

		detail, err = loadDetail(ctx, tx, updated)
		return err
	})
	if err != nil {
		err = mapStoreError(err, "session", params.SessionID, slugConflictReason)
		return
	}

	invalidateSession(ctx, s.cache, detail.Session.CompanyID, detail.Session.ID)
	return
}

// RegenerateRotations persists any parameter overrides on the session and
// replaces its rotation set in one unit of work.
func (s *SessionService) RegenerateRotations(ctx context.Context, params RegenerateParams) (detail SessionDetail, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegenerateRotations",
		"actor_id", params.Principal.ActorID,
		"session_id", params.SessionID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "rotations regenerated", "rotations", len(detail.Rotations))
	}()

	override := params.Override
	vErr := &ValidationError{}
	if m := override.SessionLengthMinutes; m != nil && (*m <= 0 || *m > scheduler.MaxSessionMinutes) {
		vErr.add("sessionLengthMinutes", fmt.Sprintf("sessionLengthMinutes must be between 1 and %d", scheduler.MaxSessionMinutes))
	}
	if d := override.RotationDurationSeconds; d != nil && (math.IsNaN(*d) || math.IsInf(*d, 0)) {
		vErr.add("rotationDurationSeconds", "rotationDurationSeconds must be a number")
	}
	vErr.merge("", validateRotationInputs(override.Rotations))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.opts.now()
	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		existing, err := loadAuthorizedSession(ctx, tx, params.Principal, params.SessionID)
		if err != nil {
			return err
		}

		updated := existing.Clone()
		if override.StartTime != nil {
			updated.StartTime = utcPtr(override.StartTime)
		}
		if override.SessionLengthMinutes != nil {
			updated.SessionLengthMinutes = *override.SessionLengthMinutes
		}
		if override.RotationDurationSeconds != nil {
			updated.RotationDurationSeconds = scheduler.ClampDuration(*override.RotationDurationSeconds)
		}
		// Keep the end aligned with the new timetable.
		if updated.EndTime != nil && updated.StartTime != nil &&
			(override.StartTime != nil || override.SessionLengthMinutes != nil) {
			end := updated.StartTime.Add(time.Duration(updated.SessionLengthMinutes) * time.Minute)
			updated.EndTime = &end
		}
		updated.UpdatedAt = now
		updated.UpdatedByID = params.Principal.ActorID

		if err := tx.UpdateSession(ctx, updated); err != nil {
			return err
		}
		if err := s.replaceRotations(ctx, tx, updated, override.Rotations, now); err != nil {
			return err
		}

		detail, err = loadDetail(ctx, tx, updated)
		return err
	})
	if err != nil {
		err = mapStoreError(err, "session", params.SessionID, "rotation set conflicts with existing rotations")
		return
	}

	invalidateSession(ctx, s.cache, detail.Session.CompanyID, detail.Session.ID)
	return
}

// ListSessions returns the sessions visible to the caller with aggregate
// counts. Results are cached for the list TTL.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) (list SessionList, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListSessions",
		"actor_id", params.Principal.ActorID,
		"company_id", params.CompanyID,
	)

	params.CompanyID = strings.TrimSpace(params.CompanyID)
	params.Status = strings.TrimSpace(params.Status)
	vErr := &ValidationError{}
	if params.Status != "" && !domain.SessionStatus(params.Status).Valid() {
		vErr.add("status", "status must be one of draft, scheduled, in_progress, completed, cancelled")
	}
	if params.LookbackDays < 0 {
		vErr.add("lookbackDays", "lookbackDays must not be negative")
	}
	if vErr.HasErrors() {
		err = vErr
		logOutcome(ctx, logger, err, "sessions listed")
		return
	}
	if params.CompanyID != "" && !params.Principal.Allows(params.CompanyID) {
		err = ErrUnauthorized
		logOutcome(ctx, logger, err, "sessions listed")
		return
	}

	list, err = cache.Remember(ctx, s.cache, listCacheKey(params), s.opts.ListTTL, func(ctx context.Context) (SessionList, error) {
		return s.loadSessionList(ctx, params)
	})
	if err != nil {
		logOutcome(ctx, logger, err, "sessions listed")
		return
	}
	logger.DebugContext(ctx, "sessions listed", "count", len(list.Sessions))
	return
}

func (s *SessionService) loadSessionList(ctx context.Context, params ListSessionsParams) (SessionList, error) {
	now := s.opts.now()
	filter := persistence.SessionFilter{}
	switch {
	case params.CompanyID != "":
		filter.CompanyIDs = []string{params.CompanyID}
	case !params.Principal.Unrestricted():
		filter.CompanyIDs = append([]string(nil), params.Principal.WorkspaceIDs...)
	}
	if params.Status != "" {
		filter.Statuses = []domain.SessionStatus{domain.SessionStatus(params.Status)}
	}
	if params.LookbackDays > 0 {
		since := now.Add(-time.Duration(params.LookbackDays) * 24 * time.Hour)
		filter.StartsAfter = &since
	}
	if params.UpcomingOnly && (filter.StartsAfter == nil || filter.StartsAfter.Before(now)) {
		filter.StartsAfter = &now
	}

	var (
		sessions  []domain.Session
		rotations []domain.Rotation
		signups   []domain.Signup
	)
	err := s.store.View(ctx, func(tx persistence.Tx) error {
		var err error
		sessions, err = tx.FindSessions(ctx, filter)
		if err != nil || len(sessions) == 0 {
			return err
		}
		ids := make([]string, len(sessions))
		for i, session := range sessions {
			ids[i] = session.ID
		}
		if rotations, err = tx.FindRotations(ctx, ids); err != nil {
			return err
		}
		signups, err = tx.FindSignups(ctx, persistence.SignupFilter{SessionIDs: ids})
		return err
	})
	if err != nil {
		return SessionList{}, err
	}
	return summarize(sessions, rotations, signups), nil
}

// summarize builds overview rows and the listing summary.
func summarize(sessions []domain.Session, rotations []domain.Rotation, signups []domain.Signup) SessionList {
	rotationCounts := make(map[string]int, len(sessions))
	for _, rotation := range rotations {
		rotationCounts[rotation.SessionID]++
	}
	bySession := make(map[string][]domain.Signup, len(sessions))
	for _, signup := range signups {
		bySession[signup.SessionID] = append(bySession[signup.SessionID], signup)
	}

	list := SessionList{
		Sessions: make([]SessionOverview, 0, len(sessions)),
		Summary:  SessionSummary{ByStatus: make(map[domain.SessionStatus]int, len(domain.SessionStatuses))},
	}
	for _, status := range domain.SessionStatuses {
		list.Summary.ByStatus[status] = 0
	}

	for _, session := range sessions {
		counts := countSignups(bySession[session.ID])
		list.Sessions = append(list.Sessions, SessionOverview{
			Session:       session,
			RotationCount: rotationCounts[session.ID],
			Signups:       counts,
		})

		summary := &list.Summary
		summary.TotalSessions++
		summary.ByStatus[session.Status]++
		summary.Registrations += counts.Active()
		summary.Waitlisted += counts.Waitlisted
		summary.CheckedIn += counts.CheckedIn
		summary.Completed += counts.Completed
		if session.AccessType == domain.AccessTypePaid {
			summary.PaidSessions++
			if session.PriceCents != nil {
				summary.EstimatedRevenueCents += *session.PriceCents * int64(counts.CheckedIn+counts.Completed)
			}
		} else {
			summary.FreeSessions++
		}
	}
	return list
}

// GetSessionRuntime returns the session, its rotations and the live roster
// view. Results are cached for the runtime TTL.
func (s *SessionService) GetSessionRuntime(ctx context.Context, principal Principal, sessionID string) (runtime SessionRuntime, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetSessionRuntime",
		"actor_id", principal.ActorID,
		"session_id", sessionID,
	)

	runtime, err = cache.Remember(ctx, s.cache, runtimeCacheKey(principal, sessionID), s.opts.RuntimeTTL, func(ctx context.Context) (SessionRuntime, error) {
		var out SessionRuntime
		err := s.store.View(ctx, func(tx persistence.Tx) error {
			session, err := loadAuthorizedSession(ctx, tx, principal, sessionID)
			if err != nil {
				return err
			}
			rotations, err := tx.FindRotations(ctx, []string{session.ID})
			if err != nil {
				return err
			}
			signups, err := tx.FindSignups(ctx, persistence.SignupFilter{SessionIDs: []string{session.ID}})
			if err != nil {
				return err
			}
			out = SessionRuntime{
				Session:   session,
				Rotations: rotations,
				Runtime:   Project(session, rotations, signups, s.opts.now()),
			}
			return nil
		})
		return out, mapStoreError(err, "session", sessionID, "")
	})
	if err != nil {
		logOutcome(ctx, logger, err, "runtime loaded")
		return
	}
	logger.DebugContext(ctx, "runtime loaded", "active_rotation", runtime.Runtime.ActiveRotation != nil)
	return
}

// buildRotations derives the rotation set and stamps identifiers. Manual
// entries that all get dropped fall back to the derived timetable so a
// session always carries rotations.
func (s *SessionService) buildRotations(session domain.Session, inputs []RotationInput, now time.Time) []domain.Rotation {
	params := scheduler.Params{
		SessionID:       session.ID,
		Start:           session.StartTime,
		LengthMinutes:   session.SessionLengthMinutes,
		DurationSeconds: session.RotationDurationSeconds,
		Explicit:        toOverrides(inputs),
	}
	rotations := scheduler.BuildSchedule(params, s.opts.SeedGenerator)
	if len(rotations) == 0 {
		params.Explicit = nil
		rotations = scheduler.BuildSchedule(params, s.opts.SeedGenerator)
	}
	for i := range rotations {
		rotations[i].ID = s.opts.IDGenerator()
		rotations[i].CreatedAt = now
	}
	return rotations
}

func (s *SessionService) replaceRotations(ctx context.Context, tx persistence.Tx, session domain.Session, inputs []RotationInput, now time.Time) error {
	if err := tx.DeleteRotations(ctx, session.ID); err != nil {
		return err
	}
	return tx.CreateRotations(ctx, s.buildRotations(session, inputs, now))
}

// resolveCompany picks the owning workspace for a new record: the requested
// one when it is in scope, else the caller's only workspace.
func resolveCompany(principal Principal, requested *string) (string, error) {
	if requested != nil {
		if id := strings.TrimSpace(*requested); id != "" {
			if !principal.Allows(id) {
				return "", ErrUnauthorized
			}
			return id, nil
		}
	}
	if len(principal.WorkspaceIDs) == 1 {
		return principal.WorkspaceIDs[0], nil
	}
	vErr := &ValidationError{}
	vErr.add("companyId", "companyId is required")
	return "", vErr
}

// loadAuthorizedSession fetches the session and checks the caller's scope.
func loadAuthorizedSession(ctx context.Context, tx persistence.Tx, principal Principal, sessionID string) (domain.Session, error) {
	session, err := tx.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, mapStoreError(err, "session", sessionID, "")
	}
	if !principal.Allows(session.CompanyID) {
		return domain.Session{}, ErrUnauthorized
	}
	return session, nil
}

func ensureSlugAvailable(ctx context.Context, tx persistence.Tx, session domain.Session) error {
	existing, err := tx.FindSessions(ctx, persistence.SessionFilter{
		CompanyIDs: []string{session.CompanyID},
		Slug:       session.Slug,
	})
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != session.ID {
			return conflict(slugConflictReason)
		}
	}
	return nil
}

func loadDetail(ctx context.Context, tx persistence.Tx, session domain.Session) (SessionDetail, error) {
	rotations, err := tx.FindRotations(ctx, []string{session.ID})
	if err != nil {
		return SessionDetail{}, err
	}
	signups, err := tx.FindSignups(ctx, persistence.SignupFilter{SessionIDs: []string{session.ID}})
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{Session: session, Rotations: rotations, Signups: signups}, nil
}
