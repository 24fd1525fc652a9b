// Package sqlite implements persistence.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

// Store implements persistence.Store using SQLite.
type Store struct {
	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database identified by dsn.
func Open(ctx context.Context, dsn string, opts Options, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// WithinTx runs fn inside an IMMEDIATE transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.Tx) error) error {
	return s.pool.WithTransaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(&tx{tx: sqlTx})
	})
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx persistence.Tx) error) error {
	return s.pool.WithReadOnlyTransaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(&tx{tx: sqlTx})
	})
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// where accumulates AND-ed predicates and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.add(fmt.Sprintf("%s IN (%s)", column, placeholders), args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// --- Sessions ---

const sessionColumns = `id, company_id, title, slug, status, visibility, access_type, price_cents,
	start_time, end_time, session_length_minutes, rotation_duration_seconds, join_limit, waitlist_limit,
	registration_opens_at, registration_closes_at, requires_approval, no_show_threshold, cooldown_days,
	penalty_weight, video_config, showcase_config, created_by_id, updated_by_id, created_at, updated_at`

func (t *tx) FindSessions(ctx context.Context, filter persistence.SessionFilter) ([]domain.Session, error) {
	w := &where{}
	w.in("id", filter.IDs)
	w.in("company_id", filter.CompanyIDs)
	if filter.Slug != "" {
		w.add("slug = ?", filter.Slug)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.in("status", statuses)
	}
	if filter.StartsAfter != nil {
		w.add("start_time IS NOT NULL AND start_time >= ?", formatTime(*filter.StartsAfter))
	}

	query := "SELECT " + sessionColumns + " FROM sessions" + w.String() +
		" ORDER BY start_time IS NULL, start_time, id"
	rows, err := t.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (t *tx) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapError(err)
	}
	return session, nil
}

func (t *tx) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := t.exec(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CompanyID, s.Title, s.Slug, string(s.Status), string(s.Visibility), string(s.AccessType),
		nullInt64(s.PriceCents), nullTime(s.StartTime), nullTime(s.EndTime),
		s.SessionLengthMinutes, s.RotationDurationSeconds, nullInt(s.JoinLimit), s.WaitlistLimit,
		nullTime(s.RegistrationOpensAt), nullTime(s.RegistrationClosesAt), s.RequiresApproval,
		s.PenaltyRules.NoShowThreshold, s.PenaltyRules.CooldownDays, s.PenaltyRules.PenaltyWeight,
		nullRaw(s.VideoConfig), nullRaw(s.ShowcaseConfig), s.CreatedByID, s.UpdatedByID,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return err
}

func (t *tx) UpdateSession(ctx context.Context, s domain.Session) error {
	result, err := t.exec(ctx, `UPDATE sessions SET
		company_id = ?, title = ?, slug = ?, status = ?, visibility = ?, access_type = ?, price_cents = ?,
		start_time = ?, end_time = ?, session_length_minutes = ?, rotation_duration_seconds = ?,
		join_limit = ?, waitlist_limit = ?, registration_opens_at = ?, registration_closes_at = ?,
		requires_approval = ?, no_show_threshold = ?, cooldown_days = ?, penalty_weight = ?,
		video_config = ?, showcase_config = ?, updated_by_id = ?, updated_at = ?
		WHERE id = ?`,
		s.CompanyID, s.Title, s.Slug, string(s.Status), string(s.Visibility), string(s.AccessType),
		nullInt64(s.PriceCents), nullTime(s.StartTime), nullTime(s.EndTime),
		s.SessionLengthMinutes, s.RotationDurationSeconds, nullInt(s.JoinLimit), s.WaitlistLimit,
		nullTime(s.RegistrationOpensAt), nullTime(s.RegistrationClosesAt), s.RequiresApproval,
		s.PenaltyRules.NoShowThreshold, s.PenaltyRules.CooldownDays, s.PenaltyRules.PenaltyWeight,
		nullRaw(s.VideoConfig), nullRaw(s.ShowcaseConfig), s.UpdatedByID, formatTime(s.UpdatedAt),
		s.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// --- Rotations ---

const rotationColumns = `id, session_id, rotation_number, duration_seconds, starts_at, ends_at, status,
	seating_plan, pairing_seed, host_notes, created_at`

func (t *tx) FindRotations(ctx context.Context, sessionIDs []string) ([]domain.Rotation, error) {
	if len(sessionIDs) == 0 {
		return []domain.Rotation{}, nil
	}
	w := &where{}
	w.in("session_id", sessionIDs)
	rows, err := t.tx.QueryContext(ctx, "SELECT "+rotationColumns+" FROM rotations"+w.String()+
		" ORDER BY session_id, rotation_number", w.args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rotations := make([]domain.Rotation, 0)
	for rows.Next() {
		rotation, err := scanRotation(rows)
		if err != nil {
			return nil, err
		}
		rotations = append(rotations, rotation)
	}
	return rotations, rows.Err()
}

func (t *tx) CreateRotations(ctx context.Context, rotations []domain.Rotation) error {
	if len(rotations) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO rotations (`+rotationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return mapError(err)
	}
	defer stmt.Close()

	for _, r := range rotations {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.SessionID, r.Number, r.DurationSeconds, nullTime(r.StartsAt), nullTime(r.EndsAt),
			string(r.Status), nullRaw(r.SeatingPlan), r.PairingSeed, r.HostNotes, formatTime(r.CreatedAt),
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t *tx) DeleteRotations(ctx context.Context, sessionID string) error {
	_, err := t.exec(ctx, "DELETE FROM rotations WHERE session_id = ?", sessionID)
	return err
}

// --- Signups ---

const signupColumns = `su.id, su.session_id, su.participant_id, su.email, su.display_name, su.status,
	su.source, su.seat_number, su.join_url, su.business_card, su.no_show_count, su.penalty_count,
	su.last_penalty_at, su.satisfaction_score, su.profile_shared_count, su.connections_saved,
	su.messages_sent, su.follow_ups_scheduled, su.checked_in_at, su.completed_at, su.metadata,
	su.created_at, su.updated_at`

func (t *tx) FindSignups(ctx context.Context, filter persistence.SignupFilter) ([]domain.Signup, error) {
	from := " FROM signups su"
	w := &where{}
	w.in("su.session_id", filter.SessionIDs)
	if len(filter.CompanyIDs) > 0 {
		from += " JOIN sessions se ON se.id = su.session_id"
		w.in("se.company_id", filter.CompanyIDs)
	}
	switch {
	case filter.ParticipantID != "" && filter.Email != "":
		w.add("(su.participant_id = ? OR lower(su.email) = lower(?))", filter.ParticipantID, filter.Email)
	case filter.ParticipantID != "":
		w.add("su.participant_id = ?", filter.ParticipantID)
	case filter.Email != "":
		w.add("lower(su.email) = lower(?)", filter.Email)
	}
	if len(filter.ExcludeStatuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.ExcludeStatuses)), ",")
		args := make([]any, len(filter.ExcludeStatuses))
		for i, s := range filter.ExcludeStatuses {
			args[i] = string(s)
		}
		w.add("su.status NOT IN ("+placeholders+")", args...)
	}
	if filter.PenalizedSince != nil {
		w.add("su.penalty_count > 0 AND su.last_penalty_at IS NOT NULL AND su.last_penalty_at >= ?", formatTime(*filter.PenalizedSince))
	}

	rows, err := t.tx.QueryContext(ctx, "SELECT "+signupColumns+from+w.String()+" ORDER BY su.created_at, su.id", w.args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	signups := make([]domain.Signup, 0)
	for rows.Next() {
		signup, err := scanSignup(rows)
		if err != nil {
			return nil, err
		}
		signups = append(signups, signup)
	}
	return signups, rows.Err()
}

func (t *tx) GetSignup(ctx context.Context, id string) (domain.Signup, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+signupColumns+" FROM signups su WHERE su.id = ?", id)
	signup, err := scanSignup(row)
	if err != nil {
		return domain.Signup{}, mapError(err)
	}
	return signup, nil
}

func (t *tx) CreateSignup(ctx context.Context, s domain.Signup) error {
	card, err := nullJSON(s.BusinessCard)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `INSERT INTO signups (`+strings.ReplaceAll(signupColumns, "su.", "")+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SessionID, nullString(s.ParticipantID), s.Email, s.DisplayName, string(s.Status),
		string(s.Source), nullInt(s.SeatNumber), nullString(s.JoinURL), card, s.NoShowCount, s.PenaltyCount,
		nullTime(s.LastPenaltyAt), nullFloat(s.SatisfactionScore), s.Engagement.ProfileSharedCount,
		s.Engagement.ConnectionsSaved, s.Engagement.MessagesSent, s.Engagement.FollowUpsScheduled,
		nullTime(s.CheckedInAt), nullTime(s.CompletedAt), nullRaw(s.Metadata),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return err
}

func (t *tx) UpdateSignup(ctx context.Context, s domain.Signup) error {
	card, err := nullJSON(s.BusinessCard)
	if err != nil {
		return err
	}
	result, err := t.exec(ctx, `UPDATE signups SET
		participant_id = ?, email = ?, display_name = ?, status = ?, source = ?, seat_number = ?,
		join_url = ?, business_card = ?, no_show_count = ?, penalty_count = ?, last_penalty_at = ?,
		satisfaction_score = ?, profile_shared_count = ?, connections_saved = ?, messages_sent = ?,
		follow_ups_scheduled = ?, checked_in_at = ?, completed_at = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		nullString(s.ParticipantID), s.Email, s.DisplayName, string(s.Status), string(s.Source),
		nullInt(s.SeatNumber), nullString(s.JoinURL), card, s.NoShowCount, s.PenaltyCount,
		nullTime(s.LastPenaltyAt), nullFloat(s.SatisfactionScore), s.Engagement.ProfileSharedCount,
		s.Engagement.ConnectionsSaved, s.Engagement.MessagesSent, s.Engagement.FollowUpsScheduled,
		nullTime(s.CheckedInAt), nullTime(s.CompletedAt), nullRaw(s.Metadata), formatTime(s.UpdatedAt),
		s.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// --- Business cards ---

const cardColumns = `id, company_id, owner_id, display_name, headline, company_name, email, phone,
	website, bio, created_by_id, updated_by_id, created_at, updated_at`

func (t *tx) FindCards(ctx context.Context, filter persistence.CardFilter) ([]domain.BusinessCard, error) {
	w := &where{}
	w.in("id", filter.IDs)
	w.in("company_id", filter.CompanyIDs)
	if filter.OwnerID != "" {
		w.add("owner_id = ?", filter.OwnerID)
	}
	rows, err := t.tx.QueryContext(ctx, "SELECT "+cardColumns+" FROM business_cards"+w.String()+
		" ORDER BY display_name, id", w.args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	cards := make([]domain.BusinessCard, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (t *tx) GetCard(ctx context.Context, id string) (domain.BusinessCard, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM business_cards WHERE id = ?", id)
	card, err := scanCard(row)
	if err != nil {
		return domain.BusinessCard{}, mapError(err)
	}
	return card, nil
}

func (t *tx) CreateCard(ctx context.Context, c domain.BusinessCard) error {
	_, err := t.exec(ctx, `INSERT INTO business_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, nullString(c.OwnerID), c.DisplayName, c.Headline, c.CompanyName, c.Email,
		c.Phone, c.Website, c.Bio, c.CreatedByID, c.UpdatedByID, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func (t *tx) UpdateCard(ctx context.Context, c domain.BusinessCard) error {
	result, err := t.exec(ctx, `UPDATE business_cards SET
		owner_id = ?, display_name = ?, headline = ?, company_name = ?, email = ?, phone = ?,
		website = ?, bio = ?, updated_by_id = ?, updated_at = ?
		WHERE id = ?`,
		nullString(c.OwnerID), c.DisplayName, c.Headline, c.CompanyName, c.Email, c.Phone,
		c.Website, c.Bio, c.UpdatedByID, formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}
