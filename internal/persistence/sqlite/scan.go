package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/speednet/internal/domain"
)

// timeLayout is fixed width so lexical comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullJSON(v *domain.CardSnapshot) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode business card: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func rawFrom(value sql.NullString) json.RawMessage {
	if !value.Valid {
		return nil
	}
	return json.RawMessage(value.String)
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		s                           domain.Session
		status, visibility, access  string
		price, joinLimit            sql.NullInt64
		start, end, opens, closes   sql.NullString
		videoConfig, showcaseConfig sql.NullString
		createdAt, updatedAt        string
	)
	if err := row.Scan(
		&s.ID, &s.CompanyID, &s.Title, &s.Slug, &status, &visibility, &access, &price,
		&start, &end, &s.SessionLengthMinutes, &s.RotationDurationSeconds, &joinLimit, &s.WaitlistLimit,
		&opens, &closes, &s.RequiresApproval, &s.PenaltyRules.NoShowThreshold, &s.PenaltyRules.CooldownDays,
		&s.PenaltyRules.PenaltyWeight, &videoConfig, &showcaseConfig, &s.CreatedByID, &s.UpdatedByID,
		&createdAt, &updatedAt,
	); err != nil {
		return domain.Session{}, err
	}

	s.Status = domain.SessionStatus(status)
	s.Visibility = domain.Visibility(visibility)
	s.AccessType = domain.AccessType(access)
	if price.Valid {
		v := price.Int64
		s.PriceCents = &v
	}
	s.JoinLimit = intPtr(joinLimit)
	s.VideoConfig = rawFrom(videoConfig)
	s.ShowcaseConfig = rawFrom(showcaseConfig)

	var err error
	if s.StartTime, err = parseNullTime(start); err != nil {
		return domain.Session{}, err
	}
	if s.EndTime, err = parseNullTime(end); err != nil {
		return domain.Session{}, err
	}
	if s.RegistrationOpensAt, err = parseNullTime(opens); err != nil {
		return domain.Session{}, err
	}
	if s.RegistrationClosesAt, err = parseNullTime(closes); err != nil {
		return domain.Session{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Session{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func scanRotation(row scanner) (domain.Rotation, error) {
	var (
		r            domain.Rotation
		status       string
		starts, ends sql.NullString
		seatingPlan  sql.NullString
		createdAt    string
	)
	if err := row.Scan(
		&r.ID, &r.SessionID, &r.Number, &r.DurationSeconds, &starts, &ends, &status,
		&seatingPlan, &r.PairingSeed, &r.HostNotes, &createdAt,
	); err != nil {
		return domain.Rotation{}, err
	}
	r.Status = domain.RotationStatus(status)
	r.SeatingPlan = rawFrom(seatingPlan)

	var err error
	if r.StartsAt, err = parseNullTime(starts); err != nil {
		return domain.Rotation{}, err
	}
	if r.EndsAt, err = parseNullTime(ends); err != nil {
		return domain.Rotation{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Rotation{}, err
	}
	return r, nil
}

func scanSignup(row scanner) (domain.Signup, error) {
	var (
		s                                 domain.Signup
		status, source                    string
		participantID, joinURL, card      sql.NullString
		seat                              sql.NullInt64
		lastPenalty, checkedIn, completed sql.NullString
		score                             sql.NullFloat64
		metadata                          sql.NullString
		createdAt, updatedAt              string
	)
	if err := row.Scan(
		&s.ID, &s.SessionID, &participantID, &s.Email, &s.DisplayName, &status,
		&source, &seat, &joinURL, &card, &s.NoShowCount, &s.PenaltyCount,
		&lastPenalty, &score, &s.Engagement.ProfileSharedCount, &s.Engagement.ConnectionsSaved,
		&s.Engagement.MessagesSent, &s.Engagement.FollowUpsScheduled, &checkedIn, &completed, &metadata,
		&createdAt, &updatedAt,
	); err != nil {
		return domain.Signup{}, err
	}

	s.Status = domain.SignupStatus(status)
	s.Source = domain.SignupSource(source)
	s.ParticipantID = stringPtr(participantID)
	s.JoinURL = stringPtr(joinURL)
	s.SeatNumber = intPtr(seat)
	s.Metadata = rawFrom(metadata)
	if score.Valid {
		v := score.Float64
		s.SatisfactionScore = &v
	}
	if card.Valid {
		var snapshot domain.CardSnapshot
		if err := json.Unmarshal([]byte(card.String), &snapshot); err != nil {
			return domain.Signup{}, fmt.Errorf("sqlite: decode business card: %w", err)
		}
		s.BusinessCard = &snapshot
	}

	var err error
	if s.LastPenaltyAt, err = parseNullTime(lastPenalty); err != nil {
		return domain.Signup{}, err
	}
	if s.CheckedInAt, err = parseNullTime(checkedIn); err != nil {
		return domain.Signup{}, err
	}
	if s.CompletedAt, err = parseNullTime(completed); err != nil {
		return domain.Signup{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Signup{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Signup{}, err
	}
	return s, nil
}

func scanCard(row scanner) (domain.BusinessCard, error) {
	var (
		c                    domain.BusinessCard
		ownerID              sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&c.ID, &c.CompanyID, &ownerID, &c.DisplayName, &c.Headline, &c.CompanyName, &c.Email, &c.Phone,
		&c.Website, &c.Bio, &c.CreatedByID, &c.UpdatedByID, &createdAt, &updatedAt,
	); err != nil {
		return domain.BusinessCard{}, err
	}
	c.OwnerID = stringPtr(ownerID)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.BusinessCard{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.BusinessCard{}, err
	}
	return c, nil
}
