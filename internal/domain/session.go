// Package domain holds the speed-networking records shared by the scheduler,
// the application services and the record store implementations.
package domain

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusDraft      SessionStatus = "draft"
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// SessionStatuses lists every valid session status in display order.
var SessionStatuses = []SessionStatus{
	SessionStatusDraft,
	SessionStatusScheduled,
	SessionStatusInProgress,
	SessionStatusCompleted,
	SessionStatusCancelled,
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	for _, candidate := range SessionStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether the session no longer accepts registrations.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Visibility controls who can discover a session.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityWorkspace Visibility = "workspace"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityWorkspace
}

// AccessType distinguishes free sessions from paid ones.
type AccessType string

const (
	AccessTypeFree AccessType = "free"
	AccessTypePaid AccessType = "paid"
)

// Valid reports whether a is a known access type.
func (a AccessType) Valid() bool {
	return a == AccessTypeFree || a == AccessTypePaid
}

// PenaltyRules configures the no-show cooldown applied at registration.
type PenaltyRules struct {
	NoShowThreshold int `json:"noShowThreshold"`
	CooldownDays    int `json:"cooldownDays"`
	// PenaltyWeight is reserved for weighted scoring; the threshold check
	// counts signups, not weights.
	PenaltyWeight int `json:"penaltyWeight"`
}

// Default penalty rule values.
const (
	DefaultNoShowThreshold = 2
	DefaultCooldownDays    = 14
	DefaultPenaltyWeight   = 1
)

// DefaultPenaltyRules returns the rules applied when a session does not
// override them.
func DefaultPenaltyRules() PenaltyRules {
	return PenaltyRules{
		NoShowThreshold: DefaultNoShowThreshold,
		CooldownDays:    DefaultCooldownDays,
		PenaltyWeight:   DefaultPenaltyWeight,
	}
}

// Session is a scheduled networking event owned by a workspace.
type Session struct {
	ID                      string          `json:"id"`
	CompanyID               string          `json:"companyId"`
	Title                   string          `json:"title"`
	Slug                    string          `json:"slug"`
	Status                  SessionStatus   `json:"status"`
	Visibility              Visibility      `json:"visibility"`
	AccessType              AccessType      `json:"accessType"`
	PriceCents              *int64          `json:"priceCents,omitempty"`
	StartTime               *time.Time      `json:"startTime,omitempty"`
	EndTime                 *time.Time      `json:"endTime,omitempty"`
	SessionLengthMinutes    int             `json:"sessionLengthMinutes"`
	RotationDurationSeconds int             `json:"rotationDurationSeconds"`
	JoinLimit               *int            `json:"joinLimit,omitempty"`
	WaitlistLimit           int             `json:"waitlistLimit"`
	RegistrationOpensAt     *time.Time      `json:"registrationOpensAt,omitempty"`
	RegistrationClosesAt    *time.Time      `json:"registrationClosesAt,omitempty"`
	RequiresApproval        bool            `json:"requiresApproval"`
	PenaltyRules            PenaltyRules    `json:"penaltyRules"`
	VideoConfig             json.RawMessage `json:"videoConfig,omitempty"`
	ShowcaseConfig          json.RawMessage `json:"showcaseConfig,omitempty"`
	CreatedByID             string          `json:"createdById,omitempty"`
	UpdatedByID             string          `json:"updatedById,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.PriceCents = cloneInt64(s.PriceCents)
	out.StartTime = CloneTime(s.StartTime)
	out.EndTime = CloneTime(s.EndTime)
	out.JoinLimit = cloneInt(s.JoinLimit)
	out.RegistrationOpensAt = CloneTime(s.RegistrationOpensAt)
	out.RegistrationClosesAt = CloneTime(s.RegistrationClosesAt)
	out.VideoConfig = CloneRaw(s.VideoConfig)
	out.ShowcaseConfig = CloneRaw(s.ShowcaseConfig)
	return out
}

// CloneTime copies a nullable timestamp.
func CloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CloneRaw copies an opaque JSON blob.
func CloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
