package application

import (
	"encoding/json"
	"time"

	"github.com/example/speednet/internal/domain"
)

// Principal is the pre-authenticated caller. WorkspaceIDs lists the
// workspaces the caller may act on; an empty list means unrestricted.
type Principal struct {
	ActorID      string
	WorkspaceIDs []string
}

// Unrestricted reports whether the caller may act on any workspace.
func (p Principal) Unrestricted() bool {
	return len(p.WorkspaceIDs) == 0
}

// Allows reports whether companyID falls inside the caller's scope.
func (p Principal) Allows(companyID string) bool {
	if p.Unrestricted() {
		return true
	}
	for _, id := range p.WorkspaceIDs {
		if id == companyID {
			return true
		}
	}
	return false
}

// PenaltyRulesInput overrides individual penalty rule fields.
type PenaltyRulesInput struct {
	NoShowThreshold *int `json:"noShowThreshold,omitempty"`
	CooldownDays    *int `json:"cooldownDays,omitempty"`
	PenaltyWeight   *int `json:"penaltyWeight,omitempty"`
}

// RotationInput is a manual rotation override. Absent fields are derived
// from the session.
type RotationInput struct {
	RotationNumber  *int            `json:"rotationNumber,omitempty"`
	DurationSeconds *float64        `json:"durationSeconds,omitempty"`
	StartsAt        *time.Time      `json:"startsAt,omitempty"`
	EndsAt          *time.Time      `json:"endsAt,omitempty"`
	Status          *string         `json:"status,omitempty"`
	SeatingPlan     json.RawMessage `json:"seatingPlan,omitempty"`
	PairingSeed     *string         `json:"pairingSeed,omitempty"`
	HostNotes       *string         `json:"hostNotes,omitempty"`
}

// SessionInput carries caller supplied session fields. Nil pointers leave
// the current value untouched on update and take defaults on create.
type SessionInput struct {
	CompanyID               *string            `json:"companyId,omitempty"`
	Title                   *string            `json:"title,omitempty"`
	Slug                    *string            `json:"slug,omitempty"`
	Status                  *string            `json:"status,omitempty"`
	Visibility              *string            `json:"visibility,omitempty"`
	AccessType              *string            `json:"accessType,omitempty"`
	PriceCents              *float64           `json:"priceCents,omitempty"`
	Price                   *float64           `json:"price,omitempty"`
	StartTime               *time.Time         `json:"startTime,omitempty"`
	EndTime                 *time.Time         `json:"endTime,omitempty"`
	SessionLengthMinutes    *int               `json:"sessionLengthMinutes,omitempty"`
	RotationDurationSeconds *float64           `json:"rotationDurationSeconds,omitempty"`
	JoinLimit               *int               `json:"joinLimit,omitempty"`
	WaitlistLimit           *int               `json:"waitlistLimit,omitempty"`
	RegistrationOpensAt     *time.Time         `json:"registrationOpensAt,omitempty"`
	RegistrationClosesAt    *time.Time         `json:"registrationClosesAt,omitempty"`
	RequiresApproval        *bool              `json:"requiresApproval,omitempty"`
	PenaltyRules            *PenaltyRulesInput `json:"penaltyRules,omitempty"`
	VideoConfig             json.RawMessage    `json:"videoConfig,omitempty"`
	ShowcaseConfig          json.RawMessage    `json:"showcaseConfig,omitempty"`
	// Rotations, when non-nil, replaces the rotation set. An empty slice
	// re-derives the set from the session parameters.
	Rotations []RotationInput `json:"rotations,omitempty"`
}

// CreateSessionParams wraps the data required to create a session.
type CreateSessionParams struct {
	Principal Principal
	Input     SessionInput
}

// UpdateSessionParams wraps the data required to patch a session.
type UpdateSessionParams struct {
	Principal Principal
	SessionID string
	Input     SessionInput
}

// RegenerateInput overrides the parameters used to rebuild rotations. Every
// override is persisted on the session.
type RegenerateInput struct {
	StartTime               *time.Time      `json:"startTime,omitempty"`
	SessionLengthMinutes    *int            `json:"sessionLengthMinutes,omitempty"`
	RotationDurationSeconds *float64        `json:"rotationDurationSeconds,omitempty"`
	Rotations               []RotationInput `json:"rotations,omitempty"`
}

// RegenerateParams wraps a rotation regeneration request.
type RegenerateParams struct {
	Principal Principal
	SessionID string
	Override  RegenerateInput
}

// ListSessionsParams filters a session listing.
type ListSessionsParams struct {
	Principal    Principal
	CompanyID    string
	Status       string
	LookbackDays int
	UpcomingOnly bool
}

// SessionDetail is a session with its rotation set and signups.
type SessionDetail struct {
	Session   domain.Session    `json:"session"`
	Rotations []domain.Rotation `json:"rotations"`
	Signups   []domain.Signup   `json:"signups"`
}

// SignupCounts tallies signups by status.
type SignupCounts struct {
	Registered int `json:"registered"`
	Waitlisted int `json:"waitlisted"`
	CheckedIn  int `json:"checkedIn"`
	Completed  int `json:"completed"`
	NoShow     int `json:"noShow"`
	Removed    int `json:"removed"`
}

// Active counts signups that hold a seat.
func (c SignupCounts) Active() int {
	return c.Registered + c.CheckedIn + c.Completed + c.NoShow
}

// SessionOverview is one row of a session listing.
type SessionOverview struct {
	Session       domain.Session `json:"session"`
	RotationCount int            `json:"rotationCount"`
	Signups       SignupCounts   `json:"signups"`
}

// SessionSummary aggregates a listing.
type SessionSummary struct {
	TotalSessions         int                          `json:"totalSessions"`
	ByStatus              map[domain.SessionStatus]int `json:"byStatus"`
	Registrations         int                          `json:"registrations"`
	Waitlisted            int                          `json:"waitlisted"`
	CheckedIn             int                          `json:"checkedIn"`
	Completed             int                          `json:"completed"`
	PaidSessions          int                          `json:"paidSessions"`
	FreeSessions          int                          `json:"freeSessions"`
	EstimatedRevenueCents int64                        `json:"estimatedRevenueCents"`
}

// SessionList is the result of ListSessions.
type SessionList struct {
	Sessions []SessionOverview `json:"sessions"`
	Summary  SessionSummary    `json:"summary"`
}

// RuntimeSnapshot is the live view of a session at GeneratedAt.
type RuntimeSnapshot struct {
	ActiveRotation *domain.Rotation `json:"activeRotation"`
	NextRotation   *domain.Rotation `json:"nextRotation"`
	Registered     []domain.Signup  `json:"registered"`
	CheckedIn      []domain.Signup  `json:"checkedIn"`
	Waitlist       []domain.Signup  `json:"waitlist"`
	Completed      []domain.Signup  `json:"completed"`
	NoShows        []domain.Signup  `json:"noShows"`
	Counts         SignupCounts     `json:"counts"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

// SessionRuntime is the result of GetSessionRuntime.
type SessionRuntime struct {
	Session   domain.Session    `json:"session"`
	Rotations []domain.Rotation `json:"rotations"`
	Runtime   RuntimeSnapshot   `json:"runtime"`
}

// RegisterInput is a public registration payload.
type RegisterInput struct {
	ParticipantID  *string         `json:"participantId,omitempty"`
	Email          string          `json:"email"`
	DisplayName    string          `json:"displayName"`
	Source         *string         `json:"source,omitempty"`
	BusinessCardID *string         `json:"businessCardId,omitempty"`
	SeatNumber     *int            `json:"seatNumber,omitempty"`
	JoinURL        *string         `json:"joinUrl,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// RegisterParams wraps a registration. Registration needs no principal.
type RegisterParams struct {
	SessionID string
	Input     RegisterInput
}

// EngagementInput overrides engagement counters. Negative values clamp to zero.
type EngagementInput struct {
	ProfileSharedCount *int `json:"profileSharedCount,omitempty"`
	ConnectionsSaved   *int `json:"connectionsSaved,omitempty"`
	MessagesSent       *int `json:"messagesSent,omitempty"`
	FollowUpsScheduled *int `json:"followUpsScheduled,omitempty"`
}

// SignupPatch carries host-side signup changes.
type SignupPatch struct {
	Status            *string          `json:"status,omitempty"`
	DisplayName       *string          `json:"displayName,omitempty"`
	SeatNumber        *int             `json:"seatNumber,omitempty"`
	JoinURL           *string          `json:"joinUrl,omitempty"`
	BusinessCardID    *string          `json:"businessCardId,omitempty"`
	SatisfactionScore *float64         `json:"satisfactionScore,omitempty"`
	Engagement        *EngagementInput `json:"engagement,omitempty"`
	CheckedInAt       *time.Time       `json:"checkedInAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
	Metadata          json.RawMessage  `json:"metadata,omitempty"`
}

// UpdateSignupParams wraps a host-side signup mutation.
type UpdateSignupParams struct {
	Principal Principal
	SessionID string
	SignupID  string
	Input     SignupPatch
}

// CardInput carries business card fields.
type CardInput struct {
	CompanyID   *string `json:"companyId,omitempty"`
	OwnerID     *string `json:"ownerId,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Headline    *string `json:"headline,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Website     *string `json:"website,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// CreateCardParams wraps a card creation.
type CreateCardParams struct {
	Principal Principal
	Input     CardInput
}

// UpdateCardParams wraps a card patch.
type UpdateCardParams struct {
	Principal Principal
	CardID    string
	Input     CardInput
}

// ListCardsParams filters a card listing.
type ListCardsParams struct {
	Principal Principal
	CompanyID string
	OwnerID   string
}
