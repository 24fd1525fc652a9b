package domain

import (
	"encoding/json"
	"time"
)

// SignupStatus is the registration state of a participant.
type SignupStatus string

const (
	SignupStatusRegistered SignupStatus = "registered"
	SignupStatusWaitlisted SignupStatus = "waitlisted"
	SignupStatusCheckedIn  SignupStatus = "checked_in"
	SignupStatusCompleted  SignupStatus = "completed"
	SignupStatusNoShow     SignupStatus = "no_show"
	SignupStatusRemoved    SignupStatus = "removed"
)

// Valid reports whether s is a known signup status.
func (s SignupStatus) Valid() bool {
	switch s {
	case SignupStatusRegistered, SignupStatusWaitlisted, SignupStatusCheckedIn,
		SignupStatusCompleted, SignupStatusNoShow, SignupStatusRemoved:
		return true
	}
	return false
}

// HoldsSeat reports whether the signup counts against the join limit.
func (s SignupStatus) HoldsSeat() bool {
	return s != SignupStatusRemoved && s != SignupStatusWaitlisted
}

// SignupSource records how the participant arrived.
type SignupSource string

const (
	SignupSourceSelf   SignupSource = "self"
	SignupSourceInvite SignupSource = "invite"
	SignupSourceImport SignupSource = "import"
	SignupSourceHost   SignupSource = "host"
	SignupSourceAPI    SignupSource = "api"
)

// Valid reports whether s is a known signup source.
func (s SignupSource) Valid() bool {
	switch s {
	case SignupSourceSelf, SignupSourceInvite, SignupSourceImport, SignupSourceHost, SignupSourceAPI:
		return true
	}
	return false
}

// Engagement aggregates the per-signup networking counters.
type Engagement struct {
	ProfileSharedCount int `json:"profileSharedCount"`
	ConnectionsSaved   int `json:"connectionsSaved"`
	MessagesSent       int `json:"messagesSent"`
	FollowUpsScheduled int `json:"followUpsScheduled"`
}

// Signup is one participant's registration to a session.
type Signup struct {
	ID                string          `json:"id"`
	SessionID         string          `json:"sessionId"`
	ParticipantID     *string         `json:"participantId,omitempty"`
	Email             string          `json:"email"`
	DisplayName       string          `json:"displayName"`
	Status            SignupStatus    `json:"status"`
	Source            SignupSource    `json:"source"`
	SeatNumber        *int            `json:"seatNumber,omitempty"`
	JoinURL           *string         `json:"joinUrl,omitempty"`
	BusinessCard      *CardSnapshot   `json:"businessCard,omitempty"`
	NoShowCount       int             `json:"noShowCount"`
	PenaltyCount      int             `json:"penaltyCount"`
	LastPenaltyAt     *time.Time      `json:"lastPenaltyAt,omitempty"`
	SatisfactionScore *float64        `json:"satisfactionScore,omitempty"`
	Engagement        Engagement      `json:"engagement"`
	CheckedInAt       *time.Time      `json:"checkedInAt,omitempty"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the signup.
func (s Signup) Clone() Signup {
	out := s
	out.ParticipantID = cloneString(s.ParticipantID)
	out.SeatNumber = cloneInt(s.SeatNumber)
	out.JoinURL = cloneString(s.JoinURL)
	if s.BusinessCard != nil {
		card := *s.BusinessCard
		out.BusinessCard = &card
	}
	out.LastPenaltyAt = CloneTime(s.LastPenaltyAt)
	out.SatisfactionScore = cloneFloat(s.SatisfactionScore)
	out.CheckedInAt = CloneTime(s.CheckedInAt)
	out.CompletedAt = CloneTime(s.CompletedAt)
	out.Metadata = CloneRaw(s.Metadata)
	return out
}

// CloneSignups deep-copies a signup slice.
func CloneSignups(signups []Signup) []Signup {
	if signups == nil {
		return nil
	}
	out := make([]Signup, len(signups))
	for i, s := range signups {
		out[i] = s.Clone()
	}
	return out
}
