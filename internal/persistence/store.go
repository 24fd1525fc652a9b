// Package persistence defines the record store consumed by the application
// services. Every multi-step write runs inside one unit of work so readers
// never observe partial results.
package persistence

import (
	"context"
	"time"

	"github.com/example/speednet/internal/domain"
)

// Store executes units of work against the record store.
type Store interface {
	// WithinTx runs fn in a read-write unit of work. The work commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only unit of work.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// SessionFilter narrows session queries. Zero values do not filter.
type SessionFilter struct {
	IDs        []string
	CompanyIDs []string
	Slug       string
	Statuses   []domain.SessionStatus
	// StartsAfter keeps sessions whose start time is at or after the bound.
	// Sessions without a start time are excluded when set.
	StartsAfter *time.Time
}

// SignupFilter narrows signup queries. Zero values do not filter.
type SignupFilter struct {
	SessionIDs []string
	// CompanyIDs restricts signups to sessions owned by these workspaces.
	CompanyIDs []string
	// ParticipantID and Email match either field when both are set.
	ParticipantID   string
	Email           string
	ExcludeStatuses []domain.SignupStatus
	// PenalizedSince keeps signups with a positive penalty count stamped at or
	// after the bound.
	PenalizedSince *time.Time
}

// CardFilter narrows business card queries.
type CardFilter struct {
	IDs        []string
	CompanyIDs []string
	OwnerID    string
}

// Tx is the transactional handle passed to a unit of work.
type Tx interface {
	FindSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
	CreateSession(ctx context.Context, session domain.Session) error
	UpdateSession(ctx context.Context, session domain.Session) error

	// FindRotations returns the rotations of the given sessions ordered by
	// session and rotation number.
	FindRotations(ctx context.Context, sessionIDs []string) ([]domain.Rotation, error)
	CreateRotations(ctx context.Context, rotations []domain.Rotation) error
	DeleteRotations(ctx context.Context, sessionID string) error

	FindSignups(ctx context.Context, filter SignupFilter) ([]domain.Signup, error)
	GetSignup(ctx context.Context, id string) (domain.Signup, error)
	CreateSignup(ctx context.Context, signup domain.Signup) error
	UpdateSignup(ctx context.Context, signup domain.Signup) error

	FindCards(ctx context.Context, filter CardFilter) ([]domain.BusinessCard, error)
	GetCard(ctx context.Context, id string) (domain.BusinessCard, error)
	CreateCard(ctx context.Context, card domain.BusinessCard) error
	UpdateCard(ctx context.Context, card domain.BusinessCard) error
}
