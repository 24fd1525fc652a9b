// Package memory provides an in-process persistence.Store. Each read-write
// unit of work operates on a private copy of the data set that replaces the
// shared state only when the work succeeds, so failed work leaves no trace.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

// Store is an in-memory record store. Writers are serialized; readers run
// concurrently with each other.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	sessions  map[string]domain.Session
	rotations map[string][]domain.Rotation
	signups   map[string]domain.Signup
	cards     map[string]domain.BusinessCard
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{
		sessions:  make(map[string]domain.Session),
		rotations: make(map[string][]domain.Rotation),
		signups:   make(map[string]domain.Signup),
		cards:     make(map[string]domain.BusinessCard),
	}}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{state: work, writable: true}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// View runs fn against the shared data in read-only mode.
func (s *Store) View(ctx context.Context, fn func(tx persistence.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: s.state})
}

func (st *state) clone() *state {
	out := &state{
		sessions:  make(map[string]domain.Session, len(st.sessions)),
		rotations: make(map[string][]domain.Rotation, len(st.rotations)),
		signups:   make(map[string]domain.Signup, len(st.signups)),
		cards:     make(map[string]domain.BusinessCard, len(st.cards)),
	}
	for id, session := range st.sessions {
		out.sessions[id] = session.Clone()
	}
	for id, rotations := range st.rotations {
		out.rotations[id] = domain.CloneRotations(rotations)
	}
	for id, signup := range st.signups {
		out.signups[id] = signup.Clone()
	}
	for id, card := range st.cards {
		out.cards[id] = card.Clone()
	}
	return out
}

type tx struct {
	state    *state
	writable bool
}

func (t *tx) checkWritable() error {
	if !t.writable {
		return persistence.ErrReadOnly
	}
	return nil
}

// --- Sessions ---

func (t *tx) FindSessions(ctx context.Context, filter persistence.SessionFilter) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	for _, session := range t.state.sessions {
		if !matchesSessionFilter(session, filter) {
			continue
		}
		sessions = append(sessions, session.Clone())
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i].StartTime, sessions[j].StartTime
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (t *tx) GetSession(ctx context.Context, id string) (domain.Session, error) {
	session, ok := t.state.sessions[id]
	if !ok {
		return domain.Session{}, persistence.ErrNotFound
	}
	return session.Clone(), nil
}

func (t *tx) CreateSession(ctx context.Context, session domain.Session) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if _, ok := t.state.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := t.ensureUniqueSlug(session); err != nil {
		return err
	}
	t.state.sessions[session.ID] = session.Clone()
	return nil
}

func (t *tx) UpdateSession(ctx context.Context, session domain.Session) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	existing, ok := t.state.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := t.ensureUniqueSlug(session); err != nil {
		return err
	}
	session.CreatedAt = existing.CreatedAt
	t.state.sessions[session.ID] = session.Clone()
	return nil
}

func (t *tx) ensureUniqueSlug(session domain.Session) error {
	for id, other := range t.state.sessions {
		if id == session.ID {
			continue
		}
		if other.CompanyID == session.CompanyID && other.Slug == session.Slug {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- Rotations ---

func (t *tx) FindRotations(ctx context.Context, sessionIDs []string) ([]domain.Rotation, error) {
	ids := append([]string(nil), sessionIDs...)
	sort.Strings(ids)

	rotations := make([]domain.Rotation, 0)
	for _, id := range ids {
		rotations = append(rotations, domain.CloneRotations(t.state.rotations[id])...)
	}
	return rotations, nil
}

func (t *tx) CreateRotations(ctx context.Context, rotations []domain.Rotation) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	for _, rotation := range rotations {
		if _, ok := t.state.sessions[rotation.SessionID]; !ok {
			return persistence.ErrNotFound
		}
		for _, existing := range t.state.rotations[rotation.SessionID] {
			if existing.Number == rotation.Number || existing.ID == rotation.ID {
				return persistence.ErrDuplicate
			}
		}
		t.state.rotations[rotation.SessionID] = append(t.state.rotations[rotation.SessionID], rotation.Clone())
	}
	for sessionID := range t.state.rotations {
		set := t.state.rotations[sessionID]
		sort.SliceStable(set, func(i, j int) bool { return set[i].Number < set[j].Number })
	}
	return nil
}

func (t *tx) DeleteRotations(ctx context.Context, sessionID string) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	delete(t.state.rotations, sessionID)
	return nil
}

// --- Signups ---

func (t *tx) FindSignups(ctx context.Context, filter persistence.SignupFilter) ([]domain.Signup, error) {
	signups := make([]domain.Signup, 0)
	for _, signup := range t.state.signups {
		if !t.matchesSignupFilter(signup, filter) {
			continue
		}
		signups = append(signups, signup.Clone())
	}

	sort.Slice(signups, func(i, j int) bool {
		if signups[i].CreatedAt.Equal(signups[j].CreatedAt) {
			return signups[i].ID < signups[j].ID
		}
		return signups[i].CreatedAt.Before(signups[j].CreatedAt)
	})
	return signups, nil
}

func (t *tx) GetSignup(ctx context.Context, id string) (domain.Signup, error) {
	signup, ok := t.state.signups[id]
	if !ok {
		return domain.Signup{}, persistence.ErrNotFound
	}
	return signup.Clone(), nil
}

func (t *tx) CreateSignup(ctx context.Context, signup domain.Signup) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if _, ok := t.state.signups[signup.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := t.state.sessions[signup.SessionID]; !ok {
		return persistence.ErrNotFound
	}
	if err := t.ensureUniqueSignup(signup); err != nil {
		return err
	}
	t.state.signups[signup.ID] = signup.Clone()
	return nil
}

func (t *tx) UpdateSignup(ctx context.Context, signup domain.Signup) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	existing, ok := t.state.signups[signup.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := t.ensureUniqueSignup(signup); err != nil {
		return err
	}
	signup.CreatedAt = existing.CreatedAt
	t.state.signups[signup.ID] = signup.Clone()
	return nil
}

// ensureUniqueSignup mirrors the partial unique index of the SQLite schema:
// one non-removed signup per email per session.
func (t *tx) ensureUniqueSignup(signup domain.Signup) error {
	if signup.Status == domain.SignupStatusRemoved {
		return nil
	}
	email := strings.ToLower(signup.Email)
	for id, other := range t.state.signups {
		if id == signup.ID || other.SessionID != signup.SessionID || other.Status == domain.SignupStatusRemoved {
			continue
		}
		if strings.ToLower(other.Email) == email {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- Business cards ---

func (t *tx) FindCards(ctx context.Context, filter persistence.CardFilter) ([]domain.BusinessCard, error) {
	cards := make([]domain.BusinessCard, 0)
	for _, card := range t.state.cards {
		if len(filter.IDs) > 0 && !contains(filter.IDs, card.ID) {
			continue
		}
		if len(filter.CompanyIDs) > 0 && !contains(filter.CompanyIDs, card.CompanyID) {
			continue
		}
		if filter.OwnerID != "" && (card.OwnerID == nil || *card.OwnerID != filter.OwnerID) {
			continue
		}
		cards = append(cards, card.Clone())
	}

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].DisplayName == cards[j].DisplayName {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].DisplayName < cards[j].DisplayName
	})
	return cards, nil
}

func (t *tx) GetCard(ctx context.Context, id string) (domain.BusinessCard, error) {
	card, ok := t.state.cards[id]
	if !ok {
		return domain.BusinessCard{}, persistence.ErrNotFound
	}
	return card.Clone(), nil
}

func (t *tx) CreateCard(ctx context.Context, card domain.BusinessCard) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if _, ok := t.state.cards[card.ID]; ok {
		return persistence.ErrDuplicate
	}
	t.state.cards[card.ID] = card.Clone()
	return nil
}

func (t *tx) UpdateCard(ctx context.Context, card domain.BusinessCard) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	existing, ok := t.state.cards[card.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	card.CreatedAt = existing.CreatedAt
	t.state.cards[card.ID] = card.Clone()
	return nil
}

// --- Helpers ---

func matchesSessionFilter(session domain.Session, filter persistence.SessionFilter) bool {
	if len(filter.IDs) > 0 && !contains(filter.IDs, session.ID) {
		return false
	}
	if len(filter.CompanyIDs) > 0 && !contains(filter.CompanyIDs, session.CompanyID) {
		return false
	}
	if filter.Slug != "" && session.Slug != filter.Slug {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if session.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.StartsAfter != nil {
		if session.StartTime == nil || session.StartTime.Before(*filter.StartsAfter) {
			return false
		}
	}
	return true
}

func (t *tx) matchesSignupFilter(signup domain.Signup, filter persistence.SignupFilter) bool {
	if len(filter.SessionIDs) > 0 && !contains(filter.SessionIDs, signup.SessionID) {
		return false
	}
	if len(filter.CompanyIDs) > 0 {
		session, ok := t.state.sessions[signup.SessionID]
		if !ok || !contains(filter.CompanyIDs, session.CompanyID) {
			return false
		}
	}
	if filter.ParticipantID != "" || filter.Email != "" {
		byID := filter.ParticipantID != "" && signup.ParticipantID != nil && *signup.ParticipantID == filter.ParticipantID
		byEmail := filter.Email != "" && strings.EqualFold(signup.Email, filter.Email)
		if !byID && !byEmail {
			return false
		}
	}
	for _, status := range filter.ExcludeStatuses {
		if signup.Status == status {
			return false
		}
	}
	if filter.PenalizedSince != nil {
		if signup.PenaltyCount <= 0 || signup.LastPenaltyAt == nil || signup.LastPenaltyAt.Before(*filter.PenalizedSince) {
			return false
		}
	}
	return true
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
