package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/persistence"
)

const maxBioLength = 2000

// CardService manages workspace-scoped business cards.
type CardService struct {
	store persistence.Store
	opts  Options
}

// NewCardService constructs a card service.
func NewCardService(store persistence.Store, opts Options) *CardService {
	return &CardService{store: store, opts: opts.withDefaults()}
}

func (s *CardService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.opts.Logger, "CardService", operation, attrs...)
}

// ListCards returns the cards visible to the caller.
func (s *CardService) ListCards(ctx context.Context, params ListCardsParams) (cards []domain.BusinessCard, err error) {
	if s == nil {
		err = fmt.Errorf("CardService is nil")
		return
	}

	companyID := strings.TrimSpace(params.CompanyID)
	filter := persistence.CardFilter{OwnerID: strings.TrimSpace(params.OwnerID)}
	switch {
	case companyID != "":
		if !params.Principal.Allows(companyID) {
			return nil, ErrUnauthorized
		}
		filter.CompanyIDs = []string{companyID}
	case !params.Principal.Unrestricted():
		filter.CompanyIDs = append([]string(nil), params.Principal.WorkspaceIDs...)
	}

	err = s.store.View(ctx, func(tx persistence.Tx) error {
		var err error
		cards, err = tx.FindCards(ctx, filter)
		return err
	})
	if err != nil {
		s.loggerWith(ctx, "ListCards").ErrorContext(ctx, "failed to list cards", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return cards, nil
}

// CreateCard validates and stores a new card.
func (s *CardService) CreateCard(ctx context.Context, params CreateCardParams) (card domain.BusinessCard, err error) {
	if s == nil {
		err = fmt.Errorf("CardService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateCard", "actor_id", params.Principal.ActorID)
	defer func() {
		logOutcome(ctx, logger, err, "card created", "card_id", card.ID)
	}()

	companyID, err := resolveCompany(params.Principal, params.Input.CompanyID)
	if err != nil {
		return
	}

	now := s.opts.now()
	base := domain.BusinessCard{
		ID:          s.opts.IDGenerator(),
		CompanyID:   companyID,
		CreatedByID: params.Principal.ActorID,
		UpdatedByID: params.Principal.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	candidate, vErr := applyCardInput(base, params.Input, true)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		return tx.CreateCard(ctx, candidate)
	})
	if err != nil {
		err = mapStoreError(err, "business card", candidate.ID, "business card already exists")
		return
	}
	card = candidate
	return
}

// UpdateCard patches a card. Existing signups keep their snapshots.
func (s *CardService) UpdateCard(ctx context.Context, params UpdateCardParams) (card domain.BusinessCard, err error) {
	if s == nil {
		err = fmt.Errorf("CardService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCard",
		"actor_id", params.Principal.ActorID,
		"card_id", params.CardID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "card updated")
	}()

	err = s.store.WithinTx(ctx, func(tx persistence.Tx) error {
		existing, err := tx.GetCard(ctx, params.CardID)
		if err != nil {
			return mapStoreError(err, "business card", params.CardID, "")
		}
		if !params.Principal.Allows(existing.CompanyID) {
			return ErrUnauthorized
		}

		vErr := &ValidationError{}
		if id := params.Input.CompanyID; id != nil && strings.TrimSpace(*id) != existing.CompanyID {
			vErr.add("companyId", "companyId cannot be changed")
		}
		updated, applyErr := applyCardInput(existing, params.Input, false)
		vErr.merge("", applyErr)
		if vErr.HasErrors() {
			return vErr
		}
		updated.UpdatedAt = s.opts.now()
		updated.UpdatedByID = params.Principal.ActorID

		if err := tx.UpdateCard(ctx, updated); err != nil {
			return err
		}
		card = updated
		return nil
	})
	err = mapStoreError(err, "business card", params.CardID, "")
	return
}

func applyCardInput(base domain.BusinessCard, in CardInput, creating bool) (domain.BusinessCard, *ValidationError) {
	out := base.Clone()
	vErr := &ValidationError{}

	if in.DisplayName != nil || creating {
		name := strings.TrimSpace(deref(in.DisplayName))
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			vErr.add("displayName", fmt.Sprintf("displayName must be 1 to %d characters", maxDisplayNameLength))
		} else {
			out.DisplayName = name
		}
	}
	if in.OwnerID != nil {
		out.OwnerID = optionalString(in.OwnerID)
	}
	if in.Email != nil {
		if raw := strings.TrimSpace(*in.Email); raw == "" {
			out.Email = ""
		} else if email, ok := normalizeEmail(raw); ok {
			out.Email = email
		} else {
			vErr.add("email", "email must be a valid address")
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			vErr.add("bio", fmt.Sprintf("bio must be at most %d characters", maxBioLength))
		} else {
			out.Bio = bio
		}
	}

	setText := func(target *string, value *string) {
		if value != nil {
			*target = strings.TrimSpace(*value)
		}
	}
	setText(&out.Headline, in.Headline)
	setText(&out.CompanyName, in.CompanyName)
	setText(&out.Phone, in.Phone)
	setText(&out.Website, in.Website)
	return out, vErr
}
