package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/speednet/internal/application"
	"github.com/example/speednet/internal/domain"
)

type cardService interface {
	ListCards(ctx context.Context, params application.ListCardsParams) ([]domain.BusinessCard, error)
	CreateCard(ctx context.Context, params application.CreateCardParams) (domain.BusinessCard, error)
	UpdateCard(ctx context.Context, params application.UpdateCardParams) (domain.BusinessCard, error)
}

type CardHandler struct {
	service   cardService
	responder responder
	logs      operationLogger
}

func NewCardHandler(service cardService, logger *slog.Logger) *CardHandler {
	logs := newOperationLogger("CardHandler", logger)
	return &CardHandler{service: service, responder: newResponder(logs.fallback()), logs: logs}
}

func (h *CardHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return operationLogger{}.forRequest(r, operation, attrs...)
	}
	return h.logs.forRequest(r, operation, attrs...)
}

type cardResponse struct {
	Card domain.BusinessCard `json:"card"`
}

type cardListResponse struct {
	Cards []domain.BusinessCard `json:"cards"`
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	params := application.ListCardsParams{
		Principal: principal,
		CompanyID: query.Get("companyId"),
		OwnerID:   query.Get("ownerId"),
	}

	cards, err := h.service.ListCards(r.Context(), params)
	if err != nil {
		h.log(r, "List", "company_id", params.CompanyID).WarnContext(r.Context(), "card listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if cards == nil {
		cards = []domain.BusinessCard{}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, cardListResponse{Cards: cards})
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var input application.CardInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.log(r, "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode card request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Create")
	card, err := h.service.CreateCard(r.Context(), application.CreateCardParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "card creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("card_id", card.ID).InfoContext(r.Context(), "card created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, cardResponse{Card: card})
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cardID := strings.TrimSpace(r.PathValue("cardID"))

	var input application.CardInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.log(r, "Update", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode card update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Update")
	card, err := h.service.UpdateCard(r.Context(), application.UpdateCardParams{
		Principal: principal,
		CardID:    cardID,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "card update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "card updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cardResponse{Card: card})
}
