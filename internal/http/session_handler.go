package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/speednet/internal/application"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SessionDetail, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (application.SessionDetail, error)
	RegenerateRotations(ctx context.Context, params application.RegenerateParams) (application.SessionDetail, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) (application.SessionList, error)
	GetSessionRuntime(ctx context.Context, principal application.Principal, sessionID string) (application.SessionRuntime, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logs      operationLogger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	logs := newOperationLogger("SessionHandler", logger)
	return &SessionHandler{service: service, responder: newResponder(logs.fallback()), logs: logs}
}

func (h *SessionHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return operationLogger{}.forRequest(r, operation, attrs...)
	}
	return h.logs.forRequest(r, operation, attrs...)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, err := listSessionsQuery(r)
	if err != nil {
		h.log(r, "List", "error_kind", "bad_request").WarnContext(r.Context(), "invalid session list query", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	params.Principal = principal

	logger := h.log(r, "List", "company_id", params.CompanyID, "status", params.Status)
	list, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		logger.WarnContext(r.Context(), "session listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.DebugContext(r.Context(), "sessions listed", "count", len(list.Sessions))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, list)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var input application.SessionInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.log(r, "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Create")
	detail, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", detail.Session.ID).InfoContext(r.Context(), "session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, detail)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))

	var input application.SessionInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.log(r, "Update", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode session update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Update")
	detail, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		Principal: principal,
		SessionID: sessionID,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "session update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, detail)
}

func (h *SessionHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))

	var override application.RegenerateInput
	if err := decodeJSON(w, r, &override, true); err != nil {
		h.log(r, "Regenerate", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode regenerate request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Regenerate")
	detail, err := h.service.RegenerateRotations(r.Context(), application.RegenerateParams{
		Principal: principal,
		SessionID: sessionID,
		Override:  override,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "rotation regeneration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "rotations regenerated", "rotations", len(detail.Rotations))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, detail)
}

func (h *SessionHandler) Runtime(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	logger := h.log(r, "Runtime")

	runtime, err := h.service.GetSessionRuntime(r.Context(), principal, sessionID)
	if err != nil {
		logger.WarnContext(r.Context(), "runtime lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, runtime)
}

func listSessionsQuery(r *http.Request) (application.ListSessionsParams, error) {
	query := r.URL.Query()
	params := application.ListSessionsParams{
		CompanyID: query.Get("companyId"),
		Status:    query.Get("status"),
	}

	if raw := strings.TrimSpace(query.Get("lookbackDays")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("%w: lookbackDays must be an integer", errInvalidQuery)
		}
		params.LookbackDays = days
	}
	if raw := strings.TrimSpace(query.Get("upcoming")); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("%w: upcoming must be a boolean", errInvalidQuery)
		}
		params.UpcomingOnly = upcoming
	}
	return params, nil
}
