package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/speednet/internal/application"
	"github.com/example/speednet/internal/domain"
)

type signupService interface {
	Register(ctx context.Context, params application.RegisterParams) (domain.Signup, error)
	UpdateSignup(ctx context.Context, params application.UpdateSignupParams) (domain.Signup, error)
}

type SignupHandler struct {
	service   signupService
	responder responder
	logs      operationLogger
}

func NewSignupHandler(service signupService, logger *slog.Logger) *SignupHandler {
	logs := newOperationLogger("SignupHandler", logger)
	return &SignupHandler{service: service, responder: newResponder(logs.fallback()), logs: logs}
}

func (h *SignupHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return operationLogger{}.forRequest(r, operation, attrs...)
	}
	return h.logs.forRequest(r, operation, attrs...)
}

type signupResponse struct {
	Signup domain.Signup `json:"signup"`
}

// Register is public: participants sign themselves up without scope headers.
func (h *SignupHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("sessionID"))

	var input application.RegisterInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.log(r, "Register", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode registration", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Register")
	signup, err := h.service.Register(r.Context(), application.RegisterParams{
		SessionID: sessionID,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("signup_id", signup.ID).InfoContext(r.Context(), "participant registered", "status", signup.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, signupResponse{Signup: signup})
}

func (h *SignupHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	signupID := strings.TrimSpace(r.PathValue("signupID"))

	var patch application.SignupPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		h.log(r, "Update", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode signup patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r, "Update")
	signup, err := h.service.UpdateSignup(r.Context(), application.UpdateSignupParams{
		Principal: principal,
		SessionID: sessionID,
		SignupID:  signupID,
		Input:     patch,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "signup update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "signup updated", "status", signup.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, signupResponse{Signup: signup})
}
