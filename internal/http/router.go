package http

import (
	"context"
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Sessions *SessionHandler
	Signups  *SignupHandler
	Cards    *CardHandler
	// Metrics instruments every routed request when set.
	Metrics *Metrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// Health reports readiness for /healthz. A nil func always reports ok.
	Health     func(ctx context.Context) error
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	responder := newResponder(cfg.Logger)
	host := func(next http.HandlerFunc) http.HandlerFunc {
		return requireActor(responder, next)
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("GET /sessions", host(cfg.Sessions.List))
		mux.HandleFunc("POST /sessions", host(cfg.Sessions.Create))
		mux.HandleFunc("PATCH /sessions/{sessionID}", host(cfg.Sessions.Update))
		mux.HandleFunc("POST /sessions/{sessionID}/rotations/regenerate", host(cfg.Sessions.Regenerate))
		mux.HandleFunc("GET /sessions/{sessionID}/runtime", host(cfg.Sessions.Runtime))
	}

	if cfg.Signups != nil {
		mux.HandleFunc("POST /sessions/{sessionID}/signups", cfg.Signups.Register)
		mux.HandleFunc("PATCH /sessions/{sessionID}/signups/{signupID}", host(cfg.Signups.Update))
	}

	if cfg.Cards != nil {
		mux.HandleFunc("GET /cards", host(cfg.Cards.List))
		mux.HandleFunc("POST /cards", host(cfg.Cards.Create))
		mux.HandleFunc("PATCH /cards/{cardID}", host(cfg.Cards.Update))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	})

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	var handler http.Handler = cfg.Metrics.instrument(mux)
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
