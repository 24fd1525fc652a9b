package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/application"
	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/testfixtures"
)

type testServer struct {
	harness *testfixtures.Harness
	metrics *Metrics
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	h := testfixtures.NewHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := NewRouter(RouterConfig{
		Sessions:   NewSessionHandler(h.Sessions, logger),
		Signups:    NewSignupHandler(h.Signups, logger),
		Cards:      NewCardHandler(h.Cards, logger),
		Metrics:    metrics,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger), Scope()},
	})
	return &testServer{harness: h, metrics: metrics, handler: handler}
}

type requestOption func(*http.Request)

func asHost(actor string, workspaces ...string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderActorID, actor)
		if len(workspaces) > 0 {
			r.Header.Set(HeaderWorkspaceIDs, strings.Join(workspaces, ","))
		}
	}
}

func (s *testServer) do(t *testing.T, method, target, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const mixerBody = `{"title":"Founder mixer","startTime":"2025-03-03T10:00:00Z","sessionLengthMinutes":10,"rotationDurationSeconds":120,"joinLimit":2}`

func (s *testServer) createSession(t *testing.T) application.SessionDetail {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/sessions", mixerBody, asHost("host-1", "acme"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[application.SessionDetail](t, rec)
}

func TestSessionRoutes(t *testing.T) {
	t.Run("create, list and regenerate", func(t *testing.T) {
		srv := newTestServer(t)
		detail := srv.createSession(t)
		assert.Equal(t, "acme", detail.Session.CompanyID)
		assert.Equal(t, "founder-mixer", detail.Session.Slug)
		assert.Len(t, detail.Rotations, 5)

		rec := srv.do(t, http.MethodGet, "/sessions?companyId=acme&upcoming=true", "", asHost("host-1", "acme"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		list := decodeBody[application.SessionList](t, rec)
		require.Len(t, list.Sessions, 1)
		assert.Equal(t, 5, list.Sessions[0].RotationCount)
		assert.Equal(t, 1, list.Summary.TotalSessions)

		rec = srv.do(t, http.MethodPost, "/sessions/"+detail.Session.ID+"/rotations/regenerate",
			`{"rotationDurationSeconds":300}`, asHost("host-1", "acme"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		regenerated := decodeBody[application.SessionDetail](t, rec)
		assert.Len(t, regenerated.Rotations, 2)

		rec = srv.do(t, http.MethodPost, "/sessions/"+detail.Session.ID+"/rotations/regenerate", "", asHost("host-1", "acme"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("update and runtime", func(t *testing.T) {
		srv := newTestServer(t)
		detail := srv.createSession(t)

		rec := srv.do(t, http.MethodPatch, "/sessions/"+detail.Session.ID, `{"status":"scheduled"}`, asHost("host-1", "acme"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeBody[application.SessionDetail](t, rec)
		assert.Equal(t, domain.SessionStatusScheduled, updated.Session.Status)

		srv.harness.Clock.Set(testfixtures.ReferenceTime().Add(63 * time.Minute))
		rec = srv.do(t, http.MethodGet, "/sessions/"+detail.Session.ID+"/runtime", "", asHost("host-1", "acme"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		runtime := decodeBody[application.SessionRuntime](t, rec)
		require.NotNil(t, runtime.Runtime.ActiveRotation)
		assert.Equal(t, 2, runtime.Runtime.ActiveRotation.Number)
	})

	t.Run("host routes require an actor", func(t *testing.T) {
		srv := newTestServer(t)
		rec := srv.do(t, http.MethodGet, "/sessions", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorResponse](t, rec)
		assert.Equal(t, "unauthenticated", body.ErrorCode)
	})

	t.Run("error mapping", func(t *testing.T) {
		srv := newTestServer(t)
		detail := srv.createSession(t)

		rec := srv.do(t, http.MethodPost, "/sessions", `{"title":""}`, asHost("host-1", "acme"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody[errorResponse](t, rec)
		assert.Equal(t, "validation", body.ErrorCode)
		assert.Contains(t, body.Errors, "title")

		rec = srv.do(t, http.MethodPost, "/sessions", `{"title":"x","bogus":1}`, asHost("host-1", "acme"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = srv.do(t, http.MethodPost, "/sessions", mixerBody, asHost("host-1", "acme"))
		require.Equal(t, http.StatusConflict, rec.Code)
		body = decodeBody[errorResponse](t, rec)
		assert.Equal(t, "slug already in use in this workspace", body.Message)

		rec = srv.do(t, http.MethodGet, "/sessions/"+detail.Session.ID+"/runtime", "", asHost("intruder", "globex"))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = srv.do(t, http.MethodGet, "/sessions/missing/runtime", "", asHost("host-1", "acme"))
		require.Equal(t, http.StatusNotFound, rec.Code)
		body = decodeBody[errorResponse](t, rec)
		assert.Equal(t, "not_found", body.ErrorCode)

		rec = srv.do(t, http.MethodGet, "/sessions?lookbackDays=soon", "", asHost("host-1", "acme"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = srv.do(t, http.MethodDelete, "/sessions", "", asHost("host-1", "acme"))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestSignupRoutes(t *testing.T) {
	srv := newTestServer(t)
	detail := srv.createSession(t)
	signupsPath := "/sessions/" + detail.Session.ID + "/signups"

	var first domain.Signup
	for i, email := range []string{"ada@example.com", "grace@example.com"} {
		rec := srv.do(t, http.MethodPost, signupsPath, `{"email":"`+email+`","displayName":"Guest"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decodeBody[signupResponse](t, rec)
		assert.Equal(t, domain.SignupStatusRegistered, resp.Signup.Status)
		if i == 0 {
			first = resp.Signup
		}
	}

	rec := srv.do(t, http.MethodPost, signupsPath, `{"email":"linus@example.com","displayName":"Guest"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.SignupStatusWaitlisted, decodeBody[signupResponse](t, rec).Signup.Status)

	noWaitlistBody := `{"title":"Closed mixer","joinLimit":2,"waitlistLimit":0}`
	rec = srv.do(t, http.MethodPost, "/sessions", noWaitlistBody, asHost("host-1", "acme"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	closedPath := "/sessions/" + decodeBody[application.SessionDetail](t, rec).Session.ID + "/signups"
	for _, email := range []string{"ada@example.com", "grace@example.com"} {
		rec = srv.do(t, http.MethodPost, closedPath, `{"email":"`+email+`","displayName":"Guest"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPost, closedPath, `{"email":"linus@example.com","displayName":"Guest"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session is full", decodeBody[errorResponse](t, rec).Message)

	rec = srv.do(t, http.MethodPost, signupsPath, `{"email":"ADA@example.com","displayName":"Again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPatch, signupsPath+"/"+first.ID, `{"status":"checked_in"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPatch, signupsPath+"/"+first.ID, `{"status":"checked_in"}`, asHost("host-1", "acme"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[signupResponse](t, rec)
	assert.Equal(t, domain.SignupStatusCheckedIn, updated.Signup.Status)
	assert.NotNil(t, updated.Signup.CheckedInAt)

	rec = srv.do(t, http.MethodPatch, signupsPath+"/"+first.ID, `{"status":"teleported"}`, asHost("host-1", "acme"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCardRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/cards", "", asHost("host-1", "acme"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cards":[]}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/cards", `{"displayName":"Ada","email":"Ada@Example.com"}`, asHost("host-1", "acme"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decodeBody[cardResponse](t, rec).Card
	assert.Equal(t, "ada@example.com", card.Email)

	rec = srv.do(t, http.MethodPatch, "/cards/"+card.ID, `{"headline":"Analyst"}`, asHost("host-1", "acme"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Analyst", decodeBody[cardResponse](t, rec).Card.Headline)

	rec = srv.do(t, http.MethodGet, "/cards?companyId=globex", "", asHost("host-1", "acme"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/cards", "", asHost("host-1", "acme"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[cardListResponse](t, rec).Cards, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("health reports readiness", func(t *testing.T) {
		healthy := NewRouter(RouterConfig{})
		rec := httptest.NewRecorder()
		healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

		failing := NewRouter(RouterConfig{Health: func(context.Context) error { return errors.New("store closed") }})
		rec = httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("requests are counted by route", func(t *testing.T) {
		srv := newTestServer(t)
		srv.createSession(t)
		srv.do(t, http.MethodGet, "/nowhere", "")

		assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.requests.WithLabelValues("POST /sessions", http.MethodPost, "201")))
		assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.requests.WithLabelValues("unmatched", http.MethodGet, "404")))
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("request logger records status", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

		out := buf.String()
		assert.Contains(t, out, "request_id=1")
		assert.Contains(t, out, "status=418")
		assert.Contains(t, out, "path=/brew")
	})

	t.Run("scope parses workspace headers", func(t *testing.T) {
		var got application.Principal
		var found bool
		handler := Scope()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, found = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, " host-7 ")
		req.Header.Set(HeaderWorkspaceIDs, "acme, globex,,acme")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.True(t, found)
		assert.Equal(t, "host-7", got.ActorID)
		assert.Equal(t, []string{"acme", "globex"}, got.WorkspaceIDs)

		found = false
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, found)
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	cases := []struct {
		name       string
		body       string
		allowEmpty bool
		wantErr    bool
	}{
		{name: "valid", body: `{"name":"ada"}`},
		{name: "unknown field", body: `{"nickname":"ada"}`, wantErr: true},
		{name: "trailing document", body: `{"name":"ada"}{"name":"grace"}`, wantErr: true},
		{name: "trailing garbage", body: `{"name":"ada"} }`, wantErr: true},
		{name: "empty rejected", body: ``, wantErr: true},
		{name: "empty allowed", body: ``, allowEmpty: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := decodeJSON(httptest.NewRecorder(), req, &dst, tc.allowEmpty)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
