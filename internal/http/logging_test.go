package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/logging"
)

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &record), buf.String())
	return record
}

func TestOperationLogger(t *testing.T) {
	serve := func(logs operationLogger, target string, wrap func(*http.Request) *http.Request) {
		mux := http.NewServeMux()
		mux.HandleFunc("PATCH /sessions/{sessionID}/signups/{signupID}", func(w http.ResponseWriter, r *http.Request) {
			logs.forRequest(r, "Update", "status", "checked_in").Info("signup updated")
		})
		req := httptest.NewRequest(http.MethodPatch, target, nil)
		if wrap != nil {
			req = wrap(req)
		}
		mux.ServeHTTP(httptest.NewRecorder(), req)
	}

	t.Run("tags route and path ids", func(t *testing.T) {
		var buf bytes.Buffer
		logs := newOperationLogger("SignupHandler", slog.New(slog.NewJSONHandler(&buf, nil)))
		serve(logs, "/sessions/s-1/signups/g-7", nil)

		record := lastRecord(t, &buf)
		assert.Equal(t, "SignupHandler", record["handler"])
		assert.Equal(t, "Update", record["operation"])
		assert.Equal(t, "PATCH /sessions/{sessionID}/signups/{signupID}", record["route"])
		assert.Equal(t, "s-1", record["session_id"])
		assert.Equal(t, "g-7", record["signup_id"])
		assert.Equal(t, "checked_in", record["status"])
		assert.NotContains(t, record, "card_id")
	})

	t.Run("prefers the request logger", func(t *testing.T) {
		var fallback, scoped bytes.Buffer
		logs := newOperationLogger("SignupHandler", slog.New(slog.NewJSONHandler(&fallback, nil)))
		requestLogger := slog.New(slog.NewJSONHandler(&scoped, nil)).With("request_id", "req-1")
		serve(logs, "/sessions/s-1/signups/g-7", func(r *http.Request) *http.Request {
			return r.WithContext(logging.ContextWithLogger(r.Context(), requestLogger))
		})

		assert.Empty(t, fallback.String())
		record := lastRecord(t, &scoped)
		assert.Equal(t, "req-1", record["request_id"])
		assert.Equal(t, "s-1", record["session_id"])
	})

	t.Run("zero value falls back to the default logger", func(t *testing.T) {
		var buf bytes.Buffer
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
		t.Cleanup(func() { slog.SetDefault(previous) })

		serve(operationLogger{}, "/sessions/s-2/signups/g-8", nil)

		record := lastRecord(t, &buf)
		assert.NotContains(t, record, "handler")
		assert.Equal(t, "s-2", record["session_id"])
	})
}
