package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/speednet/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, defaultLogger(custom))
	assert.Same(t, slog.Default(), defaultLogger(nil))
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctxLogger := slog.New(slog.NewTextHandler(&scoped, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, baseLogger, "SessionService", "CreateSession", "session_id", "s-1").Info("hello")

	assert.Empty(t, base.String())
	assert.Contains(t, scoped.String(), "service=SessionService")
	assert.Contains(t, scoped.String(), "operation=CreateSession")
	assert.Contains(t, scoped.String(), "session_id=s-1")
}

func TestLogOutcomeLevels(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		level string
	}{
		{name: "success", err: nil, level: "level=INFO"},
		{name: "caller mistake", err: conflict("dup"), level: "level=WARN"},
		{name: "unexpected", err: errors.New("boom"), level: "level=ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			logOutcome(context.Background(), logger, tc.err, "done")
			assert.Contains(t, buf.String(), tc.level)
		})
	}
}
