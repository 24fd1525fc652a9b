package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		HTTPPort:        8080,
		Store:           config.StoreSQLite,
		SQLiteDSN:       filepath.Join(t.TempDir(), "speednet.db"),
		Cache:           config.CacheMemory,
		CacheMaxEntries: 64,
		ListCacheTTL:    time.Second,
		RuntimeCacheTTL: time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate"}, names)
}

func TestBuildApp(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{config.CacheMemory, config.CacheNone} {
		t.Run("sqlite with "+backend+" cache", func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cache = backend

			a, err := buildApp(ctx, cfg, quietLogger())
			require.NoError(t, err)
			t.Cleanup(a.Close)

			rec := httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, http.StatusOK, rec.Code)

			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title":"Mixer"}`))
			req.Header.Set("X-Actor-ID", "host-1")
			req.Header.Set("X-Workspace-IDs", "acme")
			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "speednet_http_requests_total")
		})
	}

	t.Run("memory store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store = config.StoreMemory

		a, err := buildApp(ctx, cfg, quietLogger())
		require.NoError(t, err)
		a.Close()
	})

	t.Run("unreachable redis fails fast", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache = config.CacheRedis
		cfg.RedisAddr = "127.0.0.1:1"

		_, err := buildApp(ctx, cfg, quietLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open cache")
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	require.NoError(t, migrate(ctx, cfg, quietLogger()))
	require.NoError(t, migrate(ctx, cfg, quietLogger()), "migrations are idempotent")

	cfg.Store = config.StoreMemory
	assert.Error(t, migrate(ctx, cfg, quietLogger()))
}
