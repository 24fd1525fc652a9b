package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_PORT", "STORE", "SQLITE_DSN", "CACHE", "CACHE_MAX_ENTRIES",
		"LIST_CACHE_TTL", "RUNTIME_CACHE_TTL", "REDIS_ADDR", "REDIS_PASSWORD",
		"REDIS_DB", "REDIS_KEY_PREFIX", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(Prefix+key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, StoreSQLite, cfg.Store)
		assert.Equal(t, "speednet.db", cfg.SQLiteDSN)
		assert.Equal(t, CacheMemory, cfg.Cache)
		assert.Equal(t, 1024, cfg.CacheMaxEntries)
		assert.Equal(t, 30*time.Second, cfg.ListCacheTTL)
		assert.Equal(t, 5*time.Second, cfg.RuntimeCacheTTL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, ":8080", cfg.Addr())
	})

	t.Run("reads overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPEEDNET_HTTP_PORT", "9090")
		t.Setenv("SPEEDNET_STORE", " Memory ")
		t.Setenv("SPEEDNET_CACHE", "redis")
		t.Setenv("SPEEDNET_REDIS_ADDR", "localhost:6379")
		t.Setenv("SPEEDNET_REDIS_DB", "3")
		t.Setenv("SPEEDNET_LIST_CACHE_TTL", "1m")
		t.Setenv("SPEEDNET_LOG_FORMAT", "TEXT")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, StoreMemory, cfg.Store)
		assert.Equal(t, CacheRedis, cfg.Cache)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, 3, cfg.RedisDB)
		assert.Equal(t, time.Minute, cfg.ListCacheTTL)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPEEDNET_HTTP_PORT", "0")
		t.Setenv("SPEEDNET_CACHE", "redis")
		t.Setenv("SPEEDNET_LOG_LEVEL", "loud")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "invalid environment values: SPEEDNET_HTTP_PORT, SPEEDNET_REDIS_ADDR, SPEEDNET_LOG_LEVEL", err.Error())
	})

	t.Run("rejects unparsable values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPEEDNET_RUNTIME_CACHE_TTL", "soon")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "invalid environment values: SPEEDNET_RUNTIME_CACHE_TTL", err.Error())

		var envErr *InvalidEnvError
		require.ErrorAs(t, err, &envErr)
		assert.Equal(t, []string{"SPEEDNET_RUNTIME_CACHE_TTL"}, envErr.Keys)
		var parseErr env.ParseError
		assert.ErrorAs(t, err, &parseErr, "the env cause stays reachable")
	})

	t.Run("names every unparsable variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPEEDNET_HTTP_PORT", "eighty")
		t.Setenv("SPEEDNET_SHUTDOWN_TIMEOUT", "later")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "invalid environment values: SPEEDNET_HTTP_PORT, SPEEDNET_SHUTDOWN_TIMEOUT", err.Error())
		assert.NotContains(t, err.Error(), "HTTPPort")
	})
}
