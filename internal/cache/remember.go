package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/example/speednet/internal/logging"
)

// Remember returns the cached value under key or computes it with produce and
// stores the result. Cache failures are logged and never returned; a value
// that cannot be decoded is treated as a miss.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return produce(ctx)
	}
	logger := loggerFrom(ctx)

	raw, ok, err := c.Get(ctx, key)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	case ok:
		var cached T
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			return cached, nil
		}
		logger.WarnContext(ctx, "cache entry undecodable", "key", key, "error", decodeErr)
	}

	value, err := produce(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return value, nil
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return value, nil
}

// InvalidatePrefixes removes each prefix in turn, logging failures.
func InvalidatePrefixes(ctx context.Context, c Cache, prefixes ...string) {
	if c == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := c.InvalidatePrefix(ctx, prefix); err != nil {
			loggerFrom(ctx).WarnContext(ctx, "cache invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "cache")
	}
	return slog.Default().With("component", "cache")
}
