package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/speednet/internal/cache"
)

// Default cache lifetimes.
const (
	DefaultListTTL    = 30 * time.Second
	DefaultRuntimeTTL = 5 * time.Second
)

// Options carries the collaborators shared by the services. Zero fields take
// production defaults.
type Options struct {
	// IDGenerator produces record identifiers.
	IDGenerator func() string
	// SeedGenerator produces rotation pairing seeds.
	SeedGenerator func() string
	// SlugSuffix produces the random part of fallback slugs.
	SlugSuffix func() string
	Now        func() time.Time
	Logger     *slog.Logger
	ListTTL    time.Duration
	RuntimeTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.IDGenerator == nil {
		o.IDGenerator = uuid.NewString
	}
	if o.SeedGenerator == nil {
		o.SeedGenerator = uuid.NewString
	}
	if o.SlugSuffix == nil {
		o.SlugSuffix = func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.Logger = defaultLogger(o.Logger)
	if o.ListTTL <= 0 {
		o.ListTTL = DefaultListTTL
	}
	if o.RuntimeTTL <= 0 {
		o.RuntimeTTL = DefaultRuntimeTTL
	}
	return o
}

// now returns the clock reading in UTC so persisted stamps sort lexically.
func (o Options) now() time.Time {
	return o.Now().UTC()
}

// invalidateSession clears cached views of the session after a committed write.
func invalidateSession(ctx context.Context, c cache.Cache, companyID, sessionID string) {
	cache.InvalidatePrefixes(ctx, c, invalidationPrefixes(companyID, sessionID)...)
}
