// Package testfixtures wires the application services against in-memory
// infrastructure with a controllable clock and deterministic identifiers.
package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/speednet/internal/application"
	"github.com/example/speednet/internal/cache"
	"github.com/example/speednet/internal/persistence"
	"github.com/example/speednet/internal/persistence/memory"
	"github.com/example/speednet/internal/persistence/sqlite"
)

// Harness bundles the services and their collaborators.
type Harness struct {
	Clock *Clock
	IDs   *Sequence
	Seeds *Sequence
	Store persistence.Store
	Cache *cache.Memory

	Sessions *application.SessionService
	Signups  *application.SignupService
	Cards    *application.CardService
}

// HarnessOption customises NewHarness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	store  persistence.Store
	logger *slog.Logger
	start  time.Time
}

// WithStore swaps the memory store for another implementation.
func WithStore(store persistence.Store) HarnessOption {
	return func(c *harnessConfig) {
		c.store = store
	}
}

// WithLogger routes service logs to logger instead of discarding them.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(c *harnessConfig) {
		c.logger = logger
	}
}

// WithStart sets the initial clock reading.
func WithStart(start time.Time) HarnessOption {
	return func(c *harnessConfig) {
		c.start = start
	}
}

// NewHarness builds services over a fresh memory store and memory cache.
func NewHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()

	cfg := harnessConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tb.Cleanup(func() {
		_ = cfg.store.Close()
	})

	h := &Harness{
		Clock: NewClock(cfg.start),
		IDs:   NewSequence("id"),
		Seeds: NewSequence("seed"),
		Store: cfg.store,
	}
	h.Cache = cache.NewMemory(256, h.Clock.NowFunc())

	options := h.Options()
	options.Logger = cfg.logger
	h.Sessions = application.NewSessionService(h.Store, h.Cache, options)
	h.Signups = application.NewSignupService(h.Store, h.Cache, options)
	h.Cards = application.NewCardService(h.Store, options)
	return h
}

// Options returns service options bound to the harness clock and sequences.
func (h *Harness) Options() application.Options {
	return application.Options{
		IDGenerator:   h.IDs.NextFunc(),
		SeedGenerator: h.Seeds.NextFunc(),
		SlugSuffix:    HexSuffix(),
		Now:           h.Clock.NowFunc(),
	}
}

// Host returns a principal scoped to the given workspaces.
func Host(actorID string, workspaceIDs ...string) application.Principal {
	return application.Principal{ActorID: actorID, WorkspaceIDs: workspaceIDs}
}

// NewSQLiteStore opens a migrated SQLite store in a temporary directory.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(tb.TempDir(), "speednet.db"), sqlite.DefaultOptions(), nil)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("migrate sqlite store: %v", err)
	}
	return store
}
