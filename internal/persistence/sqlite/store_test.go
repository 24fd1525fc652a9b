package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/speednet/internal/persistence"
	"github.com/example/speednet/internal/persistence/persistencetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "speednet.db")
	store, err := Open(context.Background(), dsn, DefaultOptions(), nil)
	require.NoError(t, err, "open store")
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.Migrate(context.Background()), "migrate")
	return store
}

func TestStore(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	early := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	late := early.Add(time.Nanosecond)

	a, b := formatTime(early), formatTime(late)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := parseTime(a)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(early))
}

func TestWithPragmas(t *testing.T) {
	dsn := withPragmas("file:test.db?mode=rwc", DefaultOptions())
	assert.Contains(t, dsn, "mode=rwc&")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "busy_timeout%285000%29")

	custom := withPragmas("test.db?_txlock=deferred", Options{})
	assert.NotContains(t, custom, "_txlock=immediate")
}

func TestEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ", DefaultOptions(), nil)
	require.Error(t, err)
}
