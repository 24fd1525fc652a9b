package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrate applies every pending schema migration.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool, s.logger)
}

// Migrate applies pending migrations to the pool's database and logs each
// applied version.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	migrations, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: load migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, pool.DB(), migrations)
	if err != nil {
		return fmt.Errorf("sqlite: init migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	for _, result := range results {
		logger.InfoContext(ctx, "migration applied",
			"version", result.Source.Version,
			"path", result.Source.Path,
			"duration", result.Duration,
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	logger.InfoContext(ctx, "schema up to date", "version", version, "applied", len(results))
	return nil
}
