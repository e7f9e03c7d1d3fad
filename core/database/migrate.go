package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/ticketbot/core/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationURL returns the golang-migrate database URL for cfg.
func MigrationURL(cfg Config) (string, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgresURL(cfg, "postgres"), nil
	case DriverSQLite:
		return "sqlite://" + cfg.Path, nil
	default:
		return "", fmt.Errorf("migrations are not supported for driver %q", cfg.Driver)
	}
}

// RunMigrations applies every embedded up migration that the database has not seen yet.
// The memory driver has no schema and returns immediately.
func RunMigrations(ctx context.Context, cfg Config) error {
	if cfg.Driver == DriverMemory {
		return nil
	}
	dbURL, err := MigrationURL(cfg)
	if err != nil {
		return err
	}

	files := upMigrations(migrationsFS)
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("driver", cfg.Driver),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate.close",
				slog.String("err", err.Error()),
			)
		}
	}()

	// Up is not context aware; a cancelled ctx stops it between migrations.
	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	from := version(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("driver", cfg.Driver),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to := version(m)

	applied := appliedBetween(files, from, to)
	preview, truncated := logger.SummarizeStrings(applied, 6)
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "db.migrate",
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("count", len(applied)),
		slog.String("files", preview),
		slog.Bool("truncated", truncated),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// version treats a fresh database as version 0.
func version(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func upMigrations(fsys fs.FS) []string {
	names, err := fs.Glob(fsys, migrationsDir+"/*.up.sql")
	if err != nil {
		return nil
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, migrationsDir+"/")
	}
	slices.Sort(names)
	return names
}

// appliedBetween lists migration files with a version in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
