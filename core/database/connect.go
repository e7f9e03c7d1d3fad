package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/ticketbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyInterval  = 2 * time.Second
)

// Normalize fills driver defaults and validates the driver name.
// An empty driver selects SQLite.
func Normalize(cfg *Config) error {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "", DriverSQLite:
		cfg.Driver = DriverSQLite
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = "ticketbot.db"
		}
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		cfg.MaxConnections = 1
	case DriverPostgres:
		if cfg.Host == "" || cfg.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		cfg.Port = orDefault(cfg.Port, "5432")
		cfg.SSLMode = orDefault(cfg.SSLMode, "disable")
		if cfg.MaxConnections <= 0 {
			cfg.MaxConnections = 10
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite, memory", cfg.Driver)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// DSN returns the database/sql data source name for cfg.
func DSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return postgresURL(cfg, "postgres")
}

func postgresURL(cfg Config, scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// Connect opens the pool and pings it. Postgres is retried until it accepts
// connections or the ready timeout passes, so the bot can start alongside its database.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.Driver == DriverMemory {
		return nil, fmt.Errorf("db connect: driver %q has no SQL connection", cfg.Driver)
	}
	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("db", dbName(cfg)),
	}

	start := time.Now()
	db, err := open(ctx, cfg)
	if cfg.Driver == DriverPostgres && err != nil {
		db, err = waitReady(ctx, cfg, err)
	}
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", append(attrs,
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", append(attrs,
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

func open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	// ConnectContext pings before returning.
	return sqlx.ConnectContext(ctx, cfg.Driver, DSN(cfg))
}

func waitReady(ctx context.Context, cfg Config, lastErr error) (*sqlx.DB, error) {
	deadline := time.NewTimer(readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(readyInterval)
	defer tick.Stop()
	for {
		logger.LogEvent(ctx, logger.DB, slog.LevelWarn, "db.wait",
			slog.String("driver", cfg.Driver),
			slog.String("err", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("database not ready after %s: %w", readyTimeout, lastErr)
		case <-tick.C:
		}
		db, err := open(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
	}
}

func dbName(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path
	}
	return cfg.Name
}
