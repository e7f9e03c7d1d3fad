package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "ticketbot.db", cfg.Path)
	assert.Equal(t, 1, cfg.MaxConnections)

	pg := Config{Driver: " Postgres ", Host: "db", Name: "bot", User: "u", Password: "p@ss"}
	require.NoError(t, Normalize(&pg))
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Equal(t, 10, pg.MaxConnections)
	assert.Equal(t, "postgres://u:p%40ss@db:5432/bot?sslmode=disable", DSN(pg))

	require.Error(t, Normalize(&Config{Driver: DriverPostgres}))
	require.ErrorContains(t, Normalize(&Config{Driver: "mysql"}), "invalid database.driver")
}

func TestMigrationURL(t *testing.T) {
	u, err := MigrationURL(Config{Driver: DriverSQLite, Path: "/tmp/bot.db"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/bot.db", u)

	_, err = MigrationURL(Config{Driver: DriverMemory})
	assert.Error(t, err)
}

func TestAppliedBetween(t *testing.T) {
	files := upMigrations(migrationsFS)
	require.Equal(t, []string{"0001_guild_settings.up.sql", "0002_categories.up.sql"}, files)
	assert.Equal(t, []string{"0002_categories.up.sql"}, appliedBetween(files, 1, 2))
	assert.Empty(t, appliedBetween(files, 2, 2))
}

func TestMigrateAndConnectSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}
	require.NoError(t, Normalize(&cfg))
	require.NoError(t, RunMigrations(ctx, cfg))
	// A second run is a no-op.
	require.NoError(t, RunMigrations(ctx, cfg))

	db, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM categories"))
	assert.Zero(t, n)
}

func TestConnectRejectsMemory(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: DriverMemory})
	assert.Error(t, err)
	assert.NoError(t, RunMigrations(context.Background(), Config{Driver: DriverMemory}))
}
