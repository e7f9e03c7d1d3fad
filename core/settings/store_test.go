package settings

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/ticketbot/core/database"
)

var testDefaults = Defaults{Prefix: "-", Locale: "en-GB", ErrorColour: 0xE74C3C, SuccessColour: 0x2ECC71}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}
	require.NoError(t, database.Normalize(&cfg))
	require.NoError(t, database.RunMigrations(context.Background(), cfg))
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, testDefaults)
}

func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite": newSQLiteStore(t),
		"memory": NewMemory(testDefaults),
	}
}

func strPtr(s string) *string { return &s }

func TestSettingsLifecycle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := repo.Get(ctx, "g1")
			require.NoError(t, err)
			assert.False(t, ok)

			created, err := repo.Create(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, "g1", created.GuildID)
			assert.Equal(t, "-", created.CommandPrefix)
			assert.Equal(t, "en-GB", created.Locale)
			assert.Equal(t, 0xE74C3C, created.ErrorColour)

			again, err := repo.Create(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, created, again)

			updated, err := repo.Update(ctx, "g1", Patch{Prefix: strPtr("!")})
			require.NoError(t, err)
			assert.Equal(t, "!", updated.CommandPrefix)
			assert.Equal(t, "en-GB", updated.Locale)

			got, ok, err := repo.Get(ctx, "g1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, updated, got)
		})
	}
}

func TestUpdateCreatesMissingRow(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s, err := repo.Update(context.Background(), "fresh", Patch{Locale: strPtr("de")})
			require.NoError(t, err)
			assert.Equal(t, "de", s.Locale)
			assert.Equal(t, "-", s.CommandPrefix)
		})
	}
}

func TestCategories(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cat, err := repo.CreateCategory(ctx, "g1", "support", []string{"r2", "r1", "r2", " "})
			require.NoError(t, err)
			assert.NotEmpty(t, cat.ID)
			assert.Equal(t, []string{"r1", "r2"}, cat.Roles)

			_, err = repo.CreateCategory(ctx, "g1", "billing", nil)
			require.NoError(t, err)

			_, err = repo.CreateCategory(ctx, "g1", "support", []string{"r3"})
			require.ErrorIs(t, err, ErrCategoryExists)

			_, err = repo.CreateCategory(ctx, "g2", "support", nil)
			require.NoError(t, err, "names are unique per guild only")

			list, err := repo.ListCategories(ctx, "g1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "billing", list[0].Name)
			assert.Empty(t, list[0].Roles)
			assert.Equal(t, "support", list[1].Name)
			assert.Equal(t, []string{"r1", "r2"}, list[1].Roles)

			empty, err := repo.ListCategories(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestConcurrentCreateConverges(t *testing.T) {
	repo := NewMemory(testDefaults)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), "g1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, repo.guilds, 1)
}
