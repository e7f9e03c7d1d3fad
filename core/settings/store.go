package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/logger"
)

type settingsRow struct {
	GuildID       string `db:"guild_id"`
	CommandPrefix string `db:"command_prefix"`
	Locale        string `db:"locale"`
	ErrorColour   int    `db:"error_colour"`
	SuccessColour int    `db:"success_colour"`
}

func (r settingsRow) settings() commands.Settings {
	return commands.Settings{
		GuildID:       r.GuildID,
		CommandPrefix: r.CommandPrefix,
		Locale:        r.Locale,
		ErrorColour:   r.ErrorColour,
		SuccessColour: r.SuccessColour,
	}
}

type categoryRoleRow struct {
	ID      string         `db:"id"`
	GuildID string         `db:"guild_id"`
	Name    string         `db:"name"`
	RoleID  sql.NullString `db:"role_id"`
}

// Store is the SQL-backed Repository. Queries are written with ? placeholders and
// rebound for the connected driver.
type Store struct {
	db       *sqlx.DB
	defaults Defaults
}

var _ Repository = (*Store)(nil)

// NewStore wraps an open connection.
func NewStore(db *sqlx.DB, defaults Defaults) *Store {
	return &Store{db: db, defaults: defaults}
}

// Get loads the settings row for guildID.
func (s *Store) Get(ctx context.Context, guildID string) (commands.Settings, bool, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT guild_id, command_prefix, locale, error_colour, success_colour
		   FROM guild_settings WHERE guild_id = ?`), guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return commands.Settings{}, false, nil
	}
	if err != nil {
		return commands.Settings{}, false, fmt.Errorf("select guild settings: %w", err)
	}
	return row.settings(), true, nil
}

// Create inserts the default row for guildID. Concurrent creators converge on one row.
func (s *Store) Create(ctx context.Context, guildID string) (commands.Settings, error) {
	def := s.defaults.settings(guildID)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO guild_settings (guild_id, command_prefix, locale, error_colour, success_colour)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guild_id) DO NOTHING`),
		def.GuildID, def.CommandPrefix, def.Locale, def.ErrorColour, def.SuccessColour)
	if err != nil {
		return commands.Settings{}, fmt.Errorf("insert guild settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "settings.created",
			slog.String("guild_id", guildID),
			slog.String("prefix", def.CommandPrefix),
			slog.String("locale", def.Locale),
		)
	}
	out, ok, err := s.Get(ctx, guildID)
	if err != nil {
		return commands.Settings{}, err
	}
	if !ok {
		return commands.Settings{}, fmt.Errorf("guild settings for %s vanished after insert", guildID)
	}
	return out, nil
}

// Update applies patch, creating the row first when needed.
func (s *Store) Update(ctx context.Context, guildID string, patch Patch) (commands.Settings, error) {
	if _, err := s.Create(ctx, guildID); err != nil {
		return commands.Settings{}, err
	}
	if !patch.Empty() {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(
			`UPDATE guild_settings
			    SET command_prefix = COALESCE(?, command_prefix),
			        locale = COALESCE(?, locale),
			        updated_at = CURRENT_TIMESTAMP
			  WHERE guild_id = ?`),
			patch.Prefix, patch.Locale, guildID)
		if err != nil {
			return commands.Settings{}, fmt.Errorf("update guild settings: %w", err)
		}
	}
	out, _, err := s.Get(ctx, guildID)
	return out, err
}

// ListCategories returns the guild's categories ordered by name, each with its roles.
func (s *Store) ListCategories(ctx context.Context, guildID string) ([]commands.Category, error) {
	var rows []categoryRoleRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT c.id, c.guild_id, c.name, r.role_id
		   FROM categories c
		   LEFT JOIN category_roles r ON r.category_id = c.id
		  WHERE c.guild_id = ?
		  ORDER BY c.name, r.role_id`), guildID)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}

	var out []commands.Category
	for _, row := range rows {
		if n := len(out); n == 0 || out[n-1].ID != row.ID {
			out = append(out, commands.Category{ID: row.ID, GuildID: row.GuildID, Name: row.Name})
		}
		if row.RoleID.Valid {
			last := &out[len(out)-1]
			last.Roles = append(last.Roles, row.RoleID.String)
		}
	}
	return out, nil
}

// CreateCategory stores a new category with its staff roles.
func (s *Store) CreateCategory(ctx context.Context, guildID, name string, roles []string) (commands.Category, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return commands.Category{}, fmt.Errorf("begin category tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(
		`SELECT COUNT(*) FROM categories WHERE guild_id = ? AND name = ?`), guildID, name); err != nil {
		return commands.Category{}, fmt.Errorf("check category: %w", err)
	}
	if count > 0 {
		return commands.Category{}, ErrCategoryExists
	}

	cat := commands.Category{ID: uuid.NewString(), GuildID: guildID, Name: name, Roles: uniqueRoles(roles)}
	sort.Strings(cat.Roles)
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO categories (id, guild_id, name) VALUES (?, ?, ?)`), cat.ID, guildID, name); err != nil {
		return commands.Category{}, fmt.Errorf("insert category: %w", err)
	}
	for _, role := range cat.Roles {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO category_roles (category_id, role_id) VALUES (?, ?)`), cat.ID, role); err != nil {
			return commands.Category{}, fmt.Errorf("insert category role: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return commands.Category{}, fmt.Errorf("commit category: %w", err)
	}

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "category.created",
		slog.String("guild_id", guildID),
		slog.String("name", name),
		slog.Int("count", len(cat.Roles)),
	)
	return cat, nil
}
