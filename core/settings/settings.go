// Package settings persists per-guild settings and ticket categories.
package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/ticketbot/core/commands"
)

// ErrCategoryExists is returned when a guild already has a category with the same name.
var ErrCategoryExists = errors.New("settings: category already exists")

// Defaults seeds settings rows created on first contact with a guild.
type Defaults struct {
	Prefix        string
	Locale        string
	ErrorColour   int
	SuccessColour int
}

// Patch carries optional updates; nil fields are left unchanged.
type Patch struct {
	Prefix *string
	Locale *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Prefix == nil && p.Locale == nil
}

// Repository is the full storage surface used by the dispatcher and built-in commands.
type Repository interface {
	commands.SettingsProvider
	commands.CategoryProvider
	Update(ctx context.Context, guildID string, patch Patch) (commands.Settings, error)
	CreateCategory(ctx context.Context, guildID, name string, roles []string) (commands.Category, error)
}

func (d Defaults) settings(guildID string) commands.Settings {
	return commands.Settings{
		GuildID:       guildID,
		CommandPrefix: d.Prefix,
		Locale:        d.Locale,
		ErrorColour:   d.ErrorColour,
		SuccessColour: d.SuccessColour,
	}
}

func uniqueRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
