package builtin

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/settings"
)

const (
	maxCategoryName = 100
	maxPrefix       = 32
)

func category(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		if deps.Store == nil {
			return commands.Descriptor{}, errors.New("category: store is required")
		}
		return commands.Descriptor{
			Name:        "category",
			Description: "Creates a ticket category and assigns its staff roles",
			Aliases:     []string{"cat"},
			Mode:        commands.ModeNamed,
			Args: []commands.Arg{
				{Name: "name", Required: true, Example: "Support", Description: "Category name"},
				{Name: "roles", Example: "123456, 234567", Description: "Comma separated staff role ids or mentions"},
			},
			Permissions: []commands.Permission{commands.PermissionManageGuild},
			Internal:    true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				t := translator(inv)
				f := inv.Formatter()

				name, _ := inv.Args.Get("name")
				name = strings.TrimSpace(name)
				if n := utf8.RuneCountInString(name); n == 0 || n > maxCategoryName {
					return inv.Reply(ctx, f.Failure(t("category.error.title"), t("category.invalid_name")))
				}
				raw, _ := inv.Args.Get("roles")

				cat, err := deps.Store.CreateCategory(ctx, inv.Message.GuildID, name, splitRoles(raw))
				if errors.Is(err, settings.ErrCategoryExists) {
					return inv.Reply(ctx, f.Failure(t("category.error.title"), t("category.exists", name)))
				}
				if err != nil {
					return err
				}
				return inv.Reply(ctx, f.Success(
					t("category.created.title"),
					t("category.created.description", cat.Name, len(cat.Roles)),
				))
			},
		}, nil
	}
}

func categories(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		if deps.Store == nil {
			return commands.Descriptor{}, errors.New("categories: store is required")
		}
		return commands.Descriptor{
			Name:        "categories",
			Description: "Lists ticket categories and their staff roles",
			StaffOnly:   true,
			Internal:    true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				t := translator(inv)
				list, err := deps.Store.ListCategories(ctx, inv.Message.GuildID)
				if err != nil {
					return err
				}
				p := inv.Formatter().Success(t("categories.title"), "")
				if len(list) == 0 {
					p.Description = t("categories.empty")
				}
				for _, c := range list {
					value := t("categories.no_roles")
					if len(c.Roles) > 0 {
						value = "`" + strings.Join(c.Roles, "`, `") + "`"
					}
					p.Fields = append(p.Fields, commands.Field{Name: c.Name, Value: value})
				}
				return inv.Reply(ctx, p)
			},
		}, nil
	}
}

func settingsCommand(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		if deps.Store == nil {
			return commands.Descriptor{}, errors.New("settings: store is required")
		}
		return commands.Descriptor{
			Name:        "settings",
			Description: "Shows or changes the command prefix and locale",
			Mode:        commands.ModeNamed,
			Args: []commands.Arg{
				{Name: "prefix", Example: "!", Description: "New command prefix"},
				{Name: "locale", Example: "en-GB", Description: "New response language"},
			},
			Permissions: []commands.Permission{commands.PermissionManageGuild},
			Internal:    true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				t := translator(inv)
				f := inv.Formatter()

				var patch settings.Patch
				if v, ok := inv.Args.Get("prefix"); ok {
					v = strings.TrimSpace(v)
					if !validPrefix(v) {
						return inv.Reply(ctx, f.Failure(t("settings.error.title"), t("settings.invalid_prefix")))
					}
					patch.Prefix = &v
				}
				if v, ok := inv.Args.Get("locale"); ok {
					v = strings.TrimSpace(v)
					if deps.Locales != nil && !deps.Locales.Supports(v) {
						supported := strings.Join(deps.Locales.Locales(), ", ")
						return inv.Reply(ctx, f.Failure(t("settings.error.title"), t("settings.invalid_locale", v, supported)))
					}
					patch.Locale = &v
				}

				current, err := deps.Store.Update(ctx, inv.Message.GuildID, patch)
				if err != nil {
					return err
				}
				return inv.Reply(ctx, f.Success(
					t("settings.title"),
					t("settings.description", current.CommandPrefix, current.Locale),
				))
			},
		}, nil
	}
}

func validPrefix(p string) bool {
	n := utf8.RuneCountInString(p)
	return n > 0 && n <= maxPrefix && strings.IndexFunc(p, unicode.IsSpace) < 0
}

// splitRoles parses a comma separated list of role ids. Role mentions (<@&id>) are reduced to the id.
func splitRoles(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "<@&") && strings.HasSuffix(part, ">") {
			part = part[3 : len(part)-1]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
