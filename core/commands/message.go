package commands

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Permission is a platform permission token such as KICK_MEMBERS.
type Permission string

const (
	PermissionAdministrator   Permission = "ADMINISTRATOR"
	PermissionManageGuild     Permission = "MANAGE_GUILD"
	PermissionManageChannels  Permission = "MANAGE_CHANNELS"
	PermissionManageMessages  Permission = "MANAGE_MESSAGES"
	PermissionManageRoles     Permission = "MANAGE_ROLES"
	PermissionKickMembers     Permission = "KICK_MEMBERS"
	PermissionBanMembers      Permission = "BAN_MEMBERS"
	PermissionCreateInvite    Permission = "CREATE_INSTANT_INVITE"
	PermissionPinMessages     Permission = "PIN_MESSAGES"
	PermissionSendMessages    Permission = "SEND_MESSAGES"
	PermissionViewChannel     Permission = "VIEW_CHANNEL"
	PermissionMentionEveryone Permission = "MENTION_EVERYONE"
)

// PermissionSet is the set of tokens an actor holds in the current guild.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given tokens.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is held. ADMINISTRATOR implies every permission.
func (s PermissionSet) Has(p Permission) bool {
	if _, ok := s[PermissionAdministrator]; ok {
		return true
	}
	_, ok := s[p]
	return ok
}

// Missing returns the required tokens that are not held, in declaration order.
func (s PermissionSet) Missing(required []Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// AccessResolver answers permission and role queries for one actor in one guild.
type AccessResolver interface {
	Permissions(ctx context.Context) (PermissionSet, error)
	Roles(ctx context.Context) ([]string, error)
}

// StaticAccess is an AccessResolver over precomputed values.
type StaticAccess struct {
	Perms   PermissionSet
	RoleIDs []string
}

// Permissions returns the precomputed set.
func (a StaticAccess) Permissions(context.Context) (PermissionSet, error) { return a.Perms, nil }

// Roles returns the precomputed role ids.
func (a StaticAccess) Roles(context.Context) ([]string, error) { return a.RoleIDs, nil }

// Actor is the author of an inbound message.
type Actor struct {
	ID     string
	Tag    string
	Access AccessResolver
}

// Field is one titled section of a Payload.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Payload is the renderable response structure consumed by platform adapters.
type Payload struct {
	Colour      int
	Title       string
	Description string
	Fields      []Field
}

// Responder delivers payloads to the channel a message came from.
type Responder interface {
	Send(ctx context.Context, p Payload) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, p Payload) error

// Send calls f.
func (f ResponderFunc) Send(ctx context.Context, p Payload) error { return f(ctx, p) }

// Message is a platform-neutral inbound chat message.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	Content   string
	Timestamp time.Time
	Author    Actor
	Channel   Responder
	// Admit, when set, is asked once the command is resolved. A false result
	// drops the message without a reply.
	Admit func(cmd *Descriptor) bool
}

// Settings are the per-guild values the dispatcher needs.
type Settings struct {
	GuildID       string
	CommandPrefix string
	Locale        string
	ErrorColour   int
	SuccessColour int
}

// Category is a ticket category; only its roles matter for the staff gate.
type Category struct {
	ID      string
	GuildID string
	Name    string
	Roles   []string
}

// SettingsProvider loads and lazily creates guild settings.
type SettingsProvider interface {
	Get(ctx context.Context, guildID string) (Settings, bool, error)
	Create(ctx context.Context, guildID string) (Settings, error)
}

// CategoryProvider lists the categories registered for a guild.
type CategoryProvider interface {
	ListCategories(ctx context.Context, guildID string) ([]Category, error)
}

// Translator renders a localized string for key.
type Translator func(key string, args ...any) string

// Localizer resolves the translator for a locale.
type Localizer interface {
	Resolve(locale string) Translator
}

// PluginInfo names the commands an external provider declares.
type PluginInfo struct {
	Name     string
	Commands []string
}

// PluginIndex exposes loaded plugins for override attribution.
type PluginIndex interface {
	Plugins() []PluginInfo
}

// KeyTranslator renders the key followed by its arguments. Used when no Localizer is configured.
func KeyTranslator(key string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, key)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}
