package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/ticketbot/core/commands"
)

// permissionBits maps permission tokens to Discord permission flags.
var permissionBits = map[commands.Permission]int64{
	commands.PermissionAdministrator:   discordgo.PermissionAdministrator,
	commands.PermissionManageGuild:     discordgo.PermissionManageGuild,
	commands.PermissionManageChannels:  discordgo.PermissionManageChannels,
	commands.PermissionManageMessages:  discordgo.PermissionManageMessages,
	commands.PermissionManageRoles:     discordgo.PermissionManageRoles,
	commands.PermissionKickMembers:     discordgo.PermissionKickMembers,
	commands.PermissionBanMembers:      discordgo.PermissionBanMembers,
	commands.PermissionCreateInvite:    discordgo.PermissionCreateInstantInvite,
	commands.PermissionPinMessages:     discordgo.PermissionManageMessages,
	commands.PermissionSendMessages:    discordgo.PermissionSendMessages,
	commands.PermissionViewChannel:     discordgo.PermissionViewChannel,
	commands.PermissionMentionEveryone: discordgo.PermissionMentionEveryone,
}

// PermissionsFromBits converts a Discord permission bitfield to tokens.
func PermissionsFromBits(bits int64) commands.PermissionSet {
	set := make(commands.PermissionSet)
	for token, bit := range permissionBits {
		if bits&bit == bit {
			set[token] = struct{}{}
		}
	}
	return set
}

// PermissionSource computes a member's effective permissions in a channel.
type PermissionSource interface {
	UserChannelPermissions(ctx context.Context, userID, channelID string) (int64, error)
}

// sessionPermissions reads from the gateway state cache and falls back to REST.
type sessionPermissions struct {
	s *discordgo.Session
}

func (p sessionPermissions) UserChannelPermissions(ctx context.Context, userID, channelID string) (int64, error) {
	if p.s.State != nil {
		if perms, err := p.s.State.UserChannelPermissions(userID, channelID); err == nil {
			return perms, nil
		}
	}
	return p.s.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
}

// memberAccess resolves one message author's permissions and roles lazily.
type memberAccess struct {
	source    PermissionSource
	userID    string
	channelID string
	roles     []string
}

func (a memberAccess) Permissions(ctx context.Context) (commands.PermissionSet, error) {
	bits, err := a.source.UserChannelPermissions(ctx, a.userID, a.channelID)
	if err != nil {
		return nil, fmt.Errorf("discord permissions for %s in %s: %w", a.userID, a.channelID, err)
	}
	return PermissionsFromBits(bits), nil
}

func (a memberAccess) Roles(context.Context) ([]string, error) {
	return a.roles, nil
}
