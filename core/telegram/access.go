package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/ticketbot/core/commands"

	tele "gopkg.in/telebot.v4"
)

// PermissionsFromMember maps a chat member's status and admin rights to permission tokens.
// The chat creator holds ADMINISTRATOR.
func PermissionsFromMember(m *tele.ChatMember) commands.PermissionSet {
	set := make(commands.PermissionSet)
	if m == nil {
		return set
	}
	grant := func(ok bool, perms ...commands.Permission) {
		if !ok {
			return
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}

	switch m.Role {
	case tele.Creator:
		grant(true, commands.PermissionAdministrator)
	case tele.Administrator:
		grant(true, commands.PermissionSendMessages, commands.PermissionViewChannel, commands.PermissionMentionEveryone)
		grant(m.CanChangeInfo, commands.PermissionManageGuild)
		grant(m.CanManageChat, commands.PermissionManageChannels)
		grant(m.CanDeleteMessages, commands.PermissionManageMessages)
		grant(m.CanPromoteMembers, commands.PermissionManageRoles)
		grant(m.CanRestrictMembers, commands.PermissionKickMembers, commands.PermissionBanMembers)
		grant(m.CanInviteUsers, commands.PermissionCreateInvite)
		grant(m.CanPinMessages, commands.PermissionPinMessages)
	case tele.Member:
		grant(true, commands.PermissionSendMessages, commands.PermissionViewChannel)
	case tele.Restricted:
		grant(true, commands.PermissionViewChannel)
		grant(m.CanSendMessages, commands.PermissionSendMessages)
	}
	return set
}

// RolesFromMember returns the member status and, when set, the custom admin title.
// Staff categories reference these values as role ids.
func RolesFromMember(m *tele.ChatMember) []string {
	if m == nil {
		return nil
	}
	roles := []string{string(m.Role)}
	if m.Title != "" {
		roles = append(roles, m.Title)
	}
	return roles
}

// chatAccess fetches the member record once per message and answers both queries from it.
type chatAccess struct {
	api  API
	chat *tele.Chat
	user *tele.User

	once   sync.Once
	member *tele.ChatMember
	err    error
}

func newChatAccess(api API, chat *tele.Chat, user *tele.User) *chatAccess {
	return &chatAccess{api: api, chat: chat, user: user}
}

func (a *chatAccess) load() (*tele.ChatMember, error) {
	a.once.Do(func() {
		if a.api == nil {
			a.err = fmt.Errorf("telegram: no api to resolve member %d", a.user.ID)
			return
		}
		a.member, a.err = a.api.ChatMemberOf(a.chat, a.user)
		if a.err != nil {
			a.err = fmt.Errorf("telegram member %d in %d: %w", a.user.ID, a.chat.ID, a.err)
		}
	})
	return a.member, a.err
}

func (a *chatAccess) Permissions(context.Context) (commands.PermissionSet, error) {
	m, err := a.load()
	if err != nil {
		return nil, err
	}
	return PermissionsFromMember(m), nil
}

func (a *chatAccess) Roles(context.Context) ([]string, error) {
	m, err := a.load()
	if err != nil {
		return nil, err
	}
	return RolesFromMember(m), nil
}
