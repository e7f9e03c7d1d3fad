package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/ticketbot/core/commands"

	tele "gopkg.in/telebot.v4"
)

type call struct {
	msg     commands.Message
	token   string
	rawArgs string
	native  bool
}

type fakeDispatcher struct {
	calls []call
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg commands.Message) (commands.Result, error) {
	f.calls = append(f.calls, call{msg: msg})
	return commands.Result{Outcome: commands.OutcomeIgnored}, nil
}

func (f *fakeDispatcher) DispatchToken(_ context.Context, msg commands.Message, token, rawArgs string) (commands.Result, error) {
	f.calls = append(f.calls, call{msg: msg, token: token, rawArgs: rawArgs, native: true})
	return commands.Result{Outcome: commands.OutcomeExecuted}, nil
}

type fakeAPI struct {
	member  *tele.ChatMember
	err     error
	lookups int
	sent    []string
	opts    []interface{}
}

func (f *fakeAPI) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what.(string))
	f.opts = append(f.opts, opts...)
	return &tele.Message{}, nil
}

func (f *fakeAPI) ChatMemberOf(_, _ tele.Recipient) (*tele.ChatMember, error) {
	f.lookups++
	return f.member, f.err
}

func groupMessage(text string) *tele.Message {
	return &tele.Message{
		ID:       42,
		Unixtime: 1700000000,
		Text:     text,
		Chat:     &tele.Chat{ID: -100123, Type: tele.ChatSuperGroup},
		Sender:   &tele.User{ID: 7, Username: "alice"},
	}
}

func TestHandleMessageRouting(t *testing.T) {
	d := &fakeDispatcher{}
	h := &Handler{Dispatcher: d, API: &fakeAPI{}, Username: "ticket_bot"}
	ctx := context.Background()

	_, err := h.HandleMessage(ctx, groupMessage("-ping"))
	require.NoError(t, err)
	_, err = h.HandleMessage(ctx, groupMessage("/kick@Ticket_Bot target: 7;"))
	require.NoError(t, err)
	_, err = h.HandleMessage(ctx, groupMessage("/kick@other_bot target: 7;"))
	require.NoError(t, err)

	require.Len(t, d.calls, 2)
	first := d.calls[0]
	assert.False(t, first.native)
	assert.Equal(t, "-100123", first.msg.GuildID)
	assert.Equal(t, "-100123", first.msg.ChannelID)
	assert.Equal(t, "42", first.msg.ID)
	assert.Equal(t, "7", first.msg.Author.ID)
	assert.Equal(t, "@alice", first.msg.Author.Tag)
	assert.Equal(t, int64(1700000000), first.msg.Timestamp.Unix())

	second := d.calls[1]
	assert.True(t, second.native)
	assert.Equal(t, "kick", second.token)
	assert.Equal(t, " target: 7;", second.rawArgs)
}

func TestHandleMessageIgnores(t *testing.T) {
	d := &fakeDispatcher{}
	h := &Handler{Dispatcher: d, API: &fakeAPI{}}

	private := groupMessage("-ping")
	private.Chat.Type = tele.ChatPrivate
	bot := groupMessage("-ping")
	bot.Sender.IsBot = true
	empty := groupMessage("   ")

	for _, m := range []*tele.Message{nil, private, bot, empty} {
		res, err := h.HandleMessage(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, commands.OutcomeIgnored, res.Outcome)
	}
	assert.Empty(t, d.calls)
}

func TestHandleMessageUsesCaption(t *testing.T) {
	d := &fakeDispatcher{}
	h := &Handler{Dispatcher: d, API: &fakeAPI{}}
	m := groupMessage("")
	m.Caption = "-help"
	_, err := h.HandleMessage(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "-help", d.calls[0].msg.Content)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text, username string
		token, rest    string
		ok             bool
	}{
		{"/ping", "bot", "ping", "", true},
		{"/ping@bot", "bot", "ping", "", true},
		{"/ping@BOT hello", "bot", "ping", " hello", true},
		{"/ping@else", "bot", "", "", false},
		{"/ping@else", "", "ping", "", true},
		{"/", "bot", "", "", false},
		{"ping", "bot", "", "", false},
		{"/help\nkick", "", "help", "\nkick", true},
	}
	for _, tc := range cases {
		token, rest, ok := ParseCommand(tc.text, tc.username)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.token, token, tc.text)
		assert.Equal(t, tc.rest, rest, tc.text)
	}
}

func TestChatAccess(t *testing.T) {
	api := &fakeAPI{member: &tele.ChatMember{
		Role:   tele.Administrator,
		Title:  "support",
		Rights: tele.Rights{CanRestrictMembers: true, CanPinMessages: true},
	}}
	a := newChatAccess(api, &tele.Chat{ID: 1}, &tele.User{ID: 2})

	perms, err := a.Permissions(context.Background())
	require.NoError(t, err)
	assert.True(t, perms.Has(commands.PermissionKickMembers))
	assert.True(t, perms.Has(commands.PermissionBanMembers))
	assert.True(t, perms.Has(commands.PermissionPinMessages))
	assert.False(t, perms.Has(commands.PermissionManageGuild))

	roles, err := a.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"administrator", "support"}, roles)
	assert.Equal(t, 1, api.lookups, "member is fetched once per message")

	failing := newChatAccess(&fakeAPI{err: errors.New("chat not found")}, &tele.Chat{ID: 1}, &tele.User{ID: 2})
	_, err = failing.Permissions(context.Background())
	require.Error(t, err)
}

func TestPermissionsFromMember(t *testing.T) {
	creator := PermissionsFromMember(&tele.ChatMember{Role: tele.Creator})
	assert.True(t, creator.Has(commands.PermissionBanMembers))

	member := PermissionsFromMember(&tele.ChatMember{Role: tele.Member})
	assert.True(t, member.Has(commands.PermissionSendMessages))
	assert.False(t, member.Has(commands.PermissionKickMembers))

	assert.Empty(t, PermissionsFromMember(&tele.ChatMember{Role: tele.Left}))
	assert.Empty(t, PermissionsFromMember(nil))
}

func TestResponderRendersHTML(t *testing.T) {
	api := &fakeAPI{}
	h := &Handler{API: api}
	err := h.responder(&tele.Chat{ID: 1}).Send(context.Background(), commands.Payload{
		Title:       "Usage <kick>",
		Description: "a & b",
		Fields:      []commands.Field{{Name: "target", Value: "required"}},
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "<b>Usage &lt;kick&gt;</b>\n\na &amp; b\n\n<b>target</b>\nrequired", api.sent[0])
	require.Len(t, api.opts, 1)
	assert.Equal(t, tele.ModeHTML, api.opts[0].(*tele.SendOptions).ParseMode)
}

func TestRenderLimit(t *testing.T) {
	p := commands.Payload{Title: "t"}
	for i := 0; i < 10; i++ {
		p.Fields = append(p.Fields, commands.Field{Name: "n", Value: strings.Repeat("v", 1024)})
	}
	out := Render(p)
	assert.LessOrEqual(t, len([]rune(out)), maxMessage)
	assert.True(t, strings.HasSuffix(out, "\n…"))
}

func TestMenuCommands(t *testing.T) {
	reg := commands.NewRegistry(commands.RegistryOptions{})
	noop := func(context.Context, *commands.Invocation) error { return nil }
	for _, d := range []commands.Descriptor{
		{Name: "ping", Description: "Latency", Execute: noop},
		{Name: "kick", Description: "Kick", Permissions: []commands.Permission{commands.PermissionKickMembers}, Execute: noop},
		{Name: "staff", Description: "Staff", StaffOnly: true, Execute: noop},
		{Name: "Bad-Name", Execute: noop},
		{Name: "about", Execute: noop},
	} {
		require.NoError(t, reg.Register(d))
	}

	menu := MenuCommands(reg)
	require.Len(t, menu, 2)
	assert.Equal(t, tele.Command{Text: "ping", Description: "Latency"}, menu[0])
	assert.Equal(t, tele.Command{Text: "about", Description: "about"}, menu[1])
}

type fakeMenu struct {
	got []interface{}
	err error
}

func (f *fakeMenu) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestSetupCommands(t *testing.T) {
	reg := commands.NewRegistry(commands.RegistryOptions{})
	require.NoError(t, reg.Register(commands.Descriptor{Name: "ping", Execute: func(context.Context, *commands.Invocation) error { return nil }}))

	m := &fakeMenu{}
	SetupCommands(context.Background(), m, reg)
	require.Len(t, m.got, 1)
	assert.Len(t, m.got[0], 1)

	SetupCommands(context.Background(), &fakeMenu{err: errors.New("unauthorized")}, reg)
}
