package builtin

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/i18n"
	"github.com/m3rciful/ticketbot/core/settings"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	store *settings.Memory
	reg   *commands.Registry
	disp  *commands.Dispatcher

	mu   sync.Mutex
	sent []commands.Payload
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	quiet := slog.New(slog.DiscardHandler)
	bundle, err := i18n.Load("en-GB")
	require.NoError(t, err)

	h := &harness{
		t:     t,
		store: settings.NewMemory(settings.Defaults{Prefix: "-", Locale: "en-GB", ErrorColour: 0xE74C3C, SuccessColour: 0x2ECC71}),
		reg:   commands.NewRegistry(commands.RegistryOptions{Logger: quiet}),
	}
	units := Units(Deps{Registry: h.reg, Store: h.store, Locales: bundle, Now: func() time.Time { return testNow }})
	require.Equal(t, len(units), h.reg.Load(context.Background(), units...))

	h.disp, err = commands.NewDispatcher(commands.DispatcherOptions{
		Registry:   h.reg,
		Settings:   h.store,
		Localizer:  bundle,
		Categories: h.store,
		Logger:     quiet,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) send(content string, access commands.StaticAccess) commands.Result {
	h.t.Helper()
	msg := commands.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Timestamp: testNow.Add(-42 * time.Millisecond),
		Author:    commands.Actor{ID: "u1", Tag: "user#1", Access: access},
		Channel: commands.ResponderFunc(func(_ context.Context, p commands.Payload) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, p)
			return nil
		}),
	}
	res, err := h.disp.Dispatch(context.Background(), msg)
	require.NoError(h.t, err)
	return res
}

func (h *harness) last() commands.Payload {
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(h.t, h.sent)
	return h.sent[len(h.sent)-1]
}

var admin = commands.StaticAccess{Perms: commands.NewPermissionSet(commands.PermissionAdministrator)}

func TestPing(t *testing.T) {
	h := newHarness(t)
	res := h.send("-ping", commands.StaticAccess{})
	assert.Equal(t, commands.OutcomeExecuted, res.Outcome)
	assert.Equal(t, "Round trip took 42 ms.", h.last().Description)
	assert.Equal(t, 0x2ECC71, h.last().Colour)
}

func TestHelpListsAndExplains(t *testing.T) {
	h := newHarness(t)

	h.send("-help", commands.StaticAccess{})
	p := h.last()
	assert.Equal(t, "Commands", p.Title)
	require.Len(t, p.Fields, 6)
	assert.Equal(t, "`-help`", p.Fields[0].Name)

	h.send("-h cat", commands.StaticAccess{})
	p = h.last()
	assert.Equal(t, "Usage: cat", p.Title)
	assert.Equal(t, 0x2ECC71, p.Colour)

	h.send("-help nope", commands.StaticAccess{})
	assert.Equal(t, "There is no command called `nope`.", h.last().Description)
	assert.Equal(t, 0xE74C3C, h.last().Colour)
}

func TestAboutCountsCommands(t *testing.T) {
	h := newHarness(t)
	h.send("-about", commands.StaticAccess{})
	p := h.last()
	require.Len(t, p.Fields, 1)
	assert.Equal(t, "6", p.Fields[0].Value)
}

func TestCategoryRequiresManageGuild(t *testing.T) {
	h := newHarness(t)
	res := h.send("-category name: Support;", commands.StaticAccess{})
	assert.Equal(t, commands.OutcomePermissionDenied, res.Outcome)

	list, err := h.store.ListCategories(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCategoryCreateAndList(t *testing.T) {
	h := newHarness(t)
	manager := commands.StaticAccess{Perms: commands.NewPermissionSet(commands.PermissionManageGuild)}

	res := h.send("-category name: Support; roles: <@&111>, 222;", manager)
	require.Equal(t, commands.OutcomeExecuted, res.Outcome)
	assert.Equal(t, "Category `Support` was created with 2 staff role(s).", h.last().Description)

	h.send("-category name: Support;", manager)
	assert.Equal(t, "A category called `Support` already exists.", h.last().Description)

	res = h.send("-categories", commands.StaticAccess{RoleIDs: []string{"999"}})
	assert.Equal(t, commands.OutcomeStaffOnlyDenied, res.Outcome)

	res = h.send("-categories", commands.StaticAccess{RoleIDs: []string{"222"}})
	require.Equal(t, commands.OutcomeExecuted, res.Outcome)
	p := h.last()
	require.Len(t, p.Fields, 1)
	assert.Equal(t, "Support", p.Fields[0].Name)
	assert.Equal(t, "`111`, `222`", p.Fields[0].Value)
}

func TestCategoryMissingNameShowsUsage(t *testing.T) {
	h := newHarness(t)
	res := h.send("-category roles: 1;", admin)
	assert.Equal(t, commands.OutcomeUsage, res.Outcome)
}

func TestSettingsCommand(t *testing.T) {
	h := newHarness(t)

	res := h.send("-settings prefix: !; locale: de;", admin)
	require.Equal(t, commands.OutcomeExecuted, res.Outcome)
	assert.Equal(t, "Prefix: `!`\nLocale: `de`", h.last().Description)

	s, ok, err := h.store.Get(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "!", s.CommandPrefix)

	res = h.send("-ping", admin)
	assert.Equal(t, commands.OutcomeIgnored, res.Outcome, "old prefix no longer matches")

	h.send("!settings locale: xx-nope;", admin)
	assert.Contains(t, h.last().Description, "`xx-nope` ist keine unterstützte Sprache.", "responses follow the new locale")

	h.send("!settings prefix: a b;", admin)
	assert.Equal(t, 0xE74C3C, h.last().Colour)

	s, _, _ = h.store.Get(context.Background(), "g1")
	assert.Equal(t, "!", s.CommandPrefix)
	assert.Equal(t, "de", s.Locale)
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, splitRoles(" 1, <@&2>,,3 "))
	assert.Empty(t, splitRoles(""))
}

func TestUnitsRequireDeps(t *testing.T) {
	reg := commands.NewRegistry(commands.RegistryOptions{Logger: slog.New(slog.DiscardHandler)})
	loaded := reg.Load(context.Background(), Units(Deps{})...)
	assert.Equal(t, 2, loaded, "only ping and about load without a registry and store")
}
