package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/ticketbot/core/commands"

	tele "gopkg.in/telebot.v4"
)

type recordingHandler struct {
	got []*tele.Message
	err error
}

func (h *recordingHandler) HandleMessage(_ context.Context, m *tele.Message) (commands.Result, error) {
	h.got = append(h.got, m)
	return commands.Result{Outcome: commands.OutcomeExecuted, Command: &commands.Descriptor{Name: "Ping"}, Token: "p"}, h.err
}

func TestTextRoutesSwallowDispatchErrors(t *testing.T) {
	h := &recordingHandler{err: errors.New("settings unavailable")}
	routes := TextRoutes(h)
	require.NotEmpty(t, routes)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)

	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	msg := &tele.Message{ID: 1, Text: "-ping", Chat: &tele.Chat{ID: 1, Type: tele.ChatGroup}}
	c := b.NewContext(tele.Update{Message: msg})

	for _, r := range routes {
		require.NoError(t, r.Handler(c))
	}
	assert.Len(t, h.got, len(routes))
	assert.Same(t, msg, h.got[0])
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "DUPLICATE_COMMAND", deriveErrorCode(&commands.DuplicateCommandError{Name: "x"}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "open_ticket", normalizeHandlerName("/Open Ticket"))
}
