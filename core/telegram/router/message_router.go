// Package router binds Telegram update endpoints to the command handler.
package router

import (
	"context"

	"github.com/m3rciful/ticketbot/core/commands"
	tg "github.com/m3rciful/ticketbot/core/telegram"
	"github.com/m3rciful/ticketbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageHandler is implemented by *telegram.Handler.
type MessageHandler interface {
	HandleMessage(ctx context.Context, m *tele.Message) (commands.Result, error)
}

// TextRoutes routes text messages and media captions to h.
// Bot commands arrive through OnText as well because no per-command endpoints are registered.
func TextRoutes(h MessageHandler) []tg.Route {
	handler := func(c tele.Context) error {
		ctx := middleware.ContextFrom(c)
		start := middleware.StartFrom(c)
		res, err := h.HandleMessage(ctx, c.Message())
		logHandlerSummary(ctx, res, start, err)
		// Dispatch failures are logged above; returning them would only make telebot log them again.
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnPhoto, Handler: handler},
		{Endpoint: tele.OnDocument, Handler: handler},
	}
}
