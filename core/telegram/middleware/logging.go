// Package middleware holds the Telegram update middlewares shared by all routes.
package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/ticketbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	startKey   = "update_start"
)

// StoreContext attaches a request context to the update for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by LoggerMiddleware, or a background context.
func ContextFrom(c tele.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(contextKey).(context.Context); ok {
			return ctx
		}
	}
	return logger.Background()
}

// StartFrom returns the time LoggerMiddleware saw the update, or now.
func StartFrom(c tele.Context) time.Time {
	if c != nil {
		if ts, ok := c.Get(startKey).(time.Time); ok {
			return ts
		}
	}
	return time.Now()
}

// Meta extracts log metadata from an update.
func Meta(c tele.Context) logger.MessageMeta {
	meta := logger.MessageMeta{Platform: "telegram"}
	if chat := c.Chat(); chat != nil {
		meta.GuildID = strconv.FormatInt(chat.ID, 10)
		meta.ChannelID = meta.GuildID
	}
	if user := c.Sender(); user != nil {
		meta.UserID = strconv.FormatInt(user.ID, 10)
	}
	if msg := c.Message(); msg != nil {
		meta.MessageID = strconv.Itoa(msg.ID)
	}
	return meta
}

// LoggerMiddleware attaches message metadata and a request id to the update context
// and logs a sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		meta := Meta(c)
		rid := meta.RID()

		ctx := logger.WithMessageMeta(logger.Background(), meta)
		ctx = logger.WithRID(ctx, rid)
		ctx = logger.WithLogger(ctx, logger.TG)
		StoreContext(c, ctx)
		c.Set(startKey, time.Now())

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.Int("update_id", c.Update().ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
