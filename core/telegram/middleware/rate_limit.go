package middleware

import (
	"log/slog"
	"strconv"
	"strings"

	coreconfig "github.com/m3rciful/ticketbot/core/config"
	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/ratelimit"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Limiter   *ratelimit.Limiter
	OnLimited tele.HandlerFunc
}

// UpdateKind classifies an update for rate limit exclusions: bot commands
// ("/name") are "command", everything else is "message".
func UpdateKind(c tele.Context) string {
	if strings.HasPrefix(c.Text(), "/") {
		return coreconfig.UpdateCommand
	}
	return coreconfig.UpdateMessage
}

// RateLimitMiddleware drops updates from senders that exceed the limiter's budget.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || !opts.Limiter.Enabled() {
				return next(c)
			}
			key := "tg:" + strconv.FormatInt(user.ID, 10)
			if opts.Limiter.Allow(key, UpdateKind(c)) {
				return next(c)
			}

			logger.LogEvent(ContextFrom(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.Bool("rate_limited", true),
				slog.String("kind", UpdateKind(c)),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
