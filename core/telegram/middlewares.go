package telegram

import (
	"github.com/m3rciful/ticketbot/core/ratelimit"
	"github.com/m3rciful/ticketbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain: panic recovery,
// request context, then per-sender rate limiting when the limiter is enabled.
func DefaultMiddlewares(limiter *ratelimit.Limiter, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if limiter.Enabled() {
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use:  middleware.RateLimitMiddleware(middleware.RateLimitOptions{Limiter: limiter, OnLimited: onLimited}),
		})
	}
	return mws
}
