package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/ticketbot/core/commands"
	coreconfig "github.com/m3rciful/ticketbot/core/config"
	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/ratelimit"
	"github.com/m3rciful/ticketbot/core/sender"
	"github.com/m3rciful/ticketbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config     *coreconfig.Config
	Registry   *commands.Registry
	Dispatcher Dispatcher
	// Queue delivers replies. It is owned by the caller and not closed here.
	Queue   *sender.Queue
	Limiter *ratelimit.Limiter

	// Middlewares defaults to DefaultMiddlewares(Limiter, nil).
	Middlewares []Middleware
	// Routes builds the update handlers once the bot identity is known.
	Routes func(rt Runtime) []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to route builders and lifecycle hooks.
type Runtime struct {
	Bot     *tele.Bot
	Handler *Handler
	Queue   *sender.Queue
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Dispatcher == nil {
		return fmt.Errorf("telegram: dispatcher is required")
	}
	cfg := opts.Config

	poller := BuildPoller(PollerOptionsFromConfig(cfg))
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(HTTPOptions{}),
		OnError: func(err error, c tele.Context) {
			logger.LogEvent(middleware.ContextFrom(c), logger.TG, slog.LevelError, "tg.error",
				slog.String("err", sender.SanitizeError(err)),
			)
		},
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %s", sender.SanitizeError(err))
	}
	buildTook := time.Since(buildStart)

	rt := Runtime{
		Bot:   bot,
		Queue: opts.Queue,
		Handler: &Handler{
			Dispatcher: opts.Dispatcher,
			API:        bot,
			Queue:      opts.Queue,
			Username:   bot.Me.Username,
		},
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	case *tele.LongPoller:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
		if !opts.DisableWebhookCleanup {
			// A leftover webhook makes getUpdates fail with a conflict.
			if err := bot.RemoveWebhook(false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					slog.String("err", sender.SanitizeError(err)),
				)
			} else {
				logger.TG.Debug("webhook deleted", slog.String("event", "delete_webhook"))
			}
		}
	}

	mws := opts.Middlewares
	if mws == nil {
		mws = DefaultMiddlewares(opts.Limiter, nil)
	}
	for _, mw := range mws {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	if opts.Routes != nil {
		for _, route := range opts.Routes(rt) {
			if route.Endpoint == nil || route.Handler == nil {
				continue
			}
			bot.Handle(route.Endpoint, route.Handler)
		}
	}

	if cfg.Telegram.SetMenu {
		SetupCommands(ctx, bot, opts.Registry)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	logger.TG.Info("bot started",
		slog.String("event", "tg.start"),
		slog.String("username", bot.Me.Username),
	)

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
