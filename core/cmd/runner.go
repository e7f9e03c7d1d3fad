// Package cmd wires configuration, storage, the command engine and the chat transports into a running bot.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/ticketbot/core/bootstrap"
	"github.com/m3rciful/ticketbot/core/builtin"
	"github.com/m3rciful/ticketbot/core/commands"
	coreconfig "github.com/m3rciful/ticketbot/core/config"
	coredatabase "github.com/m3rciful/ticketbot/core/database"
	"github.com/m3rciful/ticketbot/core/discord"
	"github.com/m3rciful/ticketbot/core/i18n"
	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/plugins"
	"github.com/m3rciful/ticketbot/core/ratelimit"
	"github.com/m3rciful/ticketbot/core/sender"
	"github.com/m3rciful/ticketbot/core/settings"
	coretelegram "github.com/m3rciful/ticketbot/core/telegram"
	"github.com/m3rciful/ticketbot/core/telegram/router"
)

// ConfigCarrier exposes the core and database sections of an application config.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
	DatabaseConfig() coredatabase.Config
}

// App holds the command engine and its collaborators.
type App struct {
	Config     *coreconfig.Config
	DB         *sqlx.DB
	Registry   *commands.Registry
	Plugins    *plugins.Manager
	Locales    *i18n.Bundle
	Store      settings.Repository
	Dispatcher *commands.Dispatcher
	Queue      *sender.Queue
	Limiter    *ratelimit.Limiter
}

// NewApp builds the engine. A nil db selects the in-memory settings store.
// Built-in commands are loaded before plugins so plugin overrides are attributed.
func NewApp(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB, pluginList []plugins.Plugin) (*App, error) {
	if cfg == nil {
		return nil, errors.New("cmd: nil config")
	}
	locales, err := i18n.Load(cfg.Commands.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("cmd: %w", err)
	}

	defaults := settings.Defaults{
		Prefix:        cfg.Commands.DefaultPrefix,
		Locale:        cfg.Commands.DefaultLocale,
		ErrorColour:   cfg.Commands.ErrorColour,
		SuccessColour: cfg.Commands.SuccessColour,
	}
	var store settings.Repository
	if db != nil {
		store = settings.NewStore(db, defaults)
	} else {
		store = settings.NewMemory(defaults)
	}

	mgr := plugins.NewManager()
	if err := mgr.RegisterAll(pluginList...); err != nil {
		return nil, fmt.Errorf("cmd: %w", err)
	}

	reg := commands.NewRegistry(commands.RegistryOptions{Plugins: mgr})
	reg.Load(ctx, builtin.Units(builtin.Deps{Registry: reg, Store: store, Locales: locales})...)
	if err := mgr.Load(reg); err != nil {
		return nil, fmt.Errorf("cmd: %w", err)
	}

	disp, err := commands.NewDispatcher(commands.DispatcherOptions{
		Registry:    reg,
		Settings:    store,
		Localizer:   locales,
		Categories:  store,
		ExecTimeout: time.Duration(cfg.Commands.ExecTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("cmd: %w", err)
	}

	return &App{
		Config:     cfg,
		DB:         db,
		Registry:   reg,
		Plugins:    mgr,
		Locales:    locales,
		Store:      store,
		Dispatcher: disp,
		Queue: sender.New(sender.Options{
			QueueSize:    cfg.Sender.QueueSize,
			Workers:      cfg.Sender.Workers,
			MaxRetries:   cfg.Sender.MaxRetries,
			RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
		}),
		Limiter: ratelimit.FromConfig(cfg.RateLimit),
	}, nil
}

// Close drains the outbound queue and closes the database.
func (a *App) Close() error {
	a.Queue.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// Options describe how to bootstrap the app and which transports to run.
type Options struct {
	Config  ConfigCarrier
	Plugins []plugins.Plugin

	ShutdownLogger func() error
	RunDiscord     func(ctx context.Context, opts discord.Options) error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run bootstraps infrastructure and runs every enabled transport until ctx is done
// or one of them fails.
func Run(ctx context.Context, opts Options) error {
	if opts.Config == nil || opts.Config.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}
	cfg := opts.Config.CoreConfig()
	startedAt := time.Now()

	boot, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg, Database: opts.Config.DatabaseConfig()})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	app, err := NewApp(ctx, cfg, boot.DB, opts.Plugins)
	if err != nil {
		if boot.DB != nil {
			_ = boot.DB.Close()
		}
		return err
	}
	appLog := logger.L.With("component", "app")

	runDiscord := opts.RunDiscord
	if runDiscord == nil {
		runDiscord = discord.Run
	}
	runTelegram := opts.RunTelegram
	if runTelegram == nil {
		runTelegram = coretelegram.RunTelegram
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.DiscordEnabled() {
		g.Go(func() error {
			return runDiscord(gctx, discord.Options{
				Token:      cfg.Discord.Token,
				Dispatcher: app.Dispatcher,
				Queue:      app.Queue,
				Limiter:    app.Limiter,
			})
		})
	}
	if cfg.TelegramEnabled() {
		g.Go(func() error {
			return runTelegram(gctx, coretelegram.RunOptions{
				Config:     cfg,
				Registry:   app.Registry,
				Dispatcher: app.Dispatcher,
				Queue:      app.Queue,
				Limiter:    app.Limiter,
				Routes: func(rt coretelegram.Runtime) []coretelegram.Route {
					return router.TextRoutes(rt.Handler)
				},
			})
		})
	}

	appLog.Info("app ready",
		slog.String("event", "ready"),
		slog.Int("count", app.Registry.Len()),
		slog.Bool("discord", cfg.DiscordEnabled()),
		slog.Bool("telegram", cfg.TelegramEnabled()),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	runErr := g.Wait()
	appLog.Info("shutting down...",
		slog.String("event", "shutdown"),
		slog.Uint64("send_errors", app.Queue.ErrorCount()),
	)
	closeErr := app.Close()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}
