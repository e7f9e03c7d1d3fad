// Package logger provides the bot's structured slog setup: an async writer,
// JSON or key=value output with a stable key order, per-component loggers and
// message correlation fields carried in context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/m3rciful/ticketbot/core/buildinfo"
	coreconfig "github.com/m3rciful/ticketbot/core/config"
)

var (
	initOnce sync.Once

	mu       sync.Mutex
	sink     *asyncWriter
	closers  []io.Closer
	shutdown bool

	levelVar slog.LevelVar

	debugSampler = newRatioSampler(1, 50)
	// sampleAll disables debug sampling; set LOG_DEBUG_ALL=1.
	sampleAll bool

	// L is the base logger. Prefer FromContext in request paths.
	L *slog.Logger

	// CMD logs command dispatch events.
	CMD *slog.Logger
	// REG logs command registry changes.
	REG *slog.Logger
	// PLG logs plugin registration.
	PLG *slog.Logger
	// DB logs database events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// DG logs Discord transport events.
	DG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// I18N logs translation lookups.
	I18N *slog.Logger
)

func init() {
	// Until InitLogger runs, package loggers discard output so early callers and tests never see nil.
	setBase(slog.New(slog.DiscardHandler))
}

// InitLogger configures the global structured logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		err = install(cfg)
	})
	return err
}

func install(cfg *coreconfig.Config) error {
	if cfg == nil {
		cfg = &coreconfig.Config{}
	}
	outputs, files, err := buildOutputs(cfg)
	if err != nil {
		return err
	}

	levelVar.Set(selectLevel(cfg))
	debugSampler.Set(parseDebugSample(cfg))
	sampleAll = envBool("LOG_DEBUG_ALL")

	mu.Lock()
	sink = newAsyncWriter(outputs, 64*1024)
	closers = files
	mu.Unlock()

	base := slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   sink,
		format:   selectFormat(cfg),
		keyOrder: selectKeyOrder(cfg),
	}))
	slog.SetDefault(base)
	setBase(base)
	logStartup(cfg)
	return nil
}

func setBase(base *slog.Logger) {
	L = base
	CMD = base.With("component", "commands")
	REG = base.With("component", "commands.registry")
	PLG = base.With("component", "plugins")
	DB = base.With("component", "db")
	MIG = base.With("component", "db.migrate")
	DG = base.With("component", "discord")
	TG = base.With("component", "tg")
	I18N = base.With("component", "i18n")
}

func logStartup(cfg *coreconfig.Config) {
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", selectProfile(cfg)),
		slog.Bool("discord", cfg.DiscordEnabled()),
		slog.Bool("telegram", cfg.TelegramEnabled()),
		slog.String("prefix", cfg.Commands.DefaultPrefix),
		slog.String("locale", cfg.Commands.DefaultLocale),
	)
}

// Shutdown flushes pending lines and closes the log file. Later calls are no-ops.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if shutdown {
		return nil
	}
	shutdown = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Close())
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// selectFormat honours logging.format and otherwise picks kv for debug and dev profiles.
func selectFormat(cfg *coreconfig.Config) logFormat {
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "json":
		return formatJSON
	case "kv", "text", "pretty":
		return formatKV
	}
	switch selectProfile(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

// selectKeyOrder reads a comma separated key list; "" and "default" use defaultKeyOrder.
func selectKeyOrder(cfg *coreconfig.Config) []string {
	raw := strings.TrimSpace(cfg.Logging.KeysOrder)
	var order []string
	if raw != "default" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

// selectLevel accepts slog level names with optional offsets such as "debug" or "INFO+2".
// Unknown values fall back to info.
func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	raw := strings.TrimSpace(cfg.Logging.Level)
	if strings.EqualFold(raw, "warning") {
		raw = "warn"
	}
	var level slog.Level
	if raw == "" || level.UnmarshalText([]byte(raw)) != nil {
		return slog.LevelInfo
	}
	return level
}

// buildOutputs always writes to stdout and, when logging.dir and logging.bot_file
// are both set, appends to that file as well.
func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	writers := []io.Writer{os.Stdout}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || file == "" {
		return writers, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	return append(writers, f), []io.Closer{f}, nil
}

func selectProfile(cfg *coreconfig.Config) string {
	if p := strings.TrimSpace(cfg.Logging.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

// parseDebugSample defaults to 1/50. "off" or "0" disable sampling entirely.
func parseDebugSample(cfg *coreconfig.Config) (int, int) {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return 1, 50
	}
	num, den := parseRatio(cfg.Logging.DebugSample)
	if num == 0 && den == 0 {
		return 0, 0
	}
	if num <= 0 || den <= 0 {
		return 1, 50
	}
	return num, den
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
func ShouldSampleDebug() bool {
	return sampleAll || debugSampler.Allow()
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent writes an entry with the event attribute first. A nil logg falls back
// to the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the context logger scoped to name.
func Component(ctx context.Context, name string) *slog.Logger {
	logg := FromContext(ctx)
	if name = strings.TrimSpace(name); name != "" {
		logg = logg.With("component", name)
	}
	return logg
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(ctx, component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(ctx, component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(ctx, component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(ctx, component), slog.LevelError, event, attrs...)
}
