package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/sender"
)

func logHandlerSummary(ctx context.Context, res commands.Result, start time.Time, err error) {
	outcome, level := res.Outcome.String(), slog.LevelInfo
	switch {
	case err != nil:
		outcome, level = "fail", slog.LevelError
	case res.Outcome == commands.OutcomeIgnored:
		level = slog.LevelDebug
		if !logger.ShouldSampleDebug() {
			return
		}
	}

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}
	if res.Command != nil {
		attrs = append(attrs,
			slog.String("handler", normalizeHandlerName(res.Command.Name)),
			slog.String("token", logger.SanitizeLimit(res.Token, 64)),
		)
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(sender.SanitizeError(err), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// deriveErrorCode names an error by its Code method or, failing that, by its concrete type.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
