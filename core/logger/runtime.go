package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey int

const (
	ridKey contextKey = iota
	metaKey
	loggerKey
	handlerKey
)

// MessageMeta identifies the inbound chat message being processed.
// Identifiers are kept as strings so Discord snowflakes and Telegram ids share one shape.
type MessageMeta struct {
	Platform  string
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
}

// RID is the correlation id of this message: guild:channel:message.
func (m MessageMeta) RID() string {
	return BuildRID(m.GuildID, m.ChannelID, m.MessageID)
}

func with(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func from[T any](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithLogger stores log in ctx. A nil log keeps the current one.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		return with(ctx, loggerKey, FromContext(ctx))
	}
	return with(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := from[*slog.Logger](ctx, loggerKey); ok && l != nil {
		return l
	}
	return L
}

// WithRID attaches a correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, ridKey, rid)
}

func RIDFrom(ctx context.Context) string {
	rid, _ := from[string](ctx, ridKey)
	return rid
}

// WithMessageMeta attaches message identifiers; every log line written with ctx carries them.
func WithMessageMeta(ctx context.Context, meta MessageMeta) context.Context {
	return with(ctx, metaKey, meta)
}

func MessageMetaFrom(ctx context.Context) (MessageMeta, bool) {
	return from[MessageMeta](ctx, metaKey)
}

// WithHandler records the command handling the message.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return with(ctx, handlerKey, HandlerFrom(ctx))
	}
	return with(ctx, handlerKey, handler)
}

func HandlerFrom(ctx context.Context) string {
	h, _ := from[string](ctx, handlerKey)
	return h
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit applies Sanitize and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID joins the ids as guild:channel:message. Missing parts become 0.
func BuildRID(guildID, channelID, messageID string) string {
	parts := [3]string{guildID, channelID, messageID}
	for i := range parts {
		if strings.TrimSpace(parts[i]) == "" {
			parts[i] = "0"
		}
	}
	return strings.Join(parts[:], ":")
}

// CompactRID rewrites a numeric three part rid in base36 joined by dots,
// e.g. 36:72:0 becomes 10.20.0. Anything else is returned trimmed but unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
