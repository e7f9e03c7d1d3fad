package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as flat JSON objects or key=value lines.
// Well-known keys come first in keyOrder; the rest follow alphabetically.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	asJSON := h.cfg.format == formatJSON

	rec := make(record, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = normalizeLevel(r.Level.String())
	if asJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		rec.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	rec.fromContext(ctx)
	rec.compactRID(asJSON)
	rec.setDefault("event", r.Message, "unknown")
	rec.setDefault("component", "app")
	sanitizeEnumerations(rec)
	pruneEmpty(rec)

	var (
		line []byte
		err  error
	)
	keys := rec.keys(h.cfg.keyOrder)
	if asJSON {
		line, err = rec.json(keys)
		if err != nil {
			return err
		}
	} else {
		line = rec.kv(keys)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// record holds the flattened fields of one log line.
type record map[string]any

// add flattens groups into dotted keys and stores the normalized value.
func (rec record) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			rec.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := normalizeAttr(key, a.Value.Resolve()); ok {
		rec[k] = v
	}
}

func (rec record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	rec.setIfAbsent("rid", RIDFrom(ctx))
	if meta, ok := MessageMetaFrom(ctx); ok {
		rec.setIfAbsent("platform", meta.Platform)
		rec.setIfAbsent("guild_id", meta.GuildID)
		rec.setIfAbsent("channel_id", meta.ChannelID)
		rec.setIfAbsent("message_id", meta.MessageID)
		rec.setIfAbsent("user_id", meta.UserID)
	}
	rec.setIfAbsent("handler", HandlerFrom(ctx))
}

// compactRID shortens the rid for display. JSON output keeps the original as rid_full.
func (rec record) compactRID(keepFull bool) {
	rid, _ := stringField(rec, "rid")
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		rec.setIfAbsent("rid_full", rid)
	}
	rec["rid"] = compact
}

// setDefault fills key with the first non-empty candidate when it is missing or blank.
func (rec record) setDefault(key string, candidates ...string) {
	if v, _ := stringField(rec, key); v != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			rec[key] = c
			return
		}
	}
}

func (rec record) setIfAbsent(key, value string) {
	if value == "" {
		return
	}
	if _, ok := rec[key]; !ok {
		rec[key] = value
	}
}

func (rec record) keys(order []string) []string {
	out := make([]string, 0, len(rec))
	for _, k := range order {
		if _, ok := rec[k]; ok && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	var rest []string
	for k := range rec {
		if !slices.Contains(out, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (rec record) json(keys []string) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, k := range keys {
		v, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func (rec record) kv(keys []string) []byte {
	buf := make([]byte, 0, 256)
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = append(buf, kvValue(rec[k])...)
	}
	return buf
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u > math.MaxInt64 {
			return key, u, true
		}
		return key, int64(val.Uint64()), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so the unit is part of the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

// sanitizeEnumerations canonicalizes level and status. Unknown outcomes are dropped.
func sanitizeEnumerations(rec record) {
	if level, ok := stringField(rec, "level"); ok {
		rec["level"] = normalizeLevel(level)
	}
	if s, _ := stringField(rec, "status"); s != "" {
		if normalized, ok := normalizeStatus(s); ok {
			rec["status"] = normalized
		}
	}
	if o, _ := stringField(rec, "outcome"); o != "" {
		if normalized, ok := normalizeOutcome(o); ok {
			rec["outcome"] = normalized
		} else {
			delete(rec, "outcome")
		}
	}
}

func pruneEmpty(rec record) {
	for k, v := range rec {
		switch val := v.(type) {
		case nil:
			delete(rec, k)
		case string:
			if val == "" {
				delete(rec, k)
			}
		}
	}
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func stringField(rec record, key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
