package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// recordHandler captures log records for assertions.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

// events returns the "event" attribute of every record at level.
func (h *recordHandler) events(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level != level {
			continue
		}
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "event" {
				out = append(out, a.Value.String())
				return false
			}
			return true
		})
	}
	return out
}

// attr returns the first value of key on the first record with the given event.
func (h *recordHandler) attr(event, key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		var (
			matched bool
			value   string
			found   bool
		)
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "event" && a.Value.String() == event {
				matched = true
			}
			if a.Key == key && !found {
				value, found = a.Value.String(), true
			}
			return true
		})
		if matched && found {
			return value, true
		}
	}
	return "", false
}

func newRecordingLogger() (*slog.Logger, *recordHandler) {
	h := &recordHandler{}
	return slog.New(h), h
}

type memSettings struct {
	mu      sync.Mutex
	stored  map[string]Settings
	created []string
	getErr  error
}

func newMemSettings(prefix string) *memSettings {
	return &memSettings{stored: map[string]Settings{
		"g1": {GuildID: "g1", CommandPrefix: prefix, Locale: "en-GB", ErrorColour: 0xFF0000, SuccessColour: 0x00FF00},
	}}
}

func (m *memSettings) Get(_ context.Context, guildID string) (Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return Settings{}, false, m.getErr
	}
	s, ok := m.stored[guildID]
	return s, ok, nil
}

func (m *memSettings) Create(_ context.Context, guildID string) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Settings{GuildID: guildID, CommandPrefix: "-", Locale: "en-GB", ErrorColour: 1, SuccessColour: 2}
	m.stored[guildID] = s
	m.created = append(m.created, guildID)
	return s, nil
}

type memCategories struct {
	categories []Category
	err        error
}

func (m memCategories) ListCategories(context.Context, string) ([]Category, error) {
	return m.categories, m.err
}

type sentPayloads struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (s *sentPayloads) Send(_ context.Context, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return s.err
}

func (s *sentPayloads) all() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Payload(nil), s.payloads...)
}

// echoLocalizer renders keys with their arguments so tests can assert on structure.
type echoLocalizer struct{}

func (echoLocalizer) Resolve(string) Translator {
	return func(key string, args ...any) string {
		if len(args) == 0 {
			return "{" + key + "}"
		}
		return fmt.Sprintf("{%s %v}", key, args)
	}
}

type staticPlugins []PluginInfo

func (p staticPlugins) Plugins() []PluginInfo { return p }

type failingAccess struct{}

func (failingAccess) Permissions(context.Context) (PermissionSet, error) {
	return nil, errors.New("member lookup failed")
}

func (failingAccess) Roles(context.Context) ([]string, error) {
	return nil, errors.New("member lookup failed")
}

func noop(context.Context, *Invocation) error { return nil }
