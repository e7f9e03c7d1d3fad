package settings

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/m3rciful/ticketbot/core/commands"
)

// Memory is an in-process Repository, used with the "memory" driver and in tests.
type Memory struct {
	mu         sync.RWMutex
	defaults   Defaults
	guilds     map[string]commands.Settings
	categories map[string][]commands.Category
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory(defaults Defaults) *Memory {
	return &Memory{
		defaults:   defaults,
		guilds:     make(map[string]commands.Settings),
		categories: make(map[string][]commands.Category),
	}
}

func (m *Memory) Get(_ context.Context, guildID string) (commands.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.guilds[guildID]
	return s, ok, nil
}

func (m *Memory) Create(_ context.Context, guildID string) (commands.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(guildID), nil
}

func (m *Memory) createLocked(guildID string) commands.Settings {
	if s, ok := m.guilds[guildID]; ok {
		return s
	}
	s := m.defaults.settings(guildID)
	m.guilds[guildID] = s
	return s
}

func (m *Memory) Update(_ context.Context, guildID string, patch Patch) (commands.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.createLocked(guildID)
	if patch.Prefix != nil {
		s.CommandPrefix = *patch.Prefix
	}
	if patch.Locale != nil {
		s.Locale = *patch.Locale
	}
	m.guilds[guildID] = s
	return s, nil
}

func (m *Memory) ListCategories(_ context.Context, guildID string) ([]commands.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.categories[guildID]
	out := make([]commands.Category, len(src))
	for i, c := range src {
		c.Roles = slices.Clone(c.Roles)
		out[i] = c
	}
	return out, nil
}

func (m *Memory) CreateCategory(_ context.Context, guildID, name string, roles []string) (commands.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories[guildID] {
		if c.Name == name {
			return commands.Category{}, ErrCategoryExists
		}
	}
	cat := commands.Category{ID: uuid.NewString(), GuildID: guildID, Name: name, Roles: uniqueRoles(roles)}
	sort.Strings(cat.Roles)
	list := append(m.categories[guildID], cat)
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	m.categories[guildID] = list
	return cat, nil
}
