// Package plugins tracks external command providers and loads their commands into a registry.
package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/logger"
)

// Plugin is a named set of external commands.
type Plugin struct {
	Name     string
	Commands []commands.Descriptor
}

// Manager owns plugin metadata. It implements commands.PluginIndex.
type Manager struct {
	mu      sync.RWMutex
	plugins []Plugin
	seen    map[string]struct{}
}

var _ commands.PluginIndex = (*Manager)(nil)

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{seen: make(map[string]struct{})}
}

// Register records p. Its commands are forced external.
func (m *Manager) Register(p Plugin) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New("plugin name is required")
	}
	cmds := make([]commands.Descriptor, len(p.Commands))
	for i, d := range p.Commands {
		d.Internal = false
		cmds[i] = d
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.seen[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	m.seen[name] = struct{}{}
	m.plugins = append(m.plugins, Plugin{Name: name, Commands: cmds})
	return nil
}

// RegisterAll records plugins sequentially.
func (m *Manager) RegisterAll(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := m.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Plugins returns each plugin's name and command names in registration order.
func (m *Manager) Plugins() []commands.PluginInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]commands.PluginInfo, 0, len(m.plugins))
	for _, p := range m.plugins {
		info := commands.PluginInfo{Name: p.Name}
		for _, d := range p.Commands {
			info.Commands = append(info.Commands, d.Name)
		}
		out = append(out, info)
	}
	return out
}

// Load registers every plugin command in reg and stops at the first failure.
// The registry consults the manager while registering, so the lock is not held here.
func (m *Manager) Load(reg *commands.Registry) error {
	m.mu.RLock()
	snapshot := slices.Clone(m.plugins)
	m.mu.RUnlock()

	reg.SetPluginIndex(m)
	for _, p := range snapshot {
		for _, d := range p.Commands {
			if err := reg.Register(d); err != nil {
				logger.PLG.Error("plugin command rejected",
					slog.String("event", "plugin.load_failed"),
					slog.String("plugin", p.Name),
					slog.String("command", d.Name),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("plugin %q: %w", p.Name, err)
			}
		}
		logger.PLG.Info("plugin loaded",
			slog.String("event", "plugin.loaded"),
			slog.String("plugin", p.Name),
			slog.Int("count", len(p.Commands)),
		)
	}
	return nil
}
