package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/m3rciful/ticketbot/core/logger"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Plugins attributes overrides of internal commands. Optional.
	Plugins PluginIndex
	// Logger defaults to logger.REG.
	Logger *slog.Logger
}

// Registry maps canonical command names to descriptors and resolves aliases.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Descriptor
	aliases map[string]string
	order   []string

	plugins PluginIndex
	log     *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		byName:  make(map[string]*Descriptor),
		aliases: make(map[string]string),
		plugins: opts.Plugins,
		log:     opts.Logger,
	}
}

// SetPluginIndex replaces the index used for override attribution.
func (r *Registry) SetPluginIndex(idx PluginIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = idx
}

// Register adds d to the registry.
//
// An external command replaces an internal one of the same name. An internal
// command never replaces an existing entry. Two external commands with the same
// name fail with DuplicateCommandError. Aliases routing to a different command
// fail with AliasConflictError.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	d = d.normalized()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.byName[d.Name]
	if exists && !existing.Internal && !d.Internal {
		return &DuplicateCommandError{Name: d.Name}
	}
	if exists && d.Internal {
		r.logOverride(d.Name)
		return nil
	}
	if err := r.checkAliases(d); err != nil {
		return err
	}
	if exists {
		r.logOverride(d.Name)
		for _, a := range existing.Aliases {
			delete(r.aliases, a)
		}
	} else {
		r.order = append(r.order, d.Name)
	}

	stored := d
	r.byName[d.Name] = &stored
	for _, a := range stored.Aliases {
		r.aliases[a] = stored.Name
	}

	logger.LogEvent(context.Background(), r.logger(), slog.LevelInfo, "command.loaded",
		slog.String("command", d.Name),
		slog.String("provenance", d.Provenance()),
		slog.String("mode", d.Mode.String()),
	)
	return nil
}

func (r *Registry) checkAliases(d Descriptor) error {
	for _, a := range d.Aliases {
		owner, ok := r.aliases[a]
		if ok && owner != d.Name {
			return &AliasConflictError{Alias: a, Command: d.Name, Existing: owner}
		}
	}
	return nil
}

func (r *Registry) logOverride(name string) {
	provider := "unknown"
	if r.plugins != nil {
		for _, p := range r.plugins.Plugins() {
			if slices.Contains(p.Commands, name) {
				provider = p.Name
				break
			}
		}
	}
	logger.LogEvent(context.Background(), r.logger(), slog.LevelInfo, "command.overridden",
		slog.String("command", name),
		slog.String("plugin", provider),
	)
}

// Load instantiates and registers every unit in order. A unit that fails or
// panics is logged and skipped. It returns the number of registered units.
func (r *Registry) Load(ctx context.Context, units ...Unit) int {
	loaded := 0
	for i, unit := range units {
		d, err := instantiate(unit)
		if err == nil {
			err = r.Register(d)
		}
		if err != nil {
			attrs := []slog.Attr{
				slog.Int("unit", i),
				slog.String("cause", err.Error()),
			}
			if d.Name != "" {
				attrs = append(attrs, slog.String("command", d.Name))
			}
			var pe *PanicError
			if errors.As(err, &pe) {
				attrs = append(attrs, slog.String("stack", string(pe.Stack)))
			}
			logger.LogEvent(ctx, r.logger(), slog.LevelWarn, "command.load_failed", attrs...)
			continue
		}
		loaded++
	}
	logger.LogEvent(ctx, r.logger(), slog.LevelInfo, "commands.loaded",
		slog.Int("count", loaded),
		slog.Int("units", len(units)),
	)
	return loaded
}

func instantiate(unit Unit) (d Descriptor, err error) {
	if unit == nil {
		return Descriptor{}, fmt.Errorf("%w: nil unit", ErrInvalidDescriptor)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return unit()
}

// Lookup returns the descriptor routed to by token.
func (r *Registry) Lookup(token string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[token]
	if !ok {
		return nil, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// Commands returns all descriptors in registration order.
func (r *Registry) Commands() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func (r *Registry) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return logger.REG
}
