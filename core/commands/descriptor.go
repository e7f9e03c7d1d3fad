package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Mode selects the grammar used to acquire a command's arguments.
type Mode int

const (
	// ModePositional counts whitespace-separated words and passes the raw text through.
	ModePositional Mode = iota
	// ModeNamed parses `key: value;` entries into a map.
	ModeNamed
)

func (m Mode) String() string {
	switch m {
	case ModePositional:
		return "positional"
	case ModeNamed:
		return "named"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Arg describes one declared argument of a command.
type Arg struct {
	Name        string
	Required    bool
	Example     string
	Description string
}

// Handler executes a resolved command.
type Handler func(ctx context.Context, inv *Invocation) error

// Descriptor is the definition of one invocable command.
// Descriptors are treated as immutable once registered.
type Descriptor struct {
	Name        string
	Description string
	Aliases     []string
	Args        []Arg
	Mode        Mode
	Permissions []Permission
	StaffOnly   bool
	Internal    bool
	Execute     Handler
}

// Unit produces one descriptor during Registry.Load.
type Unit func() (Descriptor, error)

// Provenance returns "internal" or "external".
func (d *Descriptor) Provenance() string {
	if d.Internal {
		return "internal"
	}
	return "external"
}

// RequiredArgs returns the number of arguments flagged as required.
func (d *Descriptor) RequiredArgs() int {
	n := 0
	for _, a := range d.Args {
		if a.Required {
			n++
		}
	}
	return n
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" || strings.ContainsFunc(d.Name, isSpace) {
		return fmt.Errorf("%w: name %q", ErrInvalidDescriptor, d.Name)
	}
	if d.Execute == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidDescriptor, d.Name)
	}
	if d.Mode != ModePositional && d.Mode != ModeNamed {
		return fmt.Errorf("%w: %q has unknown %s", ErrInvalidDescriptor, d.Name, d.Mode)
	}
	for _, a := range d.Aliases {
		if a == "" || strings.ContainsFunc(a, isSpace) {
			return fmt.Errorf("%w: %q has invalid alias %q", ErrInvalidDescriptor, d.Name, a)
		}
	}
	return nil
}

// normalized returns a copy whose alias list starts with the name and has no duplicates.
func (d Descriptor) normalized() Descriptor {
	aliases := make([]string, 0, len(d.Aliases)+1)
	aliases = append(aliases, d.Name)
	for _, a := range d.Aliases {
		if !slices.Contains(aliases, a) {
			aliases = append(aliases, a)
		}
	}
	d.Aliases = aliases
	d.Args = slices.Clone(d.Args)
	d.Permissions = slices.Clone(d.Permissions)
	return d
}
