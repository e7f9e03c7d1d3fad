package commands

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicateExternalFails(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "kick", Execute: noop}))
	err := reg.Register(Descriptor{Name: "kick", Execute: noop})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCommand))
	var dup *DuplicateCommandError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "kick", dup.Name)
}

func TestRegisterLogsProvenance(t *testing.T) {
	for _, internal := range []bool{true, false} {
		log, rec := newRecordingLogger()
		reg := NewRegistry(RegistryOptions{Logger: log})
		d := Descriptor{Name: "ping", Internal: internal, Execute: noop}
		require.NoError(t, reg.Register(d))

		got, ok := rec.attr("command.loaded", "provenance")
		require.True(t, ok)
		assert.Equal(t, d.Provenance(), got)
	}
	assert.Equal(t, "internal", (&Descriptor{Internal: true}).Provenance())
	assert.Equal(t, "external", (&Descriptor{}).Provenance())
}

func TestRegisterExternalOverridesInternal(t *testing.T) {
	log, rec := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{
		Logger:  log,
		Plugins: staticPlugins{{Name: "moderation", Commands: []string{"kick"}}},
	})

	internalCalled := false
	require.NoError(t, reg.Register(Descriptor{Name: "kick", Internal: true, Execute: func(context.Context, *Invocation) error {
		internalCalled = true
		return nil
	}}))
	require.NoError(t, reg.Register(Descriptor{Name: "kick", Aliases: []string{"boot"}, Execute: noop}))

	d, ok := reg.Lookup("kick")
	require.True(t, ok)
	assert.False(t, d.Internal)
	_, ok = reg.Lookup("boot")
	assert.True(t, ok)
	assert.False(t, internalCalled)
	assert.Equal(t, 1, reg.Len())

	plugin, ok := rec.attr("command.overridden", "plugin")
	require.True(t, ok)
	assert.Equal(t, "moderation", plugin)
}

func TestRegisterOverrideWithoutKnownPlugin(t *testing.T) {
	log, rec := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "help", Internal: true, Execute: noop}))
	require.NoError(t, reg.Register(Descriptor{Name: "help", Execute: noop}))

	plugin, ok := rec.attr("command.overridden", "plugin")
	require.True(t, ok)
	assert.Equal(t, "unknown", plugin)
}

func TestRegisterInternalTwiceIsNoop(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "ping", Description: "first", Internal: true, Execute: noop}))
	require.NoError(t, reg.Register(Descriptor{Name: "ping", Description: "second", Internal: true, Aliases: []string{"p"}, Execute: noop}))

	d, ok := reg.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "first", d.Description)
	_, ok = reg.Lookup("p")
	assert.False(t, ok)
}

func TestRegisterInternalAfterExternalKeepsExternal(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "new", Description: "plugin", Execute: noop}))
	require.NoError(t, reg.Register(Descriptor{Name: "new", Description: "builtin", Internal: true, Execute: noop}))

	d, _ := reg.Lookup("new")
	assert.Equal(t, "plugin", d.Description)
}

func TestRegisterAliasConflict(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "close", Aliases: []string{"c"}, Execute: noop}))
	err := reg.Register(Descriptor{Name: "create", Aliases: []string{"c"}, Execute: noop})

	var conflict *AliasConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "c", conflict.Alias)
	assert.Equal(t, "close", conflict.Existing)
	_, ok := reg.Lookup("create")
	assert.False(t, ok, "failed registration must not be visible")
}

func TestRegisterAliasCannotShadowName(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "add", Execute: noop}))
	err := reg.Register(Descriptor{Name: "append", Aliases: []string{"add"}, Execute: noop})
	assert.ErrorIs(t, err, ErrAliasConflict)
}

func TestOverrideReleasesOldAliases(t *testing.T) {
	log, _ := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	require.NoError(t, reg.Register(Descriptor{Name: "stats", Aliases: []string{"st"}, Internal: true, Execute: noop}))
	require.NoError(t, reg.Register(Descriptor{Name: "stats", Execute: noop}))

	_, ok := reg.Lookup("st")
	assert.False(t, ok)
	require.NoError(t, reg.Register(Descriptor{Name: "status", Aliases: []string{"st"}, Execute: noop}))
}

func TestRegisterRejectsInvalidDescriptors(t *testing.T) {
	reg := NewRegistry(RegistryOptions{})
	cases := map[string]Descriptor{
		"empty name":   {Execute: noop},
		"spaced name":  {Name: "two words", Execute: noop},
		"no handler":   {Name: "x"},
		"unknown mode": {Name: "x", Mode: Mode(7), Execute: noop},
		"empty alias":  {Name: "x", Aliases: []string{""}, Execute: noop},
		"spaced alias": {Name: "x", Aliases: []string{"a b"}, Execute: noop},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, reg.Register(d), ErrInvalidDescriptor)
		})
	}
	assert.Zero(t, reg.Len())
}

func TestLoadIsolatesFailingUnits(t *testing.T) {
	log, rec := newRecordingLogger()
	reg := NewRegistry(RegistryOptions{Logger: log})

	units := []Unit{
		func() (Descriptor, error) { return Descriptor{Name: "a", Internal: true, Execute: noop}, nil },
		func() (Descriptor, error) { return Descriptor{}, errors.New("broken unit") },
		func() (Descriptor, error) { panic("boom") },
		nil,
		func() (Descriptor, error) { return Descriptor{Name: "b", Internal: true, Execute: noop}, nil },
	}
	loaded := reg.Load(context.Background(), units...)

	assert.Equal(t, 2, loaded)
	assert.Len(t, rec.events(slog.LevelWarn), 3)
	names := make([]string, 0)
	for _, d := range reg.Commands() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestLookupByAlias(t *testing.T) {
	reg := NewRegistry(RegistryOptions{})
	require.NoError(t, reg.Register(Descriptor{Name: "new", Aliases: []string{"open", "new"}, Execute: noop}))

	d, ok := reg.Lookup("open")
	require.True(t, ok)
	assert.Equal(t, "new", d.Name)
	assert.Equal(t, []string{"new", "open"}, d.Aliases)

	_, ok = reg.Lookup("NEW")
	assert.False(t, ok, "lookup is case-sensitive")
}
