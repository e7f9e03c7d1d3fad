package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCommand matches DuplicateCommandError via errors.Is.
	ErrDuplicateCommand = errors.New("commands: duplicate command")
	// ErrAliasConflict matches AliasConflictError via errors.Is.
	ErrAliasConflict = errors.New("commands: alias conflict")
	// ErrInvalidDescriptor reports a descriptor that cannot be registered.
	ErrInvalidDescriptor = errors.New("commands: invalid descriptor")
	// ErrSettingsUnavailable wraps failures of the settings provider during dispatch.
	ErrSettingsUnavailable = errors.New("commands: guild settings unavailable")
	// ErrAccessCheck wraps failures while resolving actor permissions, roles or categories.
	ErrAccessCheck = errors.New("commands: access check failed")
	// ErrExecutionTimeout is reported when a handler outlives the execution timeout.
	ErrExecutionTimeout = errors.New("commands: execution timed out")
)

// DuplicateCommandError is returned when two external commands claim the same name.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("commands: a non-internal command with the name %q already exists", e.Name)
}

// Is reports ErrDuplicateCommand as the sentinel.
func (e *DuplicateCommandError) Is(target error) bool {
	return target == ErrDuplicateCommand
}

// Code returns the log error code.
func (e *DuplicateCommandError) Code() string { return "DUPLICATE_COMMAND" }

// AliasConflictError is returned when an alias already routes to a different command.
type AliasConflictError struct {
	Alias    string
	Command  string
	Existing string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("commands: alias %q of %q is already used by %q", e.Alias, e.Command, e.Existing)
}

// Is reports ErrAliasConflict as the sentinel.
func (e *AliasConflictError) Is(target error) bool {
	return target == ErrAliasConflict
}

// Code returns the log error code.
func (e *AliasConflictError) Code() string { return "ALIAS_CONFLICT" }

// PanicError carries a value recovered from a panicking handler or load unit.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Code returns the log error code.
func (e *PanicError) Code() string { return "PANIC" }
