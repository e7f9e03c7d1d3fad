package commands

import (
	"context"
	"errors"
	"strings"
)

// Args holds the arguments acquired for one invocation.
// Named is nil for positional commands, which only get Raw.
type Args struct {
	Raw   string
	Named map[string]string
}

// Get returns a named argument.
func (a Args) Get(name string) (string, bool) {
	v, ok := a.Named[name]
	return v, ok
}

// Fields splits Raw on whitespace for positional commands.
func (a Args) Fields() []string {
	return strings.Fields(a.Raw)
}

// Invocation is the per-message context handed to a Handler. It is owned by a
// single dispatch and must not be retained after the handler returns.
type Invocation struct {
	Message  Message
	Settings Settings
	Command  *Descriptor
	Token    string
	RawArgs  string
	Args     Args
	T        Translator
}

// Formatter returns a UsageFormatter bound to this invocation's settings and locale.
func (inv *Invocation) Formatter() UsageFormatter {
	return UsageFormatter{T: inv.T, Settings: inv.Settings}
}

// Reply sends p to the channel the command was invoked from.
func (inv *Invocation) Reply(ctx context.Context, p Payload) error {
	if inv.Message.Channel == nil {
		return errors.New("commands: message has no channel")
	}
	return inv.Message.Channel.Send(ctx, p)
}
