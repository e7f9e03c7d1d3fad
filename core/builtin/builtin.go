// Package builtin provides the internal commands shipped with the bot.
// Plugins may override any of them by registering an external command of the same name.
package builtin

import (
	"time"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/settings"
)

// LocaleSet reports which locales have translations.
type LocaleSet interface {
	Supports(locale string) bool
	Locales() []string
}

// Deps are the collaborators built-in commands need.
type Deps struct {
	Registry *commands.Registry
	Store    settings.Repository
	// Locales is optional; without it any locale is accepted.
	Locales LocaleSet
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Units returns the built-in command units in registration order.
func Units(deps Deps) []commands.Unit {
	return []commands.Unit{
		help(deps),
		ping(deps),
		about(deps),
		category(deps),
		categories(deps),
		settingsCommand(deps),
	}
}

func translator(inv *commands.Invocation) commands.Translator {
	if inv.T != nil {
		return inv.T
	}
	return commands.KeyTranslator
}
