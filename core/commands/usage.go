package commands

import (
	"fmt"
	"strings"
)

// ColourOrange is used for execution error responses regardless of guild settings.
const ColourOrange = 0xE67E22

// UsageFormatter builds response payloads for one guild's settings and locale.
// It performs no I/O.
type UsageFormatter struct {
	T        Translator
	Settings Settings
}

func (f UsageFormatter) t(key string, args ...any) string {
	if f.T == nil {
		return KeyTranslator(key, args...)
	}
	return f.T(key, args...)
}

// Usage describes how to invoke d, as typed with token.
func (f UsageFormatter) Usage(d *Descriptor, token string) Payload {
	invocation := f.Settings.CommandPrefix + token
	pattern := make([]string, 0, len(d.Args))
	examples := make([]string, 0, len(d.Args))
	for _, a := range d.Args {
		name := a.Name
		example := a.Example
		if d.Mode == ModeNamed {
			name += ";"
			example = fmt.Sprintf("%s: %s;", a.Name, a.Example)
		}
		if a.Required {
			pattern = append(pattern, "<"+name+">")
		} else {
			pattern = append(pattern, "["+name+"]")
		}
		examples = append(examples, example)
	}
	usage := strings.TrimSpace(invocation + " " + strings.Join(pattern, " "))
	example := strings.TrimSpace(invocation + " " + strings.Join(examples, " "))

	description := f.t("cmd_usage.description", usage, example)
	if d.Mode == ModeNamed {
		description = f.t("cmd_usage.named_args") + description
	}

	p := Payload{
		Colour:      f.Settings.ErrorColour,
		Title:       f.t("cmd_usage.title", token),
		Description: description,
	}
	for _, a := range d.Args {
		p.Fields = append(p.Fields, f.argField(a))
	}
	return p
}

func (f UsageFormatter) argField(a Arg) Field {
	name := a.Name
	if a.Required {
		name = "`" + f.t("cmd_usage.args.required") + "` " + name
	}
	value := fmt.Sprintf("%s %s\n%s `%s`",
		f.t("cmd_usage.args.description"), a.Description,
		f.t("cmd_usage.args.example"), a.Example,
	)
	return Field{Name: name, Value: value}
}

// MissingPermissions lists the permission tokens the actor lacks.
func (f UsageFormatter) MissingPermissions(missing []Permission) Payload {
	quoted := make([]string, 0, len(missing))
	for _, p := range missing {
		quoted = append(quoted, "`"+string(p)+"`")
	}
	return Payload{
		Colour:      f.Settings.ErrorColour,
		Title:       f.t("missing_perms.title"),
		Description: f.t("missing_perms.description", strings.Join(quoted, ", ")),
	}
}

// StaffOnly reports that the command requires a staff role.
func (f UsageFormatter) StaffOnly() Payload {
	return Payload{
		Colour:      f.Settings.ErrorColour,
		Title:       f.t("staff_only.title"),
		Description: f.t("staff_only.description"),
	}
}

// ExecutionError is the generic failure notice; it never carries error details.
func (f UsageFormatter) ExecutionError() Payload {
	return Payload{
		Colour:      ColourOrange,
		Title:       f.t("command_execution_error.title"),
		Description: f.t("command_execution_error.description"),
	}
}

// Success builds a payload in the guild's success colour.
func (f UsageFormatter) Success(title, description string) Payload {
	return Payload{
		Colour:      f.Settings.SuccessColour,
		Title:       title,
		Description: description,
	}
}

// Failure builds a payload in the guild's error colour for a handled, user-facing error.
func (f UsageFormatter) Failure(title, description string) Payload {
	return Payload{
		Colour:      f.Settings.ErrorColour,
		Title:       title,
		Description: description,
	}
}
