package builtin

import (
	"context"
	"errors"
	"strconv"

	"github.com/m3rciful/ticketbot/core/buildinfo"
	"github.com/m3rciful/ticketbot/core/commands"
)

func help(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		if deps.Registry == nil {
			return commands.Descriptor{}, errors.New("help: registry is required")
		}
		return commands.Descriptor{
			Name:        "help",
			Description: "Lists commands or explains one command",
			Aliases:     []string{"h", "commands"},
			Args: []commands.Arg{
				{Name: "command", Example: "ping", Description: "Command to explain"},
			},
			Internal: true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				t := translator(inv)
				f := inv.Formatter()
				if fields := inv.Args.Fields(); len(fields) > 0 {
					d, ok := deps.Registry.Lookup(fields[0])
					if !ok {
						return inv.Reply(ctx, f.Failure(t("help.title"), t("help.unknown", fields[0])))
					}
					p := f.Usage(d, fields[0])
					p.Colour = inv.Settings.SuccessColour
					return inv.Reply(ctx, p)
				}

				p := f.Success(t("help.title"), t("help.description", inv.Settings.CommandPrefix, inv.Token))
				for _, d := range deps.Registry.Commands() {
					desc := d.Description
					if desc == "" {
						desc = t("help.no_description")
					}
					p.Fields = append(p.Fields, commands.Field{
						Name:  "`" + inv.Settings.CommandPrefix + d.Name + "`",
						Value: desc,
					})
				}
				return inv.Reply(ctx, p)
			},
		}, nil
	}
}

func ping(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		return commands.Descriptor{
			Name:        "ping",
			Description: "Shows how long the bot took to receive the message",
			Internal:    true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				var latency int64
				if ts := inv.Message.Timestamp; !ts.IsZero() {
					latency = max(deps.now().Sub(ts).Milliseconds(), 0)
				}
				t := translator(inv)
				return inv.Reply(ctx, inv.Formatter().Success(t("ping.title"), t("ping.description", latency)))
			},
		}, nil
	}
}

func about(deps Deps) commands.Unit {
	return func() (commands.Descriptor, error) {
		return commands.Descriptor{
			Name:        "about",
			Description: "Shows version information",
			Internal:    true,
			Execute: func(ctx context.Context, inv *commands.Invocation) error {
				t := translator(inv)
				date := buildinfo.Date
				if date == "" {
					date = "-"
				}
				p := inv.Formatter().Success(t("about.title"),
					t("about.description", buildinfo.Version, buildinfo.Commit, date))
				if deps.Registry != nil {
					p.Fields = []commands.Field{{
						Name:   t("about.commands"),
						Value:  strconv.Itoa(deps.Registry.Len()),
						Inline: true,
					}}
				}
				return inv.Reply(ctx, p)
			},
		}, nil
	}
}
