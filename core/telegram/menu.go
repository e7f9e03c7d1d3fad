package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Bot API constraints on menu entries.
const (
	maxMenuName        = 32
	maxMenuDescription = 256
)

// MenuSetter publishes the bot command menu.
type MenuSetter interface {
	SetCommands(opts ...interface{}) error
}

// MenuCommands lists the registered commands that can appear in the Telegram menu.
// Commands gated by permissions or staff roles are left out, as are names
// the Bot API would reject.
func MenuCommands(reg *commands.Registry) []tele.Command {
	if reg == nil {
		return nil
	}
	var out []tele.Command
	for _, d := range reg.Commands() {
		if d.StaffOnly || len(d.Permissions) > 0 || !validMenuName(d.Name) {
			continue
		}
		desc := strings.TrimSpace(d.Description)
		if desc == "" {
			desc = d.Name
		}
		out = append(out, tele.Command{Text: d.Name, Description: truncate(desc, maxMenuDescription)})
	}
	return out
}

func validMenuName(name string) bool {
	if name == "" || len(name) > maxMenuName {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// SetupCommands publishes MenuCommands. Failures are logged and do not stop the bot.
func SetupCommands(ctx context.Context, bot MenuSetter, reg *commands.Registry) {
	cmds := MenuCommands(reg)
	if len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "menu.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Text)
	}
	summary, truncated := logger.SummarizeStrings(names, 10)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "menu.set",
		slog.Int("count", len(cmds)),
		slog.String("commands", summary),
		slog.Bool("truncated", truncated),
	)
}
