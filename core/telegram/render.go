package telegram

import (
	"html"
	"strings"

	"github.com/m3rciful/ticketbot/core/commands"
)

// Bot API limit for message text, and the caps applied before escaping.
const (
	maxMessage     = 4096
	maxTitle       = 256
	maxDescription = 3072
	maxFieldName   = 256
	maxFieldValue  = 1024
)

// Render formats a payload as Telegram HTML. Sections that would push the
// message over the API limit are dropped and replaced by an ellipsis.
func Render(p commands.Payload) string {
	var sections []string
	if p.Title != "" {
		sections = append(sections, "<b>"+html.EscapeString(truncate(p.Title, maxTitle))+"</b>")
	}
	if p.Description != "" {
		sections = append(sections, html.EscapeString(truncate(p.Description, maxDescription)))
	}
	for _, f := range p.Fields {
		var b strings.Builder
		if f.Name != "" {
			b.WriteString("<b>" + html.EscapeString(truncate(f.Name, maxFieldName)) + "</b>")
		}
		if f.Value != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(html.EscapeString(truncate(f.Value, maxFieldValue)))
		}
		if b.Len() > 0 {
			sections = append(sections, b.String())
		}
	}

	var out strings.Builder
	size := 0
	for i, s := range sections {
		n := len([]rune(s))
		if i > 0 {
			n += 2
		}
		if size+n > maxMessage-2 {
			out.WriteString("\n…")
			break
		}
		if i > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(s)
		size += n
	}
	return out.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
