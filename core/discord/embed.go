package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/ticketbot/core/commands"
)

// Discord embed limits.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldName   = 256
	maxFieldValue  = 1024
)

// Embed renders a payload as a Discord embed, truncating to API limits.
func Embed(p commands.Payload) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Color:       p.Colour,
		Title:       truncate(p.Title, maxTitle),
		Description: truncate(p.Description, maxDescription),
	}
	for i, f := range p.Fields {
		if i == maxFields {
			break
		}
		name, value := f.Name, f.Value
		// Discord rejects empty field names and values.
		if name == "" {
			name = "\u200b"
		}
		if value == "" {
			value = "\u200b"
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(name, maxFieldName),
			Value:  truncate(value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	return e
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
