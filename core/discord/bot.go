// Package discord adapts Discord gateway messages to the command dispatcher.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/ticketbot/core/commands"
	coreconfig "github.com/m3rciful/ticketbot/core/config"
	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/ratelimit"
	"github.com/m3rciful/ticketbot/core/sender"
)

// Intents requested on the gateway. Message content is privileged and must be enabled for the application.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

// MessageDispatcher is the part of commands.Dispatcher the adapter needs.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg commands.Message) (commands.Result, error)
}

// EmbedSender posts an embed to a channel.
type EmbedSender func(ctx context.Context, channelID string, e *discordgo.MessageEmbed) error

// Handler turns MessageCreate events into dispatcher calls.
type Handler struct {
	Dispatcher  MessageDispatcher
	Queue       *sender.Queue
	Limiter     *ratelimit.Limiter
	Permissions PermissionSource
	Send        EmbedSender
}

// HandleMessage processes one event. selfID is the bot's own user id.
func (h *Handler) HandleMessage(ctx context.Context, selfID string, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	// Bots, including this one, never trigger commands; neither do direct messages.
	if m.Author.Bot || m.Author.ID == selfID || m.GuildID == "" {
		return
	}

	meta := logger.MessageMeta{
		Platform:  "discord",
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.Author.ID,
	}
	ctx = logger.WithMessageMeta(ctx, meta)
	ctx = logger.WithRID(ctx, meta.RID())

	msg := h.toMessage(m)
	msg.Admit = h.admit(ctx, m.Author.ID)
	start := time.Now()
	res, err := h.Dispatcher.Dispatch(ctx, msg)
	if err != nil {
		logger.LogEvent(ctx, logger.DG, slog.LevelError, "discord.dispatch_failed",
			slog.String("err", sender.SanitizeError(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}
	if res.Outcome != commands.OutcomeIgnored {
		logger.LogEvent(ctx, logger.DG, slog.LevelDebug, "discord.dispatched",
			slog.String("command", res.Command.Name),
			slog.String("outcome", res.Outcome.String()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// admit counts resolved commands against the author's budget. Plain chat never
// reaches it, so conversation does not use up the allowance for commands.
func (h *Handler) admit(ctx context.Context, authorID string) func(*commands.Descriptor) bool {
	return func(cmd *commands.Descriptor) bool {
		if h.Limiter.Allow(authorID, coreconfig.UpdateCommand) {
			return true
		}
		logger.LogEvent(ctx, logger.DG, slog.LevelWarn, "discord.rate_limit",
			slog.String("command", cmd.Name),
			slog.Bool("rate_limited", true),
		)
		return false
	}
}

func (h *Handler) toMessage(m *discordgo.MessageCreate) commands.Message {
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	channelID := m.ChannelID
	return commands.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: channelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Author: commands.Actor{
			ID:  m.Author.ID,
			Tag: m.Author.String(),
			Access: memberAccess{
				source:    h.Permissions,
				userID:    m.Author.ID,
				channelID: channelID,
				roles:     roles,
			},
		},
		Channel: h.responder(channelID),
	}
}

func (h *Handler) responder(channelID string) commands.Responder {
	send := func(ctx context.Context, p commands.Payload) error {
		return h.Send(ctx, channelID, Embed(p))
	}
	if h.Queue == nil {
		return commands.ResponderFunc(send)
	}
	return h.Queue.Responder("discord.embed", channelID, send)
}

// Options configures Run.
type Options struct {
	Token      string
	Dispatcher MessageDispatcher
	Queue      *sender.Queue
	Limiter    *ratelimit.Limiter
}

// Run connects to the gateway and handles messages until ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Dispatcher == nil {
		return errors.New("discord: dispatcher is required")
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return fmt.Errorf("discord: failed to create session: %w", err)
	}
	s.Identify.Intents = Intents

	h := &Handler{
		Dispatcher:  opts.Dispatcher,
		Queue:       opts.Queue,
		Limiter:     opts.Limiter,
		Permissions: sessionPermissions{s: s},
		Send: func(ctx context.Context, channelID string, e *discordgo.MessageEmbed) error {
			_, err := s.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx))
			return err
		},
	}

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.DG.Info("gateway ready",
			slog.String("event", "discord.ready"),
			slog.String("username", r.User.Username),
			slog.Int("count", len(r.Guilds)),
		)
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		cacheMember(s, m)
		h.HandleMessage(ctx, s.State.User.ID, m)
	})

	start := time.Now()
	if err := s.Open(); err != nil {
		return fmt.Errorf("discord: failed to open session: %w", sanitized(err))
	}
	logger.DG.Info("session opened",
		slog.String("event", "discord.open"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	<-ctx.Done()
	if err := s.Close(); err != nil {
		logger.DG.Warn("session close failed",
			slog.String("event", "discord.close"),
			slog.String("err", sender.SanitizeError(err)),
		)
	}
	return nil
}

// cacheMember stores the partial member carried by the event so permission
// lookups can be answered from the state cache.
func cacheMember(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State == nil || m.Member == nil || m.Author == nil || m.GuildID == "" {
		return
	}
	member := *m.Member
	member.User = m.Author
	member.GuildID = m.GuildID
	_ = s.State.MemberAdd(&member)
}

func sanitized(err error) error {
	return errors.New(sender.SanitizeError(err))
}
