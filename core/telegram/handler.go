// Package telegram adapts Telegram group messages to the command dispatcher.
package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/sender"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher is the part of commands.Dispatcher the adapter needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg commands.Message) (commands.Result, error)
	DispatchToken(ctx context.Context, msg commands.Message, token, rawArgs string) (commands.Result, error)
}

// API is the subset of the Bot API used to reply and to resolve chat members.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Handler turns group messages into dispatcher calls.
type Handler struct {
	Dispatcher Dispatcher
	API        API
	Queue      *sender.Queue
	// Username is the bot's own username, used to filter "/cmd@otherbot".
	Username string
}

// HandleMessage processes one message. Private chats, channels and bot authors are ignored.
func (h *Handler) HandleMessage(ctx context.Context, m *tele.Message) (commands.Result, error) {
	ignored := commands.Result{Outcome: commands.OutcomeIgnored}
	if m == nil || m.Sender == nil || m.Chat == nil || m.Sender.IsBot {
		return ignored, nil
	}
	if !IsGroup(m.Chat) {
		return ignored, nil
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if strings.TrimSpace(text) == "" {
		return ignored, nil
	}

	msg := h.toMessage(m, text)
	if strings.HasPrefix(text, "/") {
		token, rest, ok := ParseCommand(text, h.Username)
		if !ok {
			return ignored, nil
		}
		return h.Dispatcher.DispatchToken(ctx, msg, token, rest)
	}
	return h.Dispatcher.Dispatch(ctx, msg)
}

// IsGroup reports whether chat is a group or supergroup.
func IsGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// ParseCommand splits "/name@bot rest" into the command token and the remaining text.
// ok is false when text is not a bot command or is addressed to another bot.
func ParseCommand(text, username string) (token, rest string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head := text[1:]
	if i := strings.IndexAny(head, " \t\n"); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		target := head[at+1:]
		head = head[:at]
		if username != "" && !strings.EqualFold(target, username) {
			return "", "", false
		}
	}
	if head == "" {
		return "", "", false
	}
	return head, rest, true
}

func (h *Handler) toMessage(m *tele.Message, text string) commands.Message {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	ts := m.Time()
	if m.Unixtime == 0 {
		ts = time.Now()
	}
	return commands.Message{
		ID:        strconv.Itoa(m.ID),
		GuildID:   chatID,
		ChannelID: chatID,
		Content:   text,
		Timestamp: ts,
		Author: commands.Actor{
			ID:     strconv.FormatInt(m.Sender.ID, 10),
			Tag:    userTag(m.Sender),
			Access: newChatAccess(h.API, m.Chat, m.Sender),
		},
		Channel: h.responder(m.Chat),
	}
}

func (h *Handler) responder(chat *tele.Chat) commands.Responder {
	send := func(_ context.Context, p commands.Payload) error {
		_, err := h.API.Send(chat, Render(p), &tele.SendOptions{ParseMode: tele.ModeHTML})
		return err
	}
	if h.Queue == nil {
		return commands.ResponderFunc(send)
	}
	return h.Queue.Responder("tg.send", "sendMessage", send)
}

func userTag(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}
