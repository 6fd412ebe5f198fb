// Package telegram adapts telebot to the bot's domain: it implements the chat
// transport and membership queries, and turns updates into dispatch events.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/m3rciful/gatebot/app/gate"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by Transport calls made before Bind.
var ErrNotBound = errors.New("telegram transport: bot not bound")

// BotAPI is the part of *tele.Bot the transport uses.
type BotAPI interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Transport implements the outbound chat operations and membership queries.
// Sends whose result matters go through the dispatcher synchronously; deletes
// and callback answers are queued.
type Transport struct {
	mu  sync.RWMutex
	api BotAPI
}

// NewTransport returns an unbound Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Bind attaches the bot. It is called once the bot is built.
func (t *Transport) Bind(api BotAPI) {
	t.mu.Lock()
	t.api = api
	t.mu.Unlock()
}

func (t *Transport) bot() (BotAPI, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.api == nil {
		return nil, ErrNotBound
	}
	return t.api, nil
}

// SendText sends text to chatID with an optional inline keyboard.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, rows [][]keyboard.InlineBtn) error {
	api, err := t.bot()
	if err != nil {
		return err
	}
	var opts []any
	if len(rows) > 0 {
		opts = append(opts, keyboard.InlineButtonsRows(rows...))
	}
	return tghelpers.Sync(ctx, "send_text", "sendMessage", func() error {
		return withContext(ctx, func() error {
			_, err := api.Send(&tele.Chat{ID: chatID}, text, opts...)
			if err == nil {
				tghelpers.CountReply(ctx, len(rows) > 0)
			}
			return err
		})
	})
}

// SendMedia sends the stored video mediaRef to chatID.
func (t *Transport) SendMedia(ctx context.Context, chatID int64, mediaRef, caption string) error {
	api, err := t.bot()
	if err != nil {
		return err
	}
	video := &tele.Video{File: tele.File{FileID: mediaRef}, Caption: caption}
	return tghelpers.Sync(ctx, "send_media", "sendVideo", func() error {
		return withContext(ctx, func() error {
			_, err := api.Send(&tele.Chat{ID: chatID}, video)
			if err == nil {
				tghelpers.CountReply(ctx, false)
			}
			return err
		})
	})
}

// DeleteMessage removes a message; the call is queued.
func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	api, err := t.bot()
	if err != nil {
		return err
	}
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return tghelpers.Async(ctx, "delete_message", "deleteMessage", func() error {
		return api.Delete(msg)
	})
}

// AnswerCallback answers a callback query; the call is queued.
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	api, err := t.bot()
	if err != nil {
		return err
	}
	resp := &tele.CallbackResponse{Text: text, ShowAlert: alert}
	return tghelpers.Async(ctx, "answer_callback", "answerCallbackQuery", func() error {
		return api.Respond(&tele.Callback{ID: callbackID}, resp)
	})
}

// Membership reports the status of userID in channel.
func (t *Transport) Membership(ctx context.Context, channel string, userID int64) (gate.Status, error) {
	api, err := t.bot()
	if err != nil {
		return "", err
	}
	var member *tele.ChatMember
	err = withContext(ctx, func() error {
		var err error
		member, err = api.ChatMemberOf(ChannelRecipient(channel), &tele.User{ID: userID})
		return err
	})
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", errors.New("telegram transport: empty chat member")
	}
	return gate.Status(member.Role), nil
}

// Broadcaster returns the single-recipient sender used for broadcasts.
func (t *Transport) Broadcaster() UserSender {
	return UserSender{t: t}
}

// UserSender sends plain texts to users.
type UserSender struct{ t *Transport }

// SendText delivers text to userID without a keyboard.
func (s UserSender) SendText(ctx context.Context, userID int64, text string) error {
	return s.t.SendText(ctx, userID, text, nil)
}

// chatRef addresses a chat by @username or numeric id.
type chatRef string

func (c chatRef) Recipient() string { return string(c) }

// ChannelRecipient maps a stored channel identifier to a Bot API chat id.
// Links such as t.me/name become @name.
func ChannelRecipient(identifier string) tele.Recipient {
	id := strings.TrimSpace(identifier)
	if i := strings.Index(id, "t.me/"); i >= 0 {
		name := strings.Trim(id[i+len("t.me/"):], "/")
		if name != "" && !strings.HasPrefix(name, "+") {
			return chatRef("@" + name)
		}
	}
	return chatRef(id)
}

// withContext runs fn and stops waiting when ctx ends.
func withContext(ctx context.Context, fn func() error) error {
	if ctx == nil || ctx.Done() == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
