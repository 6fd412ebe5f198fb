package telegram

import (
	"strings"

	"github.com/m3rciful/gatebot/app/dispatch"
	"github.com/m3rciful/gatebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// EventFrom converts a telebot update into a dispatch event. Messages that
// are neither text nor video report false.
func EventFrom(c tele.Context) (dispatch.Event, bool) {
	ev := dispatch.Event{}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = dispatch.KindCallback
		ev.CallbackID = cb.ID
		ev.Action, ev.Payload = callbacks.Split(cb)
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
			if cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		return ev, true
	}

	m := c.Message()
	if m == nil {
		return ev, false
	}
	ev.MessageID = m.ID
	switch {
	case m.Video != nil:
		ev.Kind = dispatch.KindMedia
		ev.MediaRef = m.Video.FileID
	case m.Text != "":
		ev.Kind = dispatch.KindText
		ev.Text = m.Text
	default:
		return ev, false
	}
	return ev, true
}

// commandEvent builds the event of a command update; name has no slash.
func commandEvent(c tele.Context, name string) dispatch.Event {
	ev, _ := EventFrom(c)
	ev.Kind = dispatch.KindCommand
	ev.Command = name
	ev.Text = ""
	return ev
}

// commandName extracts "cancel" from "/cancel@gatebot arg".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}
