package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/app/dispatch"
	tg "github.com/m3rciful/gatebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the tele.Context methods the handlers touch.
type fakeContext struct {
	tele.Context
	sender *tele.User
	chat   *tele.Chat
	msg    *tele.Message
	cb     *tele.Callback
	store  map[string]any
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Message() *tele.Message   { return f.msg }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 1} }

func (f *fakeContext) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}

func (f *fakeContext) Get(key string) any {
	return f.store[key]
}

func (f *fakeContext) Set(key string, v any) {
	if f.store == nil {
		f.store = map[string]any{}
	}
	f.store[key] = v
}

func textContext(userID int64, text string) *fakeContext {
	chat := &tele.Chat{ID: userID}
	return &fakeContext{
		sender: &tele.User{ID: userID},
		chat:   chat,
		msg:    &tele.Message{ID: 10, Text: text, Chat: chat},
	}
}

type recorder struct{ events []dispatch.Event }

func (r *recorder) Handle(_ context.Context, ev dispatch.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type sessions map[int64]bool

func (s sessions) InProgress(id int64) bool { return s[id] }

func TestEventFrom(t *testing.T) {
	ev, ok := EventFrom(textContext(5, " 007 "))
	require.True(t, ok)
	assert.Equal(t, dispatch.Event{Kind: dispatch.KindText, UserID: 5, ChatID: 5, MessageID: 10, Text: " 007 "}, ev)

	video := textContext(5, "")
	video.msg.Video = &tele.Video{File: tele.File{FileID: "vid"}}
	ev, ok = EventFrom(video)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindMedia, ev.Kind)
	assert.Equal(t, "vid", ev.MediaRef)

	sticker := textContext(5, "")
	_, ok = EventFrom(sticker)
	assert.False(t, ok)

	chat := &tele.Chat{ID: 77}
	cb := &fakeContext{
		sender: &tele.User{ID: 5},
		cb: &tele.Callback{
			ID:      "q",
			Data:    "\f" + dispatch.ActionMenu + "|add_entry",
			Message: &tele.Message{ID: 3, Chat: chat},
		},
	}
	ev, ok = EventFrom(cb)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindCallback, ev.Kind)
	assert.Equal(t, "q", ev.CallbackID)
	assert.Equal(t, dispatch.ActionMenu, ev.Action)
	assert.Equal(t, "add_entry", ev.Payload)
	assert.Equal(t, 3, ev.MessageID)
	assert.Equal(t, int64(77), ev.ChatID)
}

func TestCommandName(t *testing.T) {
	for in, want := range map[string]string{
		"/cancel":            "cancel",
		"/Stats@gatebot":     "stats",
		"/admin extra words": "admin",
		"":                   "",
	} {
		assert.Equal(t, want, commandName(in), in)
	}
}

func TestRegisterDeclaresCommandsAndCallbacks(t *testing.T) {
	reg := tg.NewRegistry()
	rec := &recorder{}
	b := Bindings{Handler: rec, Sessions: sessions{}, IsAdmin: func(id int64) bool { return id == 1 }}
	require.NoError(t, b.Register(reg))

	public := reg.ListCommands(true)
	require.Len(t, public, 1)
	assert.Equal(t, "/start", public[0].Text)
	assert.Len(t, reg.ListCommands(false), 4)
	assert.Equal(t, []string{dispatch.ActionMenu, dispatch.ActionCheckSub, dispatch.ActionCancel}, reg.ListCallbacks())

	_, cmd, ok := reg.LookupCommand("/start")
	require.True(t, ok)
	require.NoError(t, cmd.Handler(textContext(9, "/start")))
	require.Len(t, rec.events, 1)
	assert.Equal(t, dispatch.Event{Kind: dispatch.KindCommand, UserID: 9, ChatID: 9, MessageID: 10, Command: dispatch.CmdStart}, rec.events[0])

	require.NoError(t, reg.TextFallback()(textContext(9, "007")))
	assert.Equal(t, "007", rec.events[1].Text)
	assert.NotEmpty(t, b.Routes(reg))
}

func TestRejectedAdminCommandReachesRouter(t *testing.T) {
	rec := &recorder{}
	b := Bindings{Handler: rec, IsAdmin: func(int64) bool { return false }}

	require.NoError(t, b.rejected(textContext(9, "/cancel@gatebot")))
	require.Len(t, rec.events, 1)
	assert.Equal(t, dispatch.CmdCancel, rec.events[0].Command)
}

func TestSessionFSMOnlyForAdmins(t *testing.T) {
	b := Bindings{Handler: &recorder{}, Sessions: sessions{1: true, 2: true}, IsAdmin: func(id int64) bool { return id == 1 }}
	fsm := sessionFSM{b}

	assert.True(t, fsm.InProgress(1))
	assert.False(t, fsm.InProgress(2))
	assert.False(t, fsm.InProgress(3))
}
