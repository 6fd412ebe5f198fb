package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/app/broadcast"
	"github.com/m3rciful/gatebot/app/gate"
	"github.com/m3rciful/gatebot/app/store"
	"github.com/m3rciful/gatebot/app/workflow"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/core/telegram/state"
)

type sentText struct {
	chatID int64
	text   string
	rows   [][]keyboard.InlineBtn
}

type sentMedia struct {
	chatID  int64
	ref     string
	caption string
}

type answered struct {
	id    string
	text  string
	alert bool
}

type fakeTransport struct {
	mu       sync.Mutex
	texts    []sentText
	media    []sentMedia
	deleted  []int
	answers  []answered
	mediaErr error
	failFor  map[int64]bool
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, rows [][]keyboard.InlineBtn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	f.texts = append(f.texts, sentText{chatID: chatID, text: text, rows: rows})
	return nil
}

func (f *fakeTransport) SendMedia(_ context.Context, chatID int64, ref, caption string) error {
	if f.mediaErr != nil {
		return f.mediaErr
	}
	f.media = append(f.media, sentMedia{chatID: chatID, ref: ref, caption: caption})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, id, text string, alert bool) error {
	f.answers = append(f.answers, answered{id: id, text: text, alert: alert})
	return nil
}

func (f *fakeTransport) last() sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return sentText{}
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeTransport) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.texts {
		if t.chatID == chatID {
			out = append(out, t.text)
		}
	}
	return out
}

type memCatalog struct {
	entries map[string]string
	getErr  error
}

func (c *memCatalog) Get(_ context.Context, code string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	ref, ok := c.entries[code]
	if !ok {
		return "", store.ErrNotFound
	}
	return ref, nil
}

func (c *memCatalog) Upsert(_ context.Context, code, ref string) error {
	c.entries[code] = ref
	return nil
}

func (c *memCatalog) Delete(_ context.Context, code string) (bool, error) {
	_, ok := c.entries[code]
	delete(c.entries, code)
	return ok, nil
}

type memChannels struct {
	list []string
}

func (c *memChannels) List(context.Context) ([]string, error) {
	return append([]string(nil), c.list...), nil
}

func (c *memChannels) Add(_ context.Context, id string) (bool, error) {
	for _, have := range c.list {
		if have == id {
			return false, nil
		}
	}
	c.list = append(c.list, id)
	return true, nil
}

func (c *memChannels) Remove(_ context.Context, id string) (bool, error) {
	for i, have := range c.list {
		if have == id {
			c.list = append(c.list[:i], c.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memUsers struct {
	mu  sync.Mutex
	ids []int64
}

func (u *memUsers) Register(_ context.Context, id int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, have := range u.ids {
		if have == id {
			return false, nil
		}
	}
	u.ids = append(u.ids, id)
	return true, nil
}

func (u *memUsers) List(context.Context) ([]int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int64(nil), u.ids...), nil
}

type fixedStats struct{}

func (fixedStats) Stats(context.Context) (store.Stats, error) {
	return store.Stats{Users: 3, Entries: 2, Channels: 1}, nil
}

type membership map[string]map[int64]gate.Status

func (m membership) Membership(_ context.Context, channel string, userID int64) (gate.Status, error) {
	if st, ok := m[channel][userID]; ok {
		return st, nil
	}
	return gate.StatusLeft, nil
}

// textSender adapts the fake transport to the broadcast sender.
type textSender struct{ t *fakeTransport }

func (s textSender) SendText(ctx context.Context, userID int64, text string) error {
	return s.t.SendText(ctx, userID, text, nil)
}

const (
	adminID = int64(1)
	userID  = int64(500)
)

type harness struct {
	router    *Router
	transport *fakeTransport
	catalog   *memCatalog
	channels  *memChannels
	users     *memUsers
	members   membership
	engine    *workflow.Engine
}

func newHarness() *harness {
	h := &harness{
		transport: &fakeTransport{failFor: map[int64]bool{}},
		catalog:   &memCatalog{entries: map[string]string{}},
		channels:  &memChannels{},
		users:     &memUsers{},
		members:   membership{},
	}
	b := broadcast.New(h.users, textSender{h.transport}, broadcast.Options{})
	h.engine = workflow.New(state.NewMemoryManager(state.Options{}), workflow.Deps{
		Catalog:     h.catalog,
		Channels:    h.channels,
		Broadcaster: b,
	})
	h.router = New(Deps{
		Transport: h.transport,
		Gate:      gate.New(h.channels, h.members, gate.Options{}),
		Catalog:   h.catalog,
		Users:     h.users,
		Stats:     fixedStats{},
		Workflow:  h.engine,
		IsAdmin:   func(id int64) bool { return id == adminID },
	})
	return h
}

func (h *harness) send(t *testing.T, ev Event) {
	t.Helper()
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	require.NoError(t, h.router.Handle(context.Background(), ev))
}

func menuTap(user int64, payload string) Event {
	return Event{Kind: KindCallback, UserID: user, CallbackID: "cb", Action: ActionMenu, Payload: payload}
}

func text(user int64, s string) Event { return Event{Kind: KindText, UserID: user, Text: s} }

func TestAddEntryThenLookup(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(adminID, string(workflow.FlowAddEntry)))
	assert.Equal(t, promptFor(workflow.FlowAddEntry, workflow.StepAwaitingMedia), h.transport.last().text)
	assert.Equal(t, ActionCancel, h.transport.last().rows[0][0].Unique)

	h.send(t, Event{Kind: KindMedia, UserID: adminID, MediaRef: "m1"})
	h.send(t, text(adminID, "007"))
	assert.Equal(t, map[string]string{"007": "m1"}, h.catalog.entries)
	assert.Equal(t, menuRows(), h.transport.last().rows, "menu is shown again after a completed flow")

	h.send(t, text(userID, " 007 "))
	require.Len(t, h.transport.media, 1)
	assert.Equal(t, sentMedia{chatID: userID, ref: "m1", caption: textCaption}, h.transport.media[0])

	h.send(t, text(userID, "xyz"))
	assert.Equal(t, textNotFound, h.transport.last().text)
	assert.Len(t, h.transport.media, 1)
}

func TestDeleteThenLookupIsNotFound(t *testing.T) {
	h := newHarness()
	h.catalog.entries["007"] = "m1"

	h.send(t, menuTap(adminID, string(workflow.FlowDeleteEntry)))
	h.send(t, text(adminID, "007"))
	assert.Empty(t, h.catalog.entries)

	h.send(t, text(userID, "007"))
	assert.Equal(t, textNotFound, h.transport.last().text)
}

func TestGatingChannelBlocksLookup(t *testing.T) {
	h := newHarness()
	h.catalog.entries["007"] = "m1"

	h.send(t, menuTap(adminID, string(workflow.FlowAddChannel)))
	h.send(t, text(adminID, "@chan1"))
	assert.Equal(t, []string{"@chan1"}, h.channels.list)

	h.send(t, text(userID, "007"))
	assert.Empty(t, h.transport.media)
	last := h.transport.last()
	assert.Equal(t, textGateRetry, last.text)
	require.Len(t, last.rows, 2)
	assert.Equal(t, "https://t.me/chan1", last.rows[0][0].URL)
	assert.Equal(t, ActionCheckSub, last.rows[1][0].Unique)
}

func TestCheckSubscription(t *testing.T) {
	h := newHarness()
	h.channels.list = []string{"@chan1"}

	h.send(t, Event{Kind: KindCallback, UserID: userID, CallbackID: "q1", Action: ActionCheckSub, MessageID: 77})
	assert.Equal(t, []answered{{id: "q1", text: textNotSubscribed, alert: true}}, h.transport.answers)
	assert.Empty(t, h.transport.deleted)
	assert.Empty(t, h.transport.texts)

	h.members["@chan1"] = map[int64]gate.Status{userID: gate.StatusMember}
	h.send(t, Event{Kind: KindCallback, UserID: userID, CallbackID: "q2", Action: ActionCheckSub, MessageID: 77})
	assert.Equal(t, []int{77}, h.transport.deleted)
	assert.Equal(t, textConfirmed, h.transport.last().text)
	assert.False(t, h.transport.answers[1].alert)
}

func TestStartCommand(t *testing.T) {
	h := newHarness()

	h.send(t, Event{Kind: KindCommand, UserID: adminID, Command: CmdStart})
	assert.Equal(t, textAdminMenu, h.transport.last().text)
	assert.Equal(t, menuRows(), h.transport.last().rows)

	h.send(t, Event{Kind: KindCommand, UserID: userID, Command: CmdStart})
	assert.Equal(t, textAskCode, h.transport.last().text)

	h.channels.list = []string{"@chan1", "-1001234"}
	h.send(t, Event{Kind: KindCommand, UserID: userID, Command: CmdStart})
	last := h.transport.last()
	assert.Equal(t, textGateStart, last.text)
	require.Len(t, last.rows, 2, "numeric channel ids get no link button")

	assert.Equal(t, []int64{adminID, userID}, h.users.ids)
}

func TestAdminTextOutsideSessionIsIgnored(t *testing.T) {
	h := newHarness()
	h.catalog.entries["007"] = "m1"

	h.send(t, text(adminID, "007"))
	h.send(t, Event{Kind: KindMedia, UserID: userID, MediaRef: "x"})
	assert.Empty(t, h.transport.texts)
	assert.Empty(t, h.transport.media)
}

func TestAdminActionsRejectedForUsers(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(userID, string(workflow.FlowBroadcast)))
	assert.Equal(t, []answered{{id: "cb", text: textUnsupported}}, h.transport.answers)
	_, _, active := h.engine.Current(userID)
	assert.False(t, active)

	for _, cmd := range []string{CmdCancel, CmdStats, CmdAdmin} {
		h.send(t, Event{Kind: KindCommand, UserID: userID, Command: cmd})
		assert.Equal(t, textUnsupported, h.transport.last().text, cmd)
	}

	h.send(t, Event{Kind: KindCallback, UserID: adminID, CallbackID: "x", Action: "unknown"})
	assert.Equal(t, textUnsupported, h.transport.answers[len(h.transport.answers)-1].text)
}

func TestWrongInputKindRepeatsPrompt(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(adminID, string(workflow.FlowAddEntry)))
	h.send(t, text(adminID, "007"))

	assert.True(t, strings.HasPrefix(h.transport.last().text, textWrongMedia))
	assert.Contains(t, h.transport.last().text, promptFor(workflow.FlowAddEntry, workflow.StepAwaitingMedia))
	_, step, ok := h.engine.Current(adminID)
	require.True(t, ok)
	assert.Equal(t, workflow.StepAwaitingMedia, step)
	assert.Empty(t, h.catalog.entries)
}

func TestEmptyKeyIsRejected(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(adminID, string(workflow.FlowAddChannel)))
	h.send(t, text(adminID, "   "))
	assert.True(t, strings.HasPrefix(h.transport.last().text, textEmptyInput))
	assert.Empty(t, h.channels.list)

	h.send(t, text(adminID, "@ok"))
	assert.Equal(t, []string{"@ok"}, h.channels.list)
}

func TestStartingFlowReportsDiscardedOne(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(adminID, string(workflow.FlowAddEntry)))
	h.send(t, menuTap(adminID, string(workflow.FlowBroadcast)))

	got := h.transport.textsTo(adminID)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, discardedNotice(workflow.FlowAddEntry), got[len(got)-2])
	assert.Equal(t, promptFor(workflow.FlowBroadcast, workflow.StepAwaitingText), got[len(got)-1])
}

func TestCancel(t *testing.T) {
	h := newHarness()

	h.send(t, Event{Kind: KindCommand, UserID: adminID, Command: CmdCancel})
	assert.Equal(t, textNothingToCancel, h.transport.last().text)

	h.send(t, menuTap(adminID, string(workflow.FlowDeleteEntry)))
	h.send(t, Event{Kind: KindCallback, UserID: adminID, CallbackID: "c", Action: ActionCancel, Payload: "cancel"})
	assert.Equal(t, textCancelled, h.transport.last().text)

	h.catalog.entries["007"] = "m1"
	h.send(t, text(adminID, "007"))
	assert.Equal(t, map[string]string{"007": "m1"}, h.catalog.entries)
}

func TestBroadcastReportsFailures(t *testing.T) {
	h := newHarness()
	for _, id := range []int64{10, 11, 12} {
		h.send(t, Event{Kind: KindCommand, UserID: id, Command: CmdStart})
	}
	h.transport.failFor[11] = true

	h.send(t, menuTap(adminID, string(workflow.FlowBroadcast)))
	h.send(t, text(adminID, "news"))

	assert.Contains(t, h.transport.textsTo(10), "news")
	assert.Contains(t, h.transport.textsTo(12), "news")
	report := h.transport.last().text
	assert.Contains(t, report, "Recipients: 3")
	assert.Contains(t, report, "Delivered: 2")
	assert.Contains(t, report, "Failed: 1")
}

func TestStatsMenu(t *testing.T) {
	h := newHarness()

	h.send(t, menuTap(adminID, MenuStats))
	assert.Equal(t, statsText(store.Stats{Users: 3, Entries: 2, Channels: 1}), h.transport.last().text)
}

func TestDeliveryFailuresFallBack(t *testing.T) {
	h := newHarness()
	h.catalog.entries["007"] = "m1"
	h.transport.mediaErr = errors.New("wrong file identifier")

	h.send(t, text(userID, "007"))
	assert.Equal(t, textDeliveryFailed, h.transport.last().text)

	h.transport.mediaErr = nil
	h.catalog.getErr = errors.New("database is locked")
	h.send(t, text(userID, "007"))
	assert.Equal(t, textDeliveryFailed, h.transport.last().text)
}

func TestReplyErrorIsReturned(t *testing.T) {
	h := newHarness()
	h.transport.failFor[userID] = true

	err := h.router.Handle(context.Background(), text(userID, "xyz"))
	require.Error(t, err)
}

func TestChannelURL(t *testing.T) {
	for in, want := range map[string]string{
		"@chan1":               "https://t.me/chan1",
		"chan2":                "https://t.me/chan2",
		"t.me/chan3":           "https://t.me/chan3",
		"https://t.me/+AbCdEf": "https://t.me/+AbCdEf",
		"-1001234567890":       "",
		"@":                    "",
		"  ":                   "",
	} {
		got, ok := ChannelURL(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, want != "", ok, in)
	}
}
