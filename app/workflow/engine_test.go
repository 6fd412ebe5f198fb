package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/app/broadcast"
	"github.com/m3rciful/gatebot/core/telegram/state"
)

type memCatalog struct {
	entries map[string]string
	err     error
}

func (c *memCatalog) Upsert(_ context.Context, code, ref string) error {
	if c.err != nil {
		return c.err
	}
	c.entries[code] = ref
	return nil
}

func (c *memCatalog) Delete(_ context.Context, code string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.entries[code]
	delete(c.entries, code)
	return ok, nil
}

type memChannels struct {
	set map[string]struct{}
}

func (c *memChannels) Add(_ context.Context, id string) (bool, error) {
	if _, ok := c.set[id]; ok {
		return false, nil
	}
	c.set[id] = struct{}{}
	return true, nil
}

func (c *memChannels) Remove(_ context.Context, id string) (bool, error) {
	_, ok := c.set[id]
	delete(c.set, id)
	return ok, nil
}

type recordingBroadcaster struct {
	texts []string
	rep   broadcast.Report
	err   error
}

func (b *recordingBroadcaster) Send(_ context.Context, text string) (broadcast.Report, error) {
	b.texts = append(b.texts, text)
	return b.rep, b.err
}

type fixture struct {
	engine   *Engine
	sessions state.Manager
	catalog  *memCatalog
	channels *memChannels
	bcast    *recordingBroadcaster
}

func newFixture(opts state.Options) *fixture {
	f := &fixture{
		sessions: state.NewMemoryManager(opts),
		catalog:  &memCatalog{entries: map[string]string{}},
		channels: &memChannels{set: map[string]struct{}{}},
		bcast:    &recordingBroadcaster{},
	}
	f.engine = New(f.sessions, Deps{Catalog: f.catalog, Channels: f.channels, Broadcaster: f.bcast})
	return f
}

const admin = int64(100)

func TestAddEntryFlow(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()

	step, discarded, err := f.engine.Begin(ctx, admin, FlowAddEntry)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingMedia, step)
	assert.Empty(t, discarded)
	assert.True(t, f.engine.Expects(admin, InputMedia))
	assert.False(t, f.engine.Expects(admin, InputText))

	_, err = f.engine.Submit(ctx, admin, TextInput("42"))
	require.ErrorIs(t, err, ErrUnexpectedInput)

	out, err := f.engine.Submit(ctx, admin, MediaInput("file-M"))
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Equal(t, StepAwaitingCode, out.Next)

	out, err = f.engine.Submit(ctx, admin, TextInput("   "))
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, StepAwaitingCode, out.Next)
	_, st, ok := f.engine.Current(admin)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingCode, st)

	out, err = f.engine.Submit(ctx, admin, TextInput(" 42 "))
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, "42", out.Key)
	assert.Equal(t, map[string]string{"42": "file-M"}, f.catalog.entries)
	assert.False(t, f.engine.InProgress(admin))
}

func TestAddEntryOverwritesExistingCode(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()
	f.catalog.entries["42"] = "old"

	_, _, err := f.engine.Begin(ctx, admin, FlowAddEntry)
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, admin, MediaInput("new"))
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, admin, TextInput("42"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"42": "new"}, f.catalog.entries)
}

func TestNewFlowReplacesSession(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()
	f.catalog.entries["42"] = "keep-me-gone"

	_, _, err := f.engine.Begin(ctx, admin, FlowAddEntry)
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, admin, MediaInput("file-M"))
	require.NoError(t, err)

	step, discarded, err := f.engine.Begin(ctx, admin, FlowDeleteEntry)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingCode, step)
	assert.Equal(t, FlowAddEntry, discarded)

	out, err := f.engine.Submit(ctx, admin, TextInput("42"))
	require.NoError(t, err)
	assert.Equal(t, FlowDeleteEntry, out.Flow)
	assert.True(t, out.Changed)
	assert.Empty(t, f.catalog.entries, "text must reach the delete flow, not the discarded add flow")
}

func TestDeleteMissingEntryReportsUnchanged(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()

	_, _, err := f.engine.Begin(ctx, admin, FlowDeleteEntry)
	require.NoError(t, err)
	out, err := f.engine.Submit(ctx, admin, TextInput("nope"))
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.False(t, out.Changed)
}

func TestChannelFlows(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()

	for i, wantChanged := range []bool{true, false} {
		_, _, err := f.engine.Begin(ctx, admin, FlowAddChannel)
		require.NoError(t, err)
		out, err := f.engine.Submit(ctx, admin, TextInput("  @news "))
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, "@news", out.Key)
		assert.Equal(t, wantChanged, out.Changed, "attempt %d", i)
	}
	assert.Len(t, f.channels.set, 1)

	_, _, err := f.engine.Begin(ctx, admin, FlowRemoveChannel)
	require.NoError(t, err)
	out, err := f.engine.Submit(ctx, admin, TextInput("@news"))
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Empty(t, f.channels.set)
}

func TestStoreFailureKeepsSession(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()
	f.catalog.err = errors.New("disk full")

	_, _, err := f.engine.Begin(ctx, admin, FlowDeleteEntry)
	require.NoError(t, err)
	out, err := f.engine.Submit(ctx, admin, TextInput("42"))
	require.Error(t, err)
	assert.False(t, out.Done)
	assert.True(t, f.engine.InProgress(admin))

	f.catalog.err = nil
	out, err = f.engine.Submit(ctx, admin, TextInput("42"))
	require.NoError(t, err)
	assert.True(t, out.Done)
}

func TestBroadcastFlow(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()
	f.bcast.rep = broadcast.Report{Total: 3, Delivered: 2, Failed: 1}

	_, _, err := f.engine.Begin(ctx, admin, FlowBroadcast)
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, admin, TextInput(" \n "))
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, f.bcast.texts)

	out, err := f.engine.Submit(ctx, admin, TextInput("Hello\nworld"))
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, 3, out.Report.Total)
	assert.Equal(t, 2, out.Report.Delivered)
	assert.Equal(t, []string{"Hello\nworld"}, f.bcast.texts)
	assert.False(t, f.engine.InProgress(admin))
}

func TestInterruptedBroadcastStillCompletes(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()
	f.bcast.rep = broadcast.Report{Total: 2, Delivered: 1, Failed: 1, Results: []broadcast.Result{{UserID: 1}, {UserID: 2, Err: context.Canceled}}}
	f.bcast.err = context.Canceled

	_, _, err := f.engine.Begin(ctx, admin, FlowBroadcast)
	require.NoError(t, err)
	out, err := f.engine.Submit(ctx, admin, TextInput("hi"))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, out.Done)
	assert.False(t, f.engine.InProgress(admin))
}

func TestCancel(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()

	_, ok := f.engine.Cancel(ctx, admin)
	assert.False(t, ok)

	_, _, err := f.engine.Begin(ctx, admin, FlowAddChannel)
	require.NoError(t, err)
	flow, ok := f.engine.Cancel(ctx, admin)
	assert.True(t, ok)
	assert.Equal(t, FlowAddChannel, flow)

	_, err = f.engine.Submit(ctx, admin, TextInput("@x"))
	require.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.channels.set)
}

func TestSessionsArePerAdmin(t *testing.T) {
	f := newFixture(state.Options{})
	ctx := context.Background()

	_, _, err := f.engine.Begin(ctx, 1, FlowAddChannel)
	require.NoError(t, err)
	_, _, err = f.engine.Begin(ctx, 2, FlowRemoveChannel)
	require.NoError(t, err)

	out, err := f.engine.Submit(ctx, 1, TextInput("@a"))
	require.NoError(t, err)
	assert.Equal(t, FlowAddChannel, out.Flow)

	flow, _, ok := f.engine.Current(2)
	require.True(t, ok)
	assert.Equal(t, FlowRemoveChannel, flow)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var expired []state.State
	f := newFixture(state.Options{
		TTL:      time.Minute,
		Now:      func() time.Time { return now },
		OnExpire: func(_ int64, st state.State) { expired = append(expired, st) },
	})
	ctx := context.Background()

	_, _, err := f.engine.Begin(ctx, admin, FlowAddChannel)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	_, err = f.engine.Submit(ctx, admin, TextInput("@late"))
	require.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.channels.set)
	assert.Equal(t, []state.State{encodeState(FlowAddChannel, StepAwaitingIdentifier)}, expired)
}

func TestBeginRejectsUnknownFlow(t *testing.T) {
	f := newFixture(state.Options{})
	_, _, err := f.engine.Begin(context.Background(), admin, Flow("rename"))
	require.ErrorIs(t, err, ErrUnknownFlow)
	assert.False(t, f.engine.InProgress(admin))
}

func TestParseState(t *testing.T) {
	flow, step, ok := ParseState(encodeState(FlowAddEntry, StepAwaitingCode))
	require.True(t, ok)
	assert.Equal(t, FlowAddEntry, flow)
	assert.Equal(t, StepAwaitingCode, step)

	for _, raw := range []state.State{state.StateIdle, "add_entry", "add_entry:awaiting_text", "nope:awaiting_code"} {
		_, _, ok := ParseState(raw)
		assert.False(t, ok, "%q", raw)
	}
}
