package helpers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const tallyKey = "reply_tally"

// ReplyTally counts the messages sent while one update is handled.
type ReplyTally struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// Add records one sent message.
func (t *ReplyTally) Add(withKeyboard bool) {
	if t == nil {
		return
	}
	t.messages.Add(1)
	if withKeyboard {
		t.keyboard.Store(true)
	}
}

// Counts returns the number of sent messages and whether any carried a keyboard.
func (t *ReplyTally) Counts() (int, bool) {
	if t == nil {
		return 0, false
	}
	return int(t.messages.Load()), t.keyboard.Load()
}

type tallyCtxKey struct{}

// InstallTally attaches a fresh tally to c and to the context stored on it.
func InstallTally(c tele.Context) *ReplyTally {
	t := &ReplyTally{}
	c.Set(tallyKey, t)
	if ctx, ok := stored(c); ok {
		store(c, context.WithValue(ctx, tallyCtxKey{}, t))
	}
	return t
}

// TallyOf returns the tally installed on c, if any.
func TallyOf(c tele.Context) *ReplyTally {
	if c == nil {
		return nil
	}
	t, _ := c.Get(tallyKey).(*ReplyTally)
	return t
}

// CountReply records a message sent on behalf of the update carried by ctx.
func CountReply(ctx context.Context, withKeyboard bool) {
	if ctx == nil {
		return
	}
	if t, ok := ctx.Value(tallyCtxKey{}).(*ReplyTally); ok {
		t.Add(withKeyboard)
	}
}
