package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/gatebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ctxKey is the tele.Context storage slot for the per-update context.Context.
const ctxKey = "update_ctx"

type rootCtx struct{ context.Context }

var root atomic.Pointer[rootCtx]

// SetBaseContext installs the process context every update context derives from.
// Cancelling it aborts in-flight handler work such as broadcasts.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		root.Store(nil)
		return
	}
	root.Store(&rootCtx{ctx})
}

// BaseContext returns the context installed by SetBaseContext or context.Background.
func BaseContext() context.Context {
	if r := root.Load(); r != nil {
		return r.Context
	}
	return context.Background()
}

// SenderID returns the id of the update sender or 0.
func SenderID(c tele.Context) int64 {
	if c == nil || c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func store(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

func stored(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the context.Context for the update carried by c. The
// first call derives it from BaseContext, tags it with the request id and the
// update, user and chat ids, and caches it on c.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := stored(c); ok {
		return ctx
	}
	updateID, userID, chat := c.Update().ID, SenderID(c), chatID(c)

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chat, userID)
	}
	ctx := logger.WithUpdateMeta(logger.WithRID(BaseContext(), rid), updateID, userID, chat)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	if t := TallyOf(c); t != nil {
		ctx = context.WithValue(ctx, tallyCtxKey{}, t)
	}
	store(c, ctx)
	return ctx
}

// WithHandler names the handler serving c so later log lines carry it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		store(c, ctx)
	}
	return ctx
}
