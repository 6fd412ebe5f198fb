package router

import (
	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a conversation session owner.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

type textRouter struct {
	fsm  FSM
	reg  *tg.Registry
	opts TextOptions
}

// TextRoutes builds handlers for free text and video messages.
// Updates from users with a session in progress go to the FSM first.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	r := &textRouter{fsm: fsm, reg: reg, opts: opts}
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(r.text)},
		{Endpoint: tele.OnVideo, Handler: wrap(r.media)},
	}
}

func (r *textRouter) text(c tele.Context) error {
	if inSession(r.fsm, c) {
		return begin("fsm").run(c, r.fsm.ManagerHandler)
	}
	if r.reg != nil {
		// Reply-keyboard buttons arrive as plain text matching a command label.
		if key, cmd, ok := r.reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
			return begin(handlerName(key)).run(c, cmd.Handler)
		}
		if fb := r.reg.TextFallback(); fb != nil {
			return begin("fallback").run(c, fb)
		}
	}
	if r.opts.UnknownText != nil {
		return begin("unknown_text").run(c, r.opts.UnknownText)
	}
	begin("unknown_text").skip(c)
	return nil
}

func (r *textRouter) media(c tele.Context) error {
	if inSession(r.fsm, c) {
		return begin("fsm_media").run(c, r.fsm.ManagerHandler)
	}
	if r.reg != nil {
		if fb := r.reg.MediaFallback(); fb != nil {
			return begin("media_fallback").run(c, fb)
		}
	}
	if r.opts.UnknownMedia != nil {
		return begin("unexpected_media").run(c, r.opts.UnknownMedia)
	}
	begin("unexpected_media").skip(c)
	return nil
}

func inSession(fsm FSM, c tele.Context) bool {
	if fsm == nil || c.Sender() == nil {
		return false
	}
	return fsm.InProgress(c.Sender().ID)
}
