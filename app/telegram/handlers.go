package telegram

import (
	"context"
	"log/slog"

	"github.com/m3rciful/gatebot/app/dispatch"
	"github.com/m3rciful/gatebot/core/logger"
	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// Handler consumes dispatch events.
type Handler interface {
	Handle(ctx context.Context, ev dispatch.Event) error
}

// Sessions reports whether a user has an admin workflow in progress.
type Sessions interface {
	InProgress(userID int64) bool
}

// Bindings connects the dispatch router to the telebot registry.
type Bindings struct {
	Handler  Handler
	Sessions Sessions
	IsAdmin  func(int64) bool
}

// Register declares the bot's commands, callbacks and fallbacks on reg.
func (b Bindings) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.command(dispatch.CmdStart), Description: "Start the bot"}},
		{"/admin", commands.Command{Handler: b.command(dispatch.CmdAdmin), Description: "Open the admin panel", AdminOnly: true}},
		{"/stats", commands.Command{Handler: b.command(dispatch.CmdStats), Description: "Show statistics", AdminOnly: true}},
		{"/cancel", commands.Command{Handler: b.command(dispatch.CmdCancel), Description: "Cancel the current action", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	for _, key := range []string{dispatch.ActionCheckSub, dispatch.ActionMenu, dispatch.ActionCancel} {
		if err := reg.RegisterCallback(key, b.event); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.event)
	reg.SetTextFallback(b.event)
	reg.SetMediaFallback(b.event)
	return nil
}

// Routes builds the telebot routes for everything registered on reg.
func (b Bindings) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       b.IsAdmin,
		OnAdminReject: b.rejected,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{ManualRespond: true}))
	routes = append(routes, router.TextRoutes(sessionFSM{b}, reg, router.TextOptions{})...)
	return routes
}

func (b Bindings) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.Handler.Handle(tghelpers.BuildContext(c), commandEvent(c, name))
	}
}

// rejected forwards admin-only commands from other users so they get the
// router's refusal.
func (b Bindings) rejected(c tele.Context) error {
	name := commandName(c.Text())
	logger.FromContext(tghelpers.BuildContext(c)).Info("admin command rejected",
		slog.String("event", "access.reject"),
		slog.Int64("user_id", tghelpers.SenderID(c)),
		slog.String("command", name),
	)
	return b.Handler.Handle(tghelpers.BuildContext(c), commandEvent(c, name))
}

func (b Bindings) event(c tele.Context) error {
	ev, ok := EventFrom(c)
	if !ok {
		return nil
	}
	return b.Handler.Handle(tghelpers.BuildContext(c), ev)
}

// sessionFSM routes updates of administrators with an open workflow.
type sessionFSM struct{ b Bindings }

func (f sessionFSM) InProgress(userID int64) bool {
	if f.b.Sessions == nil || f.b.IsAdmin == nil || !f.b.IsAdmin(userID) {
		return false
	}
	return f.b.Sessions.InProgress(userID)
}

func (f sessionFSM) ManagerHandler(c tele.Context) error {
	return f.b.event(c)
}
