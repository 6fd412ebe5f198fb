// Package dispatch routes inbound events to the admin workflow engine, the
// admin menu or the plain-user path guarded by the subscription gate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/gatebot/app/gate"
	"github.com/m3rciful/gatebot/app/metrics"
	"github.com/m3rciful/gatebot/app/store"
	"github.com/m3rciful/gatebot/app/workflow"
	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"
)

// Transport performs the outbound chat operations.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, rows [][]keyboard.InlineBtn) error
	SendMedia(ctx context.Context, chatID int64, mediaRef, caption string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Gatekeeper decides whether a user passed the subscription gate.
type Gatekeeper interface {
	Check(ctx context.Context, userID int64) gate.Result
}

// Catalog resolves codes to media references.
type Catalog interface {
	Get(ctx context.Context, code string) (string, error)
}

// Users registers users seen by the bot.
type Users interface {
	Register(ctx context.Context, id int64) (bool, error)
}

// StatsSource reports table sizes for the statistics action.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Workflow is the admin session engine.
type Workflow interface {
	Begin(ctx context.Context, adminID int64, f workflow.Flow) (workflow.Step, workflow.Flow, error)
	Cancel(ctx context.Context, adminID int64) (workflow.Flow, bool)
	Current(adminID int64) (workflow.Flow, workflow.Step, bool)
	Expects(adminID int64, k workflow.InputKind) bool
	Submit(ctx context.Context, adminID int64, in workflow.Input) (workflow.Outcome, error)
}

// Deps are the collaborators of a Router.
type Deps struct {
	Transport Transport
	Gate      Gatekeeper
	Catalog   Catalog
	Users     Users
	Stats     StatsSource
	Workflow  Workflow
	IsAdmin   func(int64) bool
}

// Router handles one event at a time; it is safe for concurrent use as long
// as its collaborators are.
type Router struct {
	Deps
}

// New returns a Router. A nil IsAdmin treats nobody as an administrator.
func New(deps Deps) *Router {
	if deps.IsAdmin == nil {
		deps.IsAdmin = func(int64) bool { return false }
	}
	return &Router{Deps: deps}
}

// Handle routes ev. The returned error reports a failed reply; partial
// platform failures are logged and degraded in place.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	admin := r.IsAdmin(ev.UserID)

	if in, ok := ev.input(); ok && admin {
		if _, _, active := r.Workflow.Current(ev.UserID); active {
			return r.continueFlow(ctx, ev, in)
		}
	}

	switch ev.Kind {
	case KindCommand:
		return r.command(ctx, ev, admin)
	case KindCallback:
		return r.callback(ctx, ev, admin)
	case KindText:
		if admin {
			return nil
		}
		return r.lookup(ctx, ev)
	case KindMedia:
		logger.FromContext(ctx).DebugContext(ctx, "media outside a session ignored",
			slog.String("event", "dispatch.media"),
			slog.Int64("user_id", ev.UserID),
		)
		return nil
	}
	return nil
}

// SessionExpired notifies an administrator whose session timed out.
func (r *Router) SessionExpired(ctx context.Context, adminID int64, f workflow.Flow) error {
	return r.Transport.SendText(ctx, adminID, ExpiredNotice(f), menuRows())
}

func (r *Router) command(ctx context.Context, ev Event, admin bool) error {
	switch ev.Command {
	case CmdStart:
		return r.start(ctx, ev, admin)
	case CmdAdmin:
		if !admin {
			return r.reply(ctx, ev, textUnsupported, nil)
		}
		return r.reply(ctx, ev, textAdminMenu, menuRows())
	case CmdStats:
		if !admin {
			return r.reply(ctx, ev, textUnsupported, nil)
		}
		return r.stats(ctx, ev)
	case CmdCancel:
		if !admin {
			return r.reply(ctx, ev, textUnsupported, nil)
		}
		return r.cancel(ctx, ev)
	}
	return r.reply(ctx, ev, textUnsupported, nil)
}

func (r *Router) start(ctx context.Context, ev Event, admin bool) error {
	isNew, err := r.Users.Register(ctx, ev.UserID)
	switch {
	case err != nil:
		logger.FromContext(ctx).WarnContext(ctx, "user registration failed",
			slog.String("event", "user.register"),
			slog.String("status", "fail"),
			slog.Int64("user_id", ev.UserID),
			slog.String("err", err.Error()),
		)
	case isNew:
		metrics.RegisteredUsers.Inc()
		logger.FromContext(ctx).InfoContext(ctx, "user registered",
			slog.String("event", "user.register"),
			slog.Int64("user_id", ev.UserID),
		)
	}

	if admin {
		return r.reply(ctx, ev, textAdminMenu, menuRows())
	}
	res := r.Gate.Check(ctx, ev.UserID)
	if !res.Allowed {
		return r.reply(ctx, ev, textGateStart, gateRows(res.Channels))
	}
	return r.reply(ctx, ev, textAskCode, nil)
}

func (r *Router) callback(ctx context.Context, ev Event, admin bool) error {
	switch ev.Action {
	case ActionCheckSub:
		return r.confirmSubscription(ctx, ev)
	case ActionMenu:
		if !admin {
			return r.answer(ctx, ev, textUnsupported, false)
		}
		if ev.Payload == MenuStats {
			r.answer(ctx, ev, "", false)
			return r.stats(ctx, ev)
		}
		return r.beginFlow(ctx, ev, workflow.Flow(ev.Payload))
	case ActionCancel:
		if !admin {
			return r.answer(ctx, ev, textUnsupported, false)
		}
		r.answer(ctx, ev, "", false)
		return r.cancel(ctx, ev)
	}
	return r.answer(ctx, ev, textUnsupported, false)
}

func (r *Router) confirmSubscription(ctx context.Context, ev Event) error {
	res := r.Gate.Check(ctx, ev.UserID)
	if !res.Allowed {
		return r.answer(ctx, ev, textNotSubscribed, true)
	}
	r.answer(ctx, ev, "", false)
	if ev.MessageID != 0 {
		if err := r.Transport.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
			logger.FromContext(ctx).DebugContext(ctx, "gate prompt not deleted",
				slog.String("event", "dispatch.delete"),
				slog.Int("message_id", ev.MessageID),
				slog.String("err", err.Error()),
			)
		}
	}
	return r.reply(ctx, ev, textConfirmed, nil)
}

func (r *Router) beginFlow(ctx context.Context, ev Event, f workflow.Flow) error {
	step, discarded, err := r.Workflow.Begin(ctx, ev.UserID, f)
	if err != nil {
		return r.answer(ctx, ev, textUnsupported, false)
	}
	r.answer(ctx, ev, "", false)
	if discarded != "" {
		if err := r.reply(ctx, ev, discardedNotice(discarded), nil); err != nil {
			return err
		}
	}
	return r.reply(ctx, ev, promptFor(f, step), cancelRows())
}

func (r *Router) cancel(ctx context.Context, ev Event) error {
	if _, ok := r.Workflow.Cancel(ctx, ev.UserID); !ok {
		return r.reply(ctx, ev, textNothingToCancel, menuRows())
	}
	return r.reply(ctx, ev, textCancelled, menuRows())
}

func (r *Router) continueFlow(ctx context.Context, ev Event, in workflow.Input) error {
	if !r.Workflow.Expects(ev.UserID, in.Kind) {
		f, step, _ := r.Workflow.Current(ev.UserID)
		hint := textWrongText
		if step.Accepts() == workflow.InputMedia {
			hint = textWrongMedia
		}
		return r.reply(ctx, ev, hint+"\n"+promptFor(f, step), cancelRows())
	}

	out, err := r.Workflow.Submit(ctx, ev.UserID, in)
	switch {
	case errors.Is(err, workflow.ErrNoSession):
		// Expired between the check and the submit.
		return r.reply(ctx, ev, textAdminMenu, menuRows())
	case errors.Is(err, workflow.ErrEmptyInput):
		return r.reply(ctx, ev, textEmptyInput+"\n"+promptFor(out.Flow, out.Next), cancelRows())
	case errors.Is(err, workflow.ErrUnexpectedInput):
		return r.reply(ctx, ev, promptFor(out.Flow, out.Next), cancelRows())
	case err != nil && !out.Done:
		return r.reply(ctx, ev, textStoreFailed+"\n"+promptFor(out.Flow, out.Next), cancelRows())
	}
	if !out.Done {
		return r.reply(ctx, ev, promptFor(out.Flow, out.Next), cancelRows())
	}
	return r.reply(ctx, ev, outcomeText(out, err), menuRows())
}

func (r *Router) stats(ctx context.Context, ev Event) error {
	s, err := r.Stats.Stats(ctx)
	if err != nil {
		logger.SVCCatalog.ErrorContext(ctx, "stats query failed",
			slog.String("event", "catalog.stats"),
			slog.String("err", err.Error()),
		)
		return r.reply(ctx, ev, textStatsFailed, nil)
	}
	return r.reply(ctx, ev, statsText(s), nil)
}

func (r *Router) lookup(ctx context.Context, ev Event) error {
	res := r.Gate.Check(ctx, ev.UserID)
	if !res.Allowed {
		return r.reply(ctx, ev, textGateRetry, gateRows(res.Channels))
	}

	code := strings.TrimSpace(ev.Text)
	if code == "" {
		return r.reply(ctx, ev, textAskCode, nil)
	}

	ref, err := r.Catalog.Get(ctx, code)
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.CatalogLookups.WithLabelValues("not_found").Inc()
		logger.SVCCatalog.DebugContext(ctx, "code not found",
			slog.String("event", "catalog.lookup"),
			slog.String("status", "miss"),
			slog.String("code", code),
		)
		return r.reply(ctx, ev, textNotFound, nil)
	case err != nil:
		metrics.CatalogLookups.WithLabelValues("error").Inc()
		logger.SVCCatalog.ErrorContext(ctx, "catalog lookup failed",
			slog.String("event", "catalog.lookup"),
			slog.String("status", "fail"),
			slog.String("code", code),
			slog.String("err", err.Error()),
		)
		return r.reply(ctx, ev, textDeliveryFailed, nil)
	}

	metrics.CatalogLookups.WithLabelValues("found").Inc()
	if err := r.Transport.SendMedia(ctx, ev.ChatID, ref, textCaption); err != nil {
		logger.SVCCatalog.WarnContext(ctx, "media delivery failed",
			slog.String("event", "catalog.deliver"),
			slog.String("status", "fail"),
			slog.String("code", code),
			slog.String("err", err.Error()),
		)
		return r.reply(ctx, ev, textDeliveryFailed, nil)
	}
	return nil
}

func (r *Router) reply(ctx context.Context, ev Event, text string, rows [][]keyboard.InlineBtn) error {
	chatID := ev.ChatID
	if chatID == 0 {
		chatID = ev.UserID
	}
	if err := r.Transport.SendText(ctx, chatID, text, rows); err != nil {
		return fmt.Errorf("reply to %d: %w", chatID, err)
	}
	return nil
}

// answer acknowledges a callback; failures are only logged.
func (r *Router) answer(ctx context.Context, ev Event, text string, alert bool) error {
	if ev.CallbackID == "" {
		return nil
	}
	if err := r.Transport.AnswerCallback(ctx, ev.CallbackID, text, alert); err != nil {
		logger.FromContext(ctx).DebugContext(ctx, "callback answer failed",
			slog.String("event", "dispatch.answer"),
			slog.String("err", err.Error()),
		)
	}
	return nil
}
