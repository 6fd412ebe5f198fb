package router

import (
	"log/slog"

	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/callbacks"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	// ManualRespond leaves answering the callback query to the handler, which
	// allows alerts. Otherwise an empty answer is sent before the handler runs.
	ManualRespond bool
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFound := func(c tele.Context) error {
		if fb := reg.CallbackNotFound(); fb != nil {
			return fb(c)
		}
		if opts.NotFound != nil {
			return opts.NotFound(c)
		}
		return c.Respond()
	}

	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Split(c.Callback())
		d := begin("callback."+handlerName(key), slog.String("cb_key", key))

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			return d.with(slog.String("reason", "not_found")).run(c, notFound)
		}
		if !opts.ManualRespond {
			_ = c.Respond()
		}
		return d.run(c, h)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
