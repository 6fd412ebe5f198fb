package router

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/gatebot/core/logger"
	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command endpoint and alias. Admin-only
// commands are guarded before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	commands := reg.Commands()
	var routes []tg.Route
	for endpoint, def := range commands {
		inner := def.Handler
		if def.AdminOnly {
			inner = guard(inner)
		}
		h := middleware.RecoverMiddleware(middleware.LoggerMiddleware(traced(handlerName(endpoint), inner)))
		for _, ep := range endpoints(endpoint, def.Aliases) {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(commands)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func traced(name string, next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return begin(name).run(c, next)
	}
}

// endpoints lists the primary endpoint followed by its aliases, each with a leading slash.
func endpoints(primary string, aliases []string) []string {
	out := []string{primary}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a == "" {
			continue
		}
		if !strings.HasPrefix(a, "/") {
			a = "/" + a
		}
		out = append(out, a)
	}
	return out
}
