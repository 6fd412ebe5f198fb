package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/gatebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions configures AdminOnlyMiddleware. A nil IsAdmin rejects everyone;
// OnReject, when set, answers the rejected update.
type AdminOptions struct {
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allows(u *tele.User) bool {
	return u != nil && o.IsAdmin != nil && o.IsAdmin(u.ID)
}

// AdminOnlyMiddleware lets only administrators reach next.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			u := c.Sender()
			if opts.allows(u) {
				return next(c)
			}
			var id int64
			if u != nil {
				id = u.ID
			}
			logger.Info(context.Background(), "tg", "tg.admin_reject",
				slog.String("status", "skip"),
				slog.Int64("user_id", id),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
