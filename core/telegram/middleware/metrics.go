package middleware

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
)

// countingContext records replies made directly through tele.Context.
// Sends made through the bot transport are counted via tghelpers.CountReply.
type countingContext struct {
	tele.Context
	tally *tghelpers.ReplyTally
}

func withKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v != nil
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) count(err error, opts []any) error {
	if err == nil {
		c.tally.Add(withKeyboard(opts))
	}
	return err
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware installs a per-update reply tally read back by the
// handler summary log.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		t := tghelpers.InstallTally(c)
		return next(countingContext{Context: c, tally: t})
	}
}

// GetCounters returns how many messages the update produced and whether any had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	return tghelpers.TallyOf(c).Counts()
}
