package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/time/rate"

	"github.com/m3rciful/gatebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const defaultTrackedUsers = 10000

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// MaxUsers bounds the number of per-user limiters kept in memory.
	MaxUsers int
	// Bypass exempts users, such as administrators, from limiting.
	Bypass func(userID int64) bool
}

// RateLimitMiddleware returns a middleware that allows each user one update per
// Interval with bursts of up to Burst updates.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiters := newLimiterSet(opts)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 || (opts.Bypass != nil && opts.Bypass(user.ID)) {
				return next(c)
			}

			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if limiters.allow(user.ID) {
				return next(c)
			}

			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

type limiterSet struct {
	mu    sync.Mutex
	cache *lru.Cache
	every rate.Limit
	burst int
}

func newLimiterSet(opts RateLimitOptions) *limiterSet {
	maxUsers := opts.MaxUsers
	if maxUsers <= 0 {
		maxUsers = defaultTrackedUsers
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		cache: lru.New(maxUsers),
		every: rate.Every(opts.Interval),
		burst: burst,
	}
}

func (s *limiterSet) allow(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(userID); ok {
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(s.every, s.burst)
	s.cache.Add(userID, lim)
	return lim.Allow()
}
