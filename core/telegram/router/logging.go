package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/gatebot/core/logger"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Observer receives one call per handled update.
type Observer func(handler, outcome string, took time.Duration)

var observer atomic.Pointer[Observer]

// SetObserver installs fn as the handled-update observer; nil removes it.
func SetObserver(fn Observer) {
	if fn == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&fn)
}

// dispatch records one routing decision and emits handler.handled once it ends.
type dispatch struct {
	name  string
	start time.Time
	attrs []slog.Attr
}

func begin(name string, attrs ...slog.Attr) *dispatch {
	return &dispatch{name: name, start: time.Now(), attrs: attrs}
}

func (d *dispatch) with(attrs ...slog.Attr) *dispatch {
	d.attrs = append(d.attrs, attrs...)
	return d
}

// run tags the context with the handler name, calls h and reports the result.
func (d *dispatch) run(c tele.Context, h tele.HandlerFunc) error {
	tghelpers.WithHandler(c, d.name)
	err := h(c)
	d.finish(c, "", err)
	return err
}

// skip reports an update nobody handled.
func (d *dispatch) skip(c tele.Context) {
	d.finish(c, "skip", nil)
}

func (d *dispatch) finish(c tele.Context, status string, err error) {
	outcome := outcomeOf(err)
	if status == "" {
		status = outcome
	}
	took := time.Since(d.start)
	if fn := observer.Load(); fn != nil {
		(*fn)(d.name, outcome, took)
	}

	msgs, kb := middleware.GetCounters(c)
	attrs := make([]slog.Attr, 0, 9+len(d.attrs))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", d.name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", d.name),
		)
	}
	attrs = append(attrs, d.attrs...)
	ctx := tghelpers.WithHandler(c, d.name)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "fail"
	}
}

// handlerName turns a command or callback key into a log-friendly label.
func handlerName(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

type coded interface{ Code() string }

// errorCode prefers an explicit Code() anywhere in the chain and falls back
// to the bare type name of err.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var ce coded
	if errors.As(err, &ce) {
		if code := strings.TrimSpace(ce.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
