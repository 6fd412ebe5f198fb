package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the outbound dispatcher used by Sync and Async; nil
// makes both run calls inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Sync runs call under the dispatcher retry policy and returns its final error.
func Sync(ctx context.Context, action, endpoint string, call func() error) error {
	if d := dispatcher.Load(); d != nil {
		return d.Do(ctx, action, endpoint, call)
	}
	return call()
}

// Async queues call without waiting for it. A full or closed queue degrades
// to running the call inline so the message is not lost.
func Async(ctx context.Context, action, endpoint string, call func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return call()
	}
	err := d.Enqueue(ctx, action, endpoint, call)
	if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
		return err
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("action", action),
		slog.String("endpoint", endpoint),
		slog.String("err", err.Error()),
	)
	return call()
}
