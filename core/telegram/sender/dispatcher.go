// Package sender runs outbound Bot API calls with bounded retries, either on
// a worker pool or inline on the caller's goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilCall = errors.New("telegram sender: nil run function")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// call is one Bot API request. run must be safe to repeat.
type call struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (c call) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("op", c.action)}
	if c.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", c.endpoint))
	}
	return attrs
}

// Dispatcher executes outbound Telegram calls with retries.
type Dispatcher struct {
	opts   Options
	queue  chan call
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts opts.Workers workers; zero options take defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		queue:  make(chan call, opts.QueueSize),
		closed: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				_ = d.execute(c)
			}
		}()
	}
	return d
}

// Enqueue schedules run on the worker pool without waiting for it.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilCall
	}
	select {
	case <-d.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queue <- call{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs the call on the caller's goroutine with the same retry policy and
// returns the final error.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilCall
	}
	return d.execute(call{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// ErrorCount returns how many calls failed after exhausting their retries.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Close stops accepting calls and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.closed)
		close(d.queue)
		d.wg.Wait()
	})
}

func (d *Dispatcher) execute(c call) error {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	bounded, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt := 0
	err := d.retry(bounded, c, &attempt)
	took := logger.RoundMS(time.Since(start))

	attrs := append(c.attrs(), slog.Int("attempts", attempt), slog.Duration("duration", took))
	if err != nil {
		d.failed.Add(1)
		logger.Error(ctx, component, "send.fail", append(attrs,
			slog.String("err", SanitizeError(err)),
			slog.String("err_code", Kind(err)),
		)...)
		return err
	}
	if attempt > 1 {
		logger.Info(ctx, component, "send.retry.success", attrs...)
	} else if logger.ShouldSampleDebug() {
		logger.Debug(ctx, component, "send.ok", attrs...)
	}
	return nil
}

// retry runs c until it succeeds, fails permanently, runs out of attempts or
// ctx ends. attempt reports how many runs were made.
func (d *Dispatcher) retry(ctx context.Context, c call, attempt *int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		*attempt++
		err := c.run()
		if err == nil {
			return nil
		}
		class, wait := netutil.Classify(err)
		if class == netutil.Permanent || *attempt > d.opts.MaxRetries {
			return err
		}

		delay := max(d.opts.RetryBackoff*time.Duration(*attempt), wait)
		logger.Debug(ctx, component, "send.retry.backoff", append(c.attrs(),
			slog.String("cause", class.String()),
			slog.Int("attempts", *attempt),
			slog.Duration("backoff", delay),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
