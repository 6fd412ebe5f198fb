// Package broadcast delivers one text to every registered user with pacing
// and a per-send deadline, and reports the outcome per recipient.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/m3rciful/gatebot/app/metrics"
	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/netutil"
)

// maxFloodWait caps how long a single recipient may hold the broadcast on a 429.
const maxFloodWait = 30 * time.Second

// Recipients lists the user ids a broadcast goes to.
type Recipients interface {
	List(ctx context.Context) ([]int64, error)
}

// Sender delivers a text to a single user.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// Options configures a Broadcaster.
type Options struct {
	// Pacing is the minimum gap between two sends; zero disables pacing.
	Pacing time.Duration
	// SendTimeout bounds every single send; zero disables the deadline.
	SendTimeout time.Duration
}

// Result is the delivery outcome for one recipient.
type Result struct {
	UserID int64
	Err    error
}

// Delivered reports whether the send succeeded.
func (r Result) Delivered() bool { return r.Err == nil }

// Report aggregates a broadcast.
type Report struct {
	ID        string
	Total     int
	Delivered int
	Failed    int
	Results   []Result
	Duration  time.Duration
}

// Broadcaster sends texts to all recipients.
type Broadcaster struct {
	recipients Recipients
	sender     Sender
	opts       Options
}

// New returns a Broadcaster.
func New(recipients Recipients, sender Sender, opts Options) *Broadcaster {
	return &Broadcaster{recipients: recipients, sender: sender, opts: opts}
}

// Send delivers text to every recipient. A failing recipient never stops the
// others. When ctx ends early, every recipient not yet attempted is reported
// as failed with the context error, and that error is returned with the report.
func (b *Broadcaster) Send(ctx context.Context, text string) (Report, error) {
	start := time.Now()
	rep := Report{ID: uuid.NewString()}

	ids, err := b.recipients.List(ctx)
	if err != nil {
		return rep, err
	}
	rep.Total = len(ids)
	rep.Results = make([]Result, 0, len(ids))

	log := logger.SVCBroadcast.With(slog.String("broadcast_id", rep.ID))
	log.InfoContext(ctx, "broadcast started",
		slog.String("event", "broadcast.start"),
		slog.Int("recipients", rep.Total),
	)

	limit := rate.Inf
	if b.opts.Pacing > 0 {
		limit = rate.Every(b.opts.Pacing)
	}
	limiter := rate.NewLimiter(limit, 1)

	var stopErr error
	for i, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			stopErr = ctx.Err()
			if stopErr == nil {
				stopErr = err
			}
			for _, rest := range ids[i:] {
				rep.Results = append(rep.Results, Result{UserID: rest, Err: stopErr})
			}
			rep.Failed += len(ids) - i
			metrics.BroadcastDeliveries.WithLabelValues("failed").Add(float64(len(ids) - i))
			break
		}

		err := b.sendOne(ctx, id, text)
		rep.Results = append(rep.Results, Result{UserID: id, Err: err})
		if err != nil {
			rep.Failed++
			metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
			log.DebugContext(ctx, "broadcast send failed",
				slog.String("event", "broadcast.send"),
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		rep.Delivered++
		metrics.BroadcastDeliveries.WithLabelValues("delivered").Inc()
	}

	rep.Duration = time.Since(start)
	metrics.BroadcastDuration.Observe(rep.Duration.Seconds())

	attrs := []any{
		slog.String("event", "broadcast.done"),
		slog.Int("recipients", rep.Total),
		slog.Int("delivered", rep.Delivered),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.RoundMS(rep.Duration)),
	}
	if stopErr != nil {
		attrs = append(attrs, slog.String("status", "cancelled"), slog.String("err", stopErr.Error()))
		log.WarnContext(ctx, "broadcast interrupted", attrs...)
		return rep, stopErr
	}
	log.InfoContext(ctx, "broadcast finished", attrs...)
	return rep, nil
}

// sendOne delivers to one user and retries once after a flood-control reply.
func (b *Broadcaster) sendOne(ctx context.Context, userID int64, text string) error {
	err := b.attempt(ctx, userID, text)
	class, wait := netutil.Classify(err)
	if class != netutil.Flood || wait > maxFloodWait {
		return err
	}
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return err
		case <-timer.C:
		}
	}
	return b.attempt(ctx, userID, text)
}

func (b *Broadcaster) attempt(ctx context.Context, userID int64, text string) error {
	sendCtx := ctx
	if b.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, b.opts.SendTimeout)
		defer cancel()
	}
	return b.sender.SendText(sendCtx, userID, text)
}
