// Package gate decides whether a user may use the bot based on membership in
// every gating channel. Any query failure denies access.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/gatebot/app/metrics"
	"github.com/m3rciful/gatebot/core/logger"
)

// Status is a chat membership status as reported by the platform.
type Status string

const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusRestricted    Status = "restricted"
	StatusLeft          Status = "left"
	StatusKicked        Status = "kicked"
)

// Satisfies reports whether s counts as being subscribed.
func (s Status) Satisfies() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// MembershipChecker queries the membership of a user in a channel.
type MembershipChecker interface {
	Membership(ctx context.Context, channel string, userID int64) (Status, error)
}

// ChannelLister returns the current gating channels.
type ChannelLister interface {
	List(ctx context.Context) ([]string, error)
}

// Result is the outcome of a gate check.
type Result struct {
	Allowed bool
	// Channels is the full gating list used for the check, for rendering the prompt.
	Channels []string
	// Failed is the first channel that denied access, empty when allowed.
	Failed string
	// Status is the status reported for Failed, empty when the query itself failed.
	Status Status
	Err    error
}

// Options configures a Gate.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int
	Now       func() time.Time
}

// Gate evaluates subscription requirements.
type Gate struct {
	channels ChannelLister
	checker  MembershipChecker
	cache    *membershipCache
}

// New builds a Gate. A positive CacheTTL enables the membership cache.
func New(channels ChannelLister, checker MembershipChecker, opts Options) *Gate {
	g := &Gate{channels: channels, checker: checker}
	if opts.CacheTTL > 0 {
		g.cache = newMembershipCache(opts.CacheSize, opts.CacheTTL, opts.Now)
	}
	return g
}

// IsSubscribed reports whether userID passes the gate.
func (g *Gate) IsSubscribed(ctx context.Context, userID int64) bool {
	return g.Check(ctx, userID).Allowed
}

// Check evaluates every gating channel in order and stops at the first one
// that does not grant access.
func (g *Gate) Check(ctx context.Context, userID int64) Result {
	start := time.Now()
	channels, err := g.channels.List(ctx)
	if err != nil {
		g.record(ctx, userID, Result{Err: err}, start)
		return Result{Err: err}
	}

	res := Result{Allowed: true, Channels: channels}
	for _, ch := range channels {
		st, err := g.membership(ctx, ch, userID)
		if err != nil {
			res.Allowed, res.Failed, res.Err = false, ch, err
			break
		}
		if !st.Satisfies() {
			res.Allowed, res.Failed, res.Status = false, ch, st
			break
		}
	}
	g.record(ctx, userID, res, start)
	return res
}

func (g *Gate) membership(ctx context.Context, channel string, userID int64) (Status, error) {
	if g.cache != nil {
		if st, ok := g.cache.get(channel, userID); ok {
			metrics.MembershipQueries.WithLabelValues("hit").Inc()
			return st, nil
		}
	}
	st, err := g.checker.Membership(ctx, channel, userID)
	if err != nil {
		metrics.MembershipQueries.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.MembershipQueries.WithLabelValues("miss").Inc()
	if g.cache != nil && st.Satisfies() {
		g.cache.put(channel, userID, st)
	}
	return st, nil
}

func (g *Gate) record(ctx context.Context, userID int64, res Result, start time.Time) {
	result := "denied"
	switch {
	case res.Allowed:
		result = "allowed"
	case res.Err != nil:
		result = "error"
	}
	metrics.GateDecisions.WithLabelValues(result).Inc()

	attrs := []any{
		slog.String("event", "gate.check"),
		slog.Int64("user_id", userID),
		slog.Bool("allowed", res.Allowed),
		slog.Int("channels", len(res.Channels)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if res.Failed != "" {
		attrs = append(attrs, slog.String("channel", res.Failed))
	}
	if res.Status != "" {
		attrs = append(attrs, slog.String("member_status", string(res.Status)))
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("err", res.Err.Error()))
		logger.SVCGate.WarnContext(ctx, "gate query failed", attrs...)
		return
	}
	logger.SVCGate.DebugContext(ctx, "gate checked", attrs...)
}
