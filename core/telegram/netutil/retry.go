// Package netutil classifies Telegram API failures.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Class is the retry class of a failed Bot API call.
type Class int

const (
	// Permanent failures never succeed on retry: blocked bots, unknown chats, cancelled contexts.
	Permanent Class = iota
	// Transient failures are network timeouts and dial errors.
	Transient
	// Flood is a 429 reply; retry after the delay Telegram asked for.
	Flood
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Flood:
		return "flood"
	default:
		return "permanent"
	}
}

// Classify returns the retry class of err and, for Flood, the requested delay.
func Classify(err error) (Class, time.Duration) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent, 0
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return Flood, time.Duration(flood.RetryAfter) * time.Second
	}

	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return Transient, 0
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		if c, d := Classify(urlErr.Err); c != Permanent {
			return c, d
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient, 0
	}
	return Permanent, 0
}

// ShouldRetry reports whether err is transient or flood control.
func ShouldRetry(err error) bool {
	c, _ := Classify(err)
	return c != Permanent
}
