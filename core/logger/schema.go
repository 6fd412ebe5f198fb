package logger

import (
	"slices"
	"strings"
)

// outcomes are the accepted outcome values; any other outcome is dropped.
var outcomes = []string{"ok", "fail", "cancelled", "rate_limited"}

func canonical(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func validOutcome(v string) bool {
	return slices.Contains(outcomes, v)
}

// defaultKeyOrder fixes the position of well-known keys; others follow sorted.
var defaultKeyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	// update
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "op", "action", "cb_key", "command",
	"outcome", "duration_ms", "messages", "kb",
	// domain
	"flow", "state", "code", "channel", "channels", "member_status", "allowed",
	"broadcast_id", "recipients", "delivered", "failed", "count",
	// runtime
	"mode", "listen", "public_url", "host", "port", "db",
	// failure
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
}
