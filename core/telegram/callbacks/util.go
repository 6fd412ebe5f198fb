package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Split returns the routing key and payload of a callback. Raw button data is
// encoded by telebot as "\f<unique>|<payload>"; when telebot has already routed
// the callback, Unique holds the key and Data only the payload.
func Split(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}
