// Package state provides a lightweight FSM/session registry for Telegram bots.
// It is domain-agnostic: callers define their own State values and keep
// per-step data in the session's temporary map.
package state
