// Package workflow runs the multi-step administrator flows: adding and deleting
// catalog entries, adding and removing gating channels, and broadcasting.
// Every administrator holds at most one session; starting a flow replaces it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/gatebot/app/broadcast"
	"github.com/m3rciful/gatebot/app/metrics"
	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/state"
)

var (
	// ErrNoSession is returned when input arrives without an active session.
	ErrNoSession = errors.New("workflow: no active session")
	// ErrEmptyInput rejects blank keys and texts; the session stays on the same step.
	ErrEmptyInput = errors.New("workflow: empty input")
	// ErrUnexpectedInput is returned when the input kind does not match the step.
	ErrUnexpectedInput = errors.New("workflow: unexpected input kind")
	// ErrUnknownFlow is returned by Begin for an unknown flow name.
	ErrUnknownFlow = errors.New("workflow: unknown flow")
)

const tempMediaRef = "media_ref"

// Catalog is the catalog mutation surface used by the entry flows.
type Catalog interface {
	Upsert(ctx context.Context, code, mediaRef string) error
	Delete(ctx context.Context, code string) (bool, error)
}

// Channels is the channel mutation surface used by the channel flows.
type Channels interface {
	Add(ctx context.Context, identifier string) (bool, error)
	Remove(ctx context.Context, identifier string) (bool, error)
}

// Broadcaster delivers the broadcast text.
type Broadcaster interface {
	Send(ctx context.Context, text string) (broadcast.Report, error)
}

// Input is one administrator message fed to the engine.
type Input struct {
	Kind     InputKind
	Text     string
	MediaRef string
}

// TextInput wraps a text message.
func TextInput(text string) Input { return Input{Kind: InputText, Text: text} }

// MediaInput wraps a media message.
func MediaInput(ref string) Input { return Input{Kind: InputMedia, MediaRef: ref} }

// Outcome describes what Submit did.
type Outcome struct {
	Flow Flow
	// Next is the step now awaited; empty when Done.
	Next Step
	Done bool
	// Key is the trimmed code or identifier the terminal action used.
	Key string
	// Changed reports whether the terminal action modified the store:
	// a new channel, an existing entry or channel removed. Always true for upserts.
	Changed bool
	Report  broadcast.Report
}

// Deps are the collaborators of the terminal actions.
type Deps struct {
	Catalog     Catalog
	Channels    Channels
	Broadcaster Broadcaster
}

// Engine drives administrator sessions stored in a state.Manager.
type Engine struct {
	sessions state.Manager
	deps     Deps
	locks    sync.Map
}

// New returns an Engine over sessions.
func New(sessions state.Manager, deps Deps) *Engine {
	return &Engine{sessions: sessions, deps: deps}
}

// Begin starts flow f for adminID and returns its first step plus the flow
// that was discarded, if any.
func (e *Engine) Begin(ctx context.Context, adminID int64, f Flow) (Step, Flow, error) {
	if !f.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownFlow, f)
	}
	mu := e.lock(adminID)
	mu.Lock()
	defer mu.Unlock()

	first := f.FirstStep()
	prev := e.sessions.Start(adminID, encodeState(f, first))
	discarded, _, hadFlow := ParseState(prev)
	if !hadFlow {
		metrics.ActiveSessions.Inc()
	}
	metrics.WorkflowTransitions.WithLabelValues(string(f), "begin").Inc()

	attrs := []any{
		slog.String("event", "workflow.begin"),
		slog.Int64("user_id", adminID),
		slog.String("flow", string(f)),
		slog.String("state", string(first)),
	}
	if hadFlow {
		attrs = append(attrs, slog.String("discarded", string(discarded)))
	}
	logger.SVCWorkflow.InfoContext(ctx, "workflow started", attrs...)
	return first, discarded, nil
}

// Cancel drops the session of adminID and returns the flow that was active.
func (e *Engine) Cancel(ctx context.Context, adminID int64) (Flow, bool) {
	mu := e.lock(adminID)
	mu.Lock()
	defer mu.Unlock()

	f, _, ok := e.current(adminID)
	if !e.sessions.Clear(adminID) || !ok {
		return "", false
	}
	metrics.ActiveSessions.Dec()
	metrics.WorkflowTransitions.WithLabelValues(string(f), "cancel").Inc()
	logger.SVCWorkflow.InfoContext(ctx, "workflow cancelled",
		slog.String("event", "workflow.cancel"),
		slog.Int64("user_id", adminID),
		slog.String("flow", string(f)),
	)
	return f, true
}

// Expired accounts for a session dropped by the registry's TTL.
func (e *Engine) Expired(adminID int64, st state.State) {
	f, _, ok := ParseState(st)
	if !ok {
		return
	}
	metrics.ActiveSessions.Dec()
	metrics.WorkflowTransitions.WithLabelValues(string(f), "expire").Inc()
	logger.SVCWorkflow.Info("workflow expired",
		slog.String("event", "workflow.expire"),
		slog.Int64("user_id", adminID),
		slog.String("flow", string(f)),
	)
}

// Current returns the active flow and step of adminID.
func (e *Engine) Current(adminID int64) (Flow, Step, bool) {
	return e.current(adminID)
}

// InProgress reports whether adminID has an active session.
func (e *Engine) InProgress(adminID int64) bool {
	_, _, ok := e.current(adminID)
	return ok
}

// Expects reports whether the active step of adminID consumes input of kind k.
func (e *Engine) Expects(adminID int64, k InputKind) bool {
	_, step, ok := e.current(adminID)
	return ok && step.Accepts() == k
}

// Submit feeds in to the session of adminID and advances it. On ErrEmptyInput,
// ErrUnexpectedInput or a store failure the session stays on its step.
func (e *Engine) Submit(ctx context.Context, adminID int64, in Input) (Outcome, error) {
	mu := e.lock(adminID)
	mu.Lock()
	defer mu.Unlock()

	f, step, ok := e.current(adminID)
	if !ok {
		return Outcome{}, ErrNoSession
	}
	out := Outcome{Flow: f, Next: step}
	if in.Kind != step.Accepts() {
		return out, fmt.Errorf("%w: %s step wants %s, got %s", ErrUnexpectedInput, step, step.Accepts(), in.Kind)
	}

	var err error
	switch {
	case step == StepAwaitingMedia:
		out, err = e.captureMedia(ctx, adminID, f, in)
	case f == FlowAddEntry:
		out, err = e.addEntry(ctx, adminID, in)
	case f == FlowDeleteEntry:
		out, err = e.deleteEntry(ctx, in)
	case f == FlowAddChannel:
		out, err = e.addChannel(ctx, in)
	case f == FlowRemoveChannel:
		out, err = e.removeChannel(ctx, in)
	case f == FlowBroadcast:
		out, err = e.broadcast(ctx, in)
	}
	if errors.Is(err, ErrEmptyInput) {
		metrics.WorkflowTransitions.WithLabelValues(string(f), "rejected").Inc()
		return Outcome{Flow: f, Next: step}, err
	}
	if !out.Done {
		if err != nil {
			metrics.WorkflowTransitions.WithLabelValues(string(f), "failed").Inc()
			logger.SVCWorkflow.ErrorContext(ctx, "workflow step failed",
				slog.String("event", "workflow.step"),
				slog.String("status", "fail"),
				slog.Int64("user_id", adminID),
				slog.String("flow", string(f)),
				slog.String("state", string(step)),
				slog.String("err", err.Error()),
			)
			return Outcome{Flow: f, Next: step}, err
		}
		return out, nil
	}

	e.sessions.Clear(adminID)
	metrics.ActiveSessions.Dec()
	metrics.WorkflowTransitions.WithLabelValues(string(f), "complete").Inc()
	attrs := []any{
		slog.String("event", "workflow.complete"),
		slog.Int64("user_id", adminID),
		slog.String("flow", string(f)),
		slog.Bool("changed", out.Changed),
	}
	if out.Key != "" {
		attrs = append(attrs, slog.String("code", out.Key))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.SVCWorkflow.InfoContext(ctx, "workflow completed", attrs...)
	return out, err
}

func (e *Engine) captureMedia(ctx context.Context, adminID int64, f Flow, in Input) (Outcome, error) {
	ref := strings.TrimSpace(in.MediaRef)
	if ref == "" {
		return Outcome{}, ErrEmptyInput
	}
	next, ok := f.next(StepAwaitingMedia)
	if !ok {
		return Outcome{}, fmt.Errorf("flow %s has no step after media", f)
	}
	e.sessions.SetTemp(adminID, tempMediaRef, ref)
	e.sessions.SetState(adminID, encodeState(f, next))
	metrics.WorkflowTransitions.WithLabelValues(string(f), "advance").Inc()
	logger.SVCWorkflow.DebugContext(ctx, "workflow advanced",
		slog.String("event", "workflow.step"),
		slog.Int64("user_id", adminID),
		slog.String("flow", string(f)),
		slog.String("state", string(next)),
	)
	return Outcome{Flow: f, Next: next}, nil
}

func (e *Engine) addEntry(ctx context.Context, adminID int64, in Input) (Outcome, error) {
	code := strings.TrimSpace(in.Text)
	if code == "" {
		return Outcome{}, ErrEmptyInput
	}
	ref, ok := e.sessions.GetTempString(adminID, tempMediaRef)
	if !ok || ref == "" {
		return Outcome{}, fmt.Errorf("add entry: media reference missing from session")
	}
	if err := e.deps.Catalog.Upsert(ctx, code, ref); err != nil {
		return Outcome{}, err
	}
	return Outcome{Flow: FlowAddEntry, Done: true, Key: code, Changed: true}, nil
}

func (e *Engine) deleteEntry(ctx context.Context, in Input) (Outcome, error) {
	code := strings.TrimSpace(in.Text)
	if code == "" {
		return Outcome{}, ErrEmptyInput
	}
	existed, err := e.deps.Catalog.Delete(ctx, code)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Flow: FlowDeleteEntry, Done: true, Key: code, Changed: existed}, nil
}

func (e *Engine) addChannel(ctx context.Context, in Input) (Outcome, error) {
	id := strings.TrimSpace(in.Text)
	if id == "" {
		return Outcome{}, ErrEmptyInput
	}
	added, err := e.deps.Channels.Add(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Flow: FlowAddChannel, Done: true, Key: id, Changed: added}, nil
}

func (e *Engine) removeChannel(ctx context.Context, in Input) (Outcome, error) {
	id := strings.TrimSpace(in.Text)
	if id == "" {
		return Outcome{}, ErrEmptyInput
	}
	removed, err := e.deps.Channels.Remove(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Flow: FlowRemoveChannel, Done: true, Key: id, Changed: removed}, nil
}

// broadcast completes the session even when the send was interrupted, since
// part of the audience may already have received the text.
func (e *Engine) broadcast(ctx context.Context, in Input) (Outcome, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Outcome{}, ErrEmptyInput
	}
	rep, err := e.deps.Broadcaster.Send(ctx, in.Text)
	if err != nil && rep.Total == 0 && rep.Results == nil {
		return Outcome{}, err
	}
	return Outcome{Flow: FlowBroadcast, Done: true, Changed: rep.Delivered > 0, Report: rep}, err
}

func (e *Engine) current(adminID int64) (Flow, Step, bool) {
	sess := e.sessions.Get(adminID)
	if !sess.Active() {
		return "", "", false
	}
	return ParseState(sess.State)
}

func (e *Engine) lock(adminID int64) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(adminID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
