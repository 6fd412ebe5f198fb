package workflow

import (
	"strings"

	"github.com/m3rciful/gatebot/core/telegram/state"
)

// Flow names one administrator workflow.
type Flow string

const (
	FlowAddEntry      Flow = "add_entry"
	FlowDeleteEntry   Flow = "delete_entry"
	FlowAddChannel    Flow = "add_channel"
	FlowRemoveChannel Flow = "remove_channel"
	FlowBroadcast     Flow = "broadcast"
)

// Step names the input a flow waits for.
type Step string

const (
	StepAwaitingMedia      Step = "awaiting_media"
	StepAwaitingCode       Step = "awaiting_code"
	StepAwaitingIdentifier Step = "awaiting_identifier"
	StepAwaitingText       Step = "awaiting_text"
)

// InputKind distinguishes free text from media messages.
type InputKind int

const (
	InputText InputKind = iota
	InputMedia
)

func (k InputKind) String() string {
	if k == InputMedia {
		return "media"
	}
	return "text"
}

// Accepts returns the input kind the step consumes.
func (s Step) Accepts() InputKind {
	if s == StepAwaitingMedia {
		return InputMedia
	}
	return InputText
}

var flowSteps = map[Flow][]Step{
	FlowAddEntry:      {StepAwaitingMedia, StepAwaitingCode},
	FlowDeleteEntry:   {StepAwaitingCode},
	FlowAddChannel:    {StepAwaitingIdentifier},
	FlowRemoveChannel: {StepAwaitingIdentifier},
	FlowBroadcast:     {StepAwaitingText},
}

// Flows lists every known flow in menu order.
func Flows() []Flow {
	return []Flow{FlowAddEntry, FlowDeleteEntry, FlowAddChannel, FlowRemoveChannel, FlowBroadcast}
}

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	_, ok := flowSteps[f]
	return ok
}

// FirstStep returns the entry step of f.
func (f Flow) FirstStep() Step {
	steps := flowSteps[f]
	if len(steps) == 0 {
		return ""
	}
	return steps[0]
}

func (f Flow) next(s Step) (Step, bool) {
	steps := flowSteps[f]
	for i, st := range steps {
		if st == s && i+1 < len(steps) {
			return steps[i+1], true
		}
	}
	return "", false
}

const stateSep = ":"

func encodeState(f Flow, s Step) state.State {
	return state.State(string(f) + stateSep + string(s))
}

// ParseState splits a stored session state into its flow and step.
func ParseState(st state.State) (Flow, Step, bool) {
	f, s, ok := strings.Cut(string(st), stateSep)
	if !ok {
		return "", "", false
	}
	flow, step := Flow(f), Step(s)
	for _, known := range flowSteps[flow] {
		if known == step {
			return flow, step, true
		}
	}
	return "", "", false
}
