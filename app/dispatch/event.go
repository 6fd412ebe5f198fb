package dispatch

import "github.com/m3rciful/gatebot/app/workflow"

// Kind classifies inbound events.
type Kind int

const (
	KindCommand Kind = iota
	KindCallback
	KindText
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	case KindText:
		return "text"
	case KindMedia:
		return "media"
	}
	return "unknown"
}

// Event is a transport-neutral inbound update.
type Event struct {
	Kind      Kind
	UserID    int64
	ChatID    int64
	MessageID int

	// Command is the command name without the leading slash.
	Command string

	CallbackID string
	// Action is the callback's unique key, Payload its data.
	Action  string
	Payload string

	Text     string
	MediaRef string
}

// Commands handled by the router.
const (
	CmdStart  = "start"
	CmdCancel = "cancel"
	CmdAdmin  = "admin"
	CmdStats  = "stats"
)

// Callback actions handled by the router.
const (
	ActionCheckSub = "check_sub"
	ActionMenu     = "admin_menu"
	ActionCancel   = "flow_cancel"
)

// MenuStats is the admin menu payload that shows statistics.
const MenuStats = "stats"

func (e Event) input() (workflow.Input, bool) {
	switch e.Kind {
	case KindText:
		return workflow.TextInput(e.Text), true
	case KindMedia:
		return workflow.MediaInput(e.MediaRef), true
	}
	return workflow.Input{}, false
}
