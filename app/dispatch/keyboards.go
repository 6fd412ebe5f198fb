package dispatch

import (
	"strconv"
	"strings"

	"github.com/m3rciful/gatebot/app/workflow"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"
)

const menuPerRow = 2

// menuRows renders the admin menu: every flow plus statistics.
func menuRows() [][]keyboard.InlineBtn {
	flows := workflow.Flows()
	buttons := make([]keyboard.InlineBtn, 0, len(flows)+1)
	for _, f := range flows {
		buttons = append(buttons, keyboard.InlineBtn{Text: flowLabels[f], Unique: ActionMenu, Data: string(f)})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: btnStats, Unique: ActionMenu, Data: MenuStats})
	return keyboard.Chunk(buttons, menuPerRow)
}

func cancelRows() [][]keyboard.InlineBtn {
	return [][]keyboard.InlineBtn{{keyboard.CancelButton(ActionCancel, btnCancel)}}
}

// gateRows renders one link per gating channel and the confirm button.
// Channels without a public link are left out.
func gateRows(channels []string) [][]keyboard.InlineBtn {
	rows := make([][]keyboard.InlineBtn, 0, len(channels)+1)
	for _, ch := range channels {
		link, ok := ChannelURL(ch)
		if !ok {
			continue
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: btnChannel + channelLabel(ch), URL: link}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: btnSubscribed, Unique: ActionCheckSub}})
	return rows
}

// ChannelURL maps a channel identifier to its public t.me link.
// Numeric chat ids have no public link.
func ChannelURL(identifier string) (string, bool) {
	id := strings.TrimSpace(identifier)
	switch {
	case id == "":
		return "", false
	case strings.HasPrefix(id, "https://"), strings.HasPrefix(id, "http://"):
		return id, true
	case strings.HasPrefix(id, "t.me/"):
		return "https://" + id, true
	}
	name := strings.TrimPrefix(id, "@")
	if name == "" {
		return "", false
	}
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return "", false
	}
	return "https://t.me/" + name, true
}

func channelLabel(identifier string) string {
	id := strings.TrimSpace(identifier)
	if i := strings.LastIndex(id, "/"); i >= 0 && i+1 < len(id) {
		return "@" + id[i+1:]
	}
	if !strings.HasPrefix(id, "@") {
		return "@" + id
	}
	return id
}
