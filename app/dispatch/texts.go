package dispatch

import (
	"fmt"

	"github.com/m3rciful/gatebot/app/broadcast"
	"github.com/m3rciful/gatebot/app/store"
	"github.com/m3rciful/gatebot/app/workflow"
	"github.com/m3rciful/gatebot/core/buildinfo"
)

const (
	textAdminMenu       = "👑 Admin panel"
	textGateStart       = "❗ To use the bot, subscribe to the channels below and press the button."
	textGateRetry       = "❗ Subscribe to the channels first."
	textAskCode         = "🎬 Send the video code."
	textConfirmed       = "✅ Thanks! Now send the video code."
	textNotSubscribed   = "⛔ You are not subscribed yet!"
	textNotFound        = "❌ There is no video with this code."
	textCaption         = "🎬 Enjoy watching!"
	textDeliveryFailed  = "⚠️ Could not send the video right now, please try again later."
	textUnsupported     = "Unsupported."
	textCancelled       = "Cancelled."
	textNothingToCancel = "Nothing to cancel."
	textEmptyInput      = "The value cannot be empty."
	textStoreFailed     = "⚠️ Could not apply the change, please try again."
	textStatsFailed     = "⚠️ Statistics are unavailable right now."
	textWrongMedia      = "A video is expected here."
	textWrongText       = "A text message is expected here."

	btnChannel    = "📢 "
	btnSubscribed = "✅ I subscribed"
	btnCancel     = "❌ Cancel"
)

var flowLabels = map[workflow.Flow]string{
	workflow.FlowAddEntry:      "🎬 Add video",
	workflow.FlowDeleteEntry:   "❌ Delete video",
	workflow.FlowAddChannel:    "📢 Add channel",
	workflow.FlowRemoveChannel: "🗑 Remove channel",
	workflow.FlowBroadcast:     "📨 Broadcast",
}

const btnStats = "📊 Statistics"

// FlowName is the human label of a flow used in notices.
func FlowName(f workflow.Flow) string {
	switch f {
	case workflow.FlowAddEntry:
		return "add video"
	case workflow.FlowDeleteEntry:
		return "delete video"
	case workflow.FlowAddChannel:
		return "add channel"
	case workflow.FlowRemoveChannel:
		return "remove channel"
	case workflow.FlowBroadcast:
		return "broadcast"
	}
	return string(f)
}

func promptFor(f workflow.Flow, s workflow.Step) string {
	switch {
	case s == workflow.StepAwaitingMedia:
		return "🎥 Send the video."
	case f == workflow.FlowAddEntry:
		return "🔢 Send the code for this video."
	case f == workflow.FlowDeleteEntry:
		return "❌ Send the code of the video to delete."
	case f == workflow.FlowAddChannel:
		return "➕ Send the channel @username."
	case f == workflow.FlowRemoveChannel:
		return "🗑 Send the channel @username to remove."
	case f == workflow.FlowBroadcast:
		return "📨 Send the message text for all users."
	}
	return textAskCode
}

func discardedNotice(f workflow.Flow) string {
	return fmt.Sprintf("The unfinished %q action was discarded.", FlowName(f))
}

// ExpiredNotice tells an administrator that an idle session was dropped.
func ExpiredNotice(f workflow.Flow) string {
	return fmt.Sprintf("⌛ The %q action timed out and was cancelled.", FlowName(f))
}

func outcomeText(out workflow.Outcome, err error) string {
	switch out.Flow {
	case workflow.FlowAddEntry:
		return fmt.Sprintf("✅ Video saved under code %s.", out.Key)
	case workflow.FlowDeleteEntry:
		if out.Changed {
			return fmt.Sprintf("🗑 Video %s deleted.", out.Key)
		}
		return fmt.Sprintf("There is no video with code %s.", out.Key)
	case workflow.FlowAddChannel:
		if out.Changed {
			return fmt.Sprintf("✅ Channel %s added.", out.Key)
		}
		return fmt.Sprintf("Channel %s is already in the list.", out.Key)
	case workflow.FlowRemoveChannel:
		if out.Changed {
			return fmt.Sprintf("❌ Channel %s removed.", out.Key)
		}
		return fmt.Sprintf("Channel %s was not in the list.", out.Key)
	case workflow.FlowBroadcast:
		return reportText(out.Report, err)
	}
	return "Done."
}

func reportText(rep broadcast.Report, err error) string {
	head := "✅ Broadcast finished"
	if err != nil {
		head = "⚠️ Broadcast interrupted"
	}
	return fmt.Sprintf("%s\n\nRecipients: %d\nDelivered: %d\nFailed: %d", head, rep.Total, rep.Delivered, rep.Failed)
}

func statsText(s store.Stats) string {
	return fmt.Sprintf("📊 Statistics\n\n👥 Users: %d\n🎬 Videos: %d\n📢 Channels: %d\n\n🛠 %s",
		s.Users, s.Entries, s.Channels, buildinfo.String())
}
