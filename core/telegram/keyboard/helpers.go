package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes one inline button. A button with URL set opens the
// link; otherwise it sends Unique and Data back as a callback.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// CancelPayload is the callback data carried by CancelButton.
const CancelPayload = "cancel"

const cancelText = "❌ Cancel"

func (b InlineBtn) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *m.URL(b.Text, b.URL).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtonsRows builds an inline keyboard from rows of buttons; empty rows are dropped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			out = append(out, b.inline(m))
		}
		m.InlineKeyboard = append(m.InlineKeyboard, out)
	}
	return m
}

// Chunk lays buttons out in rows of at most n; n below 1 means one per row.
func Chunk(buttons []InlineBtn, n int) [][]InlineBtn {
	return slices.Collect(slices.Chunk(buttons, max(n, 1)))
}

// CancelButton returns a button that sends CancelPayload to unique.
// An empty text selects the default label.
func CancelButton(unique, text string) InlineBtn {
	if text == "" {
		text = cancelText
	}
	return InlineBtn{Text: text, Unique: unique, Data: CancelPayload}
}
