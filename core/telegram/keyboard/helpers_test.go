package keyboard

import "testing"

func TestInlineButtonsRowsMixesURLAndData(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Channel", URL: "https://t.me/chan1"}},
		nil,
		[]InlineBtn{{Text: "Done", Unique: "check_sub"}},
	)
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2 (empty rows dropped)", len(m.InlineKeyboard))
	}
	link := m.InlineKeyboard[0][0]
	if link.URL != "https://t.me/chan1" || link.Data != "" {
		t.Fatalf("url button = %+v", link)
	}
	cb := m.InlineKeyboard[1][0]
	if cb.URL != "" || cb.Unique != "check_sub" {
		t.Fatalf("callback button = %+v", cb)
	}
}

func TestChunk(t *testing.T) {
	btns := []InlineBtn{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	rows := Chunk(btns, 2)
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("unexpected layout: %+v", rows)
	}
	if got := len(Chunk(btns, 0)); got != 3 {
		t.Fatalf("n<=1 rows = %d, want 3", got)
	}
	if got := Chunk(nil, 2); len(got) != 0 {
		t.Fatalf("empty input rows = %v", got)
	}
}

func TestCancelButtonDefaults(t *testing.T) {
	b := CancelButton("cancel", "")
	if b.Unique != "cancel" || b.Data != CancelPayload || b.Text != cancelText {
		t.Fatalf("cancel button = %+v", b)
	}
	if b = CancelButton("x", "Stop"); b.Text != "Stop" || b.Data != CancelPayload {
		t.Fatalf("override = %+v", b)
	}
}
