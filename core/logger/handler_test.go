package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// capture runs emit against a handler writing in format and returns the output lines.
func capture(t *testing.T, format logFormat, emit func(*slog.Logger)) []string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	emit(slog.New(newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})))
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		t.Fatal("expected log output")
	}
	return strings.Split(out, "\n")
}

func requireOrdered(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx <= pos {
			t.Fatalf("%q missing or out of order in %s", p, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	lines := capture(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("cause", "unit"),
			slog.String("status", "OK"),
		)
	})
	if !strings.HasPrefix(lines[0], "ts=") {
		t.Fatalf("line must start with ts: %s", lines[0])
	}
	requireOrdered(t, lines[0], " level=INFO", " component=app", " event=test.event",
		" status=ok", " rid=rid-123", " update_id=42", " user_id=7", " chat_id=9", " cause=unit")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-json"), 11, 22, 33)
	lines := capture(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "service.test"), slog.LevelError, "service.failed",
			slog.String("err_code", "TEST_FAIL"),
			slog.String("err", "boom"),
			slog.String("status", "fail"),
		)
	})
	requireOrdered(t, lines[0], `{"ts":`, `"level":"ERROR"`, `"component":"service.test"`,
		`"event":"service.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`, `"err_code":"TEST_FAIL"`)
}

func TestStructuredHandlerCompactsRID(t *testing.T) {
	const raw = "123:456:789"
	ctx := WithRID(context.Background(), raw)
	emit := func(l *slog.Logger) { LogEvent(ctx, l, slog.LevelInfo, "rid.test") }

	kv := capture(t, formatKV, emit)[0]
	if !strings.Contains(kv, "rid="+CompactRID(raw)) || strings.Contains(kv, "rid_full=") {
		t.Fatalf("kv line = %s", kv)
	}
	js := capture(t, formatJSON, emit)[0]
	for _, want := range []string{`"rid":"` + CompactRID(raw) + `"`, `"rid_full":"` + raw + `"`, `"ts_unix_nano"`} {
		if !strings.Contains(js, want) {
			t.Fatalf("json line %s lacks %s", js, want)
		}
	}
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	line := capture(t, formatKV, func(l *slog.Logger) {
		LogEvent(context.Background(), l, slog.LevelInfo, "x",
			slog.String("outcome", "maybe"),
			slog.String("empty", ""),
		)
	})[0]
	if strings.Contains(line, "outcome=") || strings.Contains(line, "empty=") {
		t.Fatalf("line = %s", line)
	}
}

func TestComponentLoggersCarryName(t *testing.T) {
	prev := L
	t.Cleanup(func() {
		L = prev
		wireLegacyComponents()
	})
	lines := capture(t, formatKV, func(l *slog.Logger) {
		L = l
		wireLegacyComponents()
		SVCWorkflow.Info("workflow completed", slog.String("event", "workflow.complete"), slog.String("flow", "add_entry"))
		SVCGate.Info("gate", slog.String("event", "gate.check"))
	})
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.Contains(lines[0], "component=service.workflow") || !strings.Contains(lines[0], "flow=add_entry") {
		t.Fatalf("workflow line = %s", lines[0])
	}
	if !strings.Contains(lines[1], "component=service.gate") {
		t.Fatalf("gate line = %s", lines[1])
	}
}
