package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/gatebot/core/telegram/sender"
)

func TestAsyncWithoutDispatcherRunsInline(t *testing.T) {
	SetDispatcher(nil)
	ran := false
	if err := Async(context.Background(), "a", "b", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("async: %v", err)
	}
	if !ran {
		t.Fatal("call did not run inline")
	}
}

func TestAsyncFallsBackWhenQueueClosed(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	SetDispatcher(d)
	defer SetDispatcher(nil)

	ran := false
	if err := Async(context.Background(), "a", "b", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("async: %v", err)
	}
	if !ran {
		t.Fatal("closed queue must fall back to inline execution")
	}
}

func TestSyncPropagatesError(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, RetryBackoff: time.Millisecond})
	defer d.Close()
	SetDispatcher(d)
	defer SetDispatcher(nil)

	boom := errors.New("boom")
	if err := Sync(context.Background(), "a", "b", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
