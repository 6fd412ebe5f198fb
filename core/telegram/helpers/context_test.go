package helpers

import (
	"context"
	"testing"

	"github.com/m3rciful/gatebot/core/logger"
)

type ctxMarker struct{}

func TestBuildContextDerivesFromBase(t *testing.T) {
	SetBaseContext(context.WithValue(context.Background(), ctxMarker{}, "root"))
	defer SetBaseContext(nil)

	c := &storeContext{store: map[string]any{}}
	ctx := BuildContext(c)
	if ctx.Value(ctxMarker{}) != "root" {
		t.Fatal("update context must derive from the base context")
	}
	if got := logger.RIDFrom(ctx); got != logger.BuildRID(9, 5, 5) {
		t.Fatalf("rid = %q", got)
	}
	if logger.UserIDFrom(ctx) != 5 || logger.ChatIDFrom(ctx) != 5 {
		t.Fatal("update meta missing")
	}
	if BuildContext(c) != ctx {
		t.Fatal("second call must return the cached context")
	}
}

func TestBuildContextPrefersStoredRID(t *testing.T) {
	c := &storeContext{store: map[string]any{"rid": "fixed"}}
	if got := logger.RIDFrom(BuildContext(c)); got != "fixed" {
		t.Fatalf("rid = %q", got)
	}
}

func TestWithHandlerEmptyKeepsContext(t *testing.T) {
	c := &storeContext{store: map[string]any{}}
	ctx := BuildContext(c)
	if WithHandler(c, "") != ctx {
		t.Fatal("empty handler must not replace the context")
	}
	if logger.HandlerFrom(WithHandler(c, "start")) != "start" {
		t.Fatal("handler not recorded")
	}
}
