package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the subset of tele.Context the routers touch.
type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	store  map[string]any
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{sender: &tele.User{ID: userID}, text: text, store: map[string]any{}}
}

func (f *fakeContext) Sender() *tele.User      { return f.sender }
func (f *fakeContext) Chat() *tele.Chat        { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update     { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string            { return f.text }
func (f *fakeContext) Get(key string) any      { return f.store[key] }
func (f *fakeContext) Set(key string, val any) { f.store[key] = val }

type codedErr struct{}

func (codedErr) Error() string { return "x" }
func (codedErr) Code() string  { return "not found" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Start":         "start",
		"  ":             "unknown",
		"/":              "unknown",
		"check sub":      "check_sub",
		"menu.Broadcast": "menu.broadcast",
	}
	for in, want := range cases {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{codedErr{}, "NOT_FOUND"},
		{fmt.Errorf("lookup: %w", codedErr{}), "NOT_FOUND"},
		{&plainErr{}, "PLAINERR"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := errorCode(tc.err); got != tc.want {
			t.Errorf("errorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestEndpointsNormalizesAliases(t *testing.T) {
	got := endpoints("/start", []string{"menu", "", " /help "})
	want := []string{"/start", "/menu", "/help"}
	if !slices.Equal(got, want) {
		t.Fatalf("endpoints = %v, want %v", got, want)
	}
}

func TestDispatchNotifiesObserver(t *testing.T) {
	var gotHandler, gotOutcome string
	SetObserver(func(handler, outcome string, _ time.Duration) {
		gotHandler, gotOutcome = handler, outcome
	})
	defer SetObserver(nil)

	c := newFakeContext(5, "hi")
	boom := errors.New("boom")
	err := begin("fallback").run(c, func(tele.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if gotHandler != "fallback" || gotOutcome != "fail" {
		t.Fatalf("observer got (%q, %q)", gotHandler, gotOutcome)
	}

	_ = begin("fsm").run(c, func(tele.Context) error { return context.Canceled })
	if gotHandler != "fsm" || gotOutcome != "cancelled" {
		t.Fatalf("observer got (%q, %q)", gotHandler, gotOutcome)
	}

	begin("unknown_text").skip(c)
	if gotHandler != "unknown_text" || gotOutcome != "ok" {
		t.Fatalf("observer got (%q, %q)", gotHandler, gotOutcome)
	}
}

type fakeFSM struct {
	active  map[int64]bool
	handled int
}

func (f *fakeFSM) InProgress(userID int64) bool { return f.active[userID] }
func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

func TestInSession(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{7: true}}
	if !inSession(fsm, newFakeContext(7, "")) {
		t.Fatal("user 7 has a session")
	}
	if inSession(fsm, newFakeContext(8, "")) {
		t.Fatal("user 8 has no session")
	}
	if inSession(nil, newFakeContext(7, "")) {
		t.Fatal("nil fsm never reports a session")
	}
}
