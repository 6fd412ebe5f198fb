package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type senderContext struct {
	tele.Context
	sender *tele.User
}

func (s senderContext) Sender() *tele.User { return s.sender }

func TestAdminOnlyMiddleware(t *testing.T) {
	admins := map[int64]bool{10: true}
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		IsAdmin:  func(id int64) bool { return admins[id] },
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(senderContext{sender: &tele.User{ID: 10}})
	_ = h(senderContext{sender: &tele.User{ID: 11}})
	_ = h(senderContext{})

	if passed != 1 || rejected != 2 {
		t.Fatalf("passed=%d rejected=%d, want 1 and 2", passed, rejected)
	}
}

func TestAdminOnlyMiddlewareWithoutPredicateRejects(t *testing.T) {
	h := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	if err := h(senderContext{sender: &tele.User{ID: 1}}); err != nil {
		t.Fatalf("err = %v", err)
	}
}
