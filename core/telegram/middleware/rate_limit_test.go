package middleware

import (
	"testing"
	"time"
)

func TestLimiterSetAllowsBurstThenBlocks(t *testing.T) {
	s := newLimiterSet(RateLimitOptions{Interval: time.Hour, Burst: 2})

	if !s.allow(1) || !s.allow(1) {
		t.Fatal("burst of two must be allowed")
	}
	if s.allow(1) {
		t.Fatal("third update within the interval must be limited")
	}
	if !s.allow(2) {
		t.Fatal("limits are per user")
	}
}

func TestLimiterSetEvictsOldestUser(t *testing.T) {
	s := newLimiterSet(RateLimitOptions{Interval: time.Hour, Burst: 1, MaxUsers: 1})

	if !s.allow(1) {
		t.Fatal("first update allowed")
	}
	if !s.allow(2) {
		t.Fatal("second user allowed")
	}
	// user 1 was evicted, so it starts with a fresh bucket
	if !s.allow(1) {
		t.Fatal("evicted user should get a fresh limiter")
	}
}
