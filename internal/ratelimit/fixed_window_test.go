package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(srv.Addr(), "", "bookshop:test", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, srv
}

func TestAllowStopsAtTheWindowBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("login|10.0.0.1") {
			t.Fatalf("hit %d should be within budget", i+1)
		}
	}
	if limiter.Allow("login|10.0.0.1") {
		t.Fatal("hit past the budget should be blocked")
	}
	if !limiter.Allow("login|10.0.0.2") {
		t.Fatal("other keys keep their own budget")
	}
}

func TestAllowFailsClosedWhenRedisIsDown(t *testing.T) {
	limiter, srv := newTestLimiter(t, 5)
	srv.Close()
	if limiter.Allow("login|10.0.0.1") {
		t.Fatal("a redis fault must not open the gate")
	}
}

func TestConstructorRejectsBadInputs(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "p", 1, time.Minute); err == nil {
		t.Fatal("expected error for missing redis addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 0, time.Minute); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 1, 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}
