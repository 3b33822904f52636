package server

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiter(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := newRateLimiterWithClock(RateLimitConfig{Burst: 3, RefillInterval: time.Second}, clock.Now)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("Expected burst message %d to be allowed", i)
		}
	}
	if rl.allow() {
		t.Fatal("Expected the fourth message to be limited")
	}

	clock.Advance(time.Second / 3)
	if !rl.allow() {
		t.Error("Expected one token after a third of the interval")
	}
	if rl.allow() {
		t.Error("Expected only one token to have been refilled")
	}

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("Expected refill to cap at the burst, message %d limited", i)
		}
	}
	if rl.allow() {
		t.Error("Expected tokens to be capped at the burst size")
	}
}

func TestRateLimiterInvalidConfig(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(RateLimitConfig{}, clock.Now)

	if !rl.allow() {
		t.Fatal("Expected a single token with an empty config")
	}
	if rl.allow() {
		t.Fatal("Expected the second message to be limited")
	}
	clock.Advance(time.Second)
	if !rl.allow() {
		t.Error("Expected a refill after one second")
	}
}
