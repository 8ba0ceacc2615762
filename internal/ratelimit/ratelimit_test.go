package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	if got := ParseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("ParseRetryAfter(3) = %v", got)
	}
	if got := ParseRetryAfter(""); got != 0 {
		t.Errorf("empty = %v", got)
	}
	if got := ParseRetryAfter("soon"); got != 0 {
		t.Errorf("garbage = %v", got)
	}
}

func TestRetryDelay(t *testing.T) {
	if RetryDelay(0) != 200*time.Millisecond {
		t.Errorf("RetryDelay(0) = %v", RetryDelay(0))
	}
	if RetryDelay(2) != 800*time.Millisecond {
		t.Errorf("RetryDelay(2) = %v", RetryDelay(2))
	}
	if RetryDelay(20) != 5*time.Second {
		t.Errorf("RetryDelay(20) = %v", RetryDelay(20))
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0, 0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > time.Second {
		t.Error("unlimited limiter should not block")
	}
}

func TestLimiter_BackoffHonorsContext(t *testing.T) {
	l := New(0, 0)
	l.Backoff("60")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected context error while backing off")
	}
}
