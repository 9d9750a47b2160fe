package retrydelay

import (
	"testing"
	"time"
)

func TestFixedBackoffIsConstant(t *testing.T) {
	delay, _, err := New(Config{Backoff: Fixed(200 * time.Millisecond)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for n := 1; n <= 5; n++ {
		if got := delay(n); got != 200*time.Millisecond {
			t.Fatalf("attempt %d: got %v want 200ms", n, got)
		}
	}
}

func TestLinearBackoffIsMonotonicAndCapped(t *testing.T) {
	delay, _, err := New(Config{Backoff: Linear(100*time.Millisecond, 50*time.Millisecond, 300*time.Millisecond)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{100, 150, 200, 250, 300, 300}
	for i, w := range want {
		n := i + 1
		if got := delay(n); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v want %v", n, got, w*time.Millisecond)
		}
	}
}

func TestExponentialBackoffDoublesAndCaps(t *testing.T) {
	delay, _, err := New(Config{Backoff: Exponential(100*time.Millisecond, 2, 1000*time.Millisecond)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		n := i + 1
		if got := delay(n); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v want %v", n, got, w*time.Millisecond)
		}
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Backoff: Fixed(0)},
		{Backoff: Linear(0, 0, time.Second)},
		{Backoff: Linear(time.Second, -1, 2 * time.Second)},
		{Backoff: Linear(2 * time.Second, 0, time.Second)},
		{Backoff: Exponential(0, 2, time.Second)},
		{Backoff: Exponential(time.Second, 0.5, 2 * time.Second)},
		{Backoff: Fixed(time.Second), Jitter: DecorrelatedJitter(0, 2)},
		{Backoff: Fixed(time.Second), Jitter: DecorrelatedJitter(time.Second, 0.5)},
	}
	for i, c := range cases {
		if _, _, err := New(c); err == nil {
			t.Fatalf("case %d: expected validation error, got nil", i)
		}
	}
}
