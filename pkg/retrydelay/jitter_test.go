package retrydelay

import (
	"math/rand"
	"testing"
	"time"
)

func TestFullJitterStaysWithinBackoffBound(t *testing.T) {
	delay, _, err := New(Config{
		Backoff: Exponential(100*time.Millisecond, 2, 30*time.Second),
		Jitter:  FullJitter(),
	}, WithSource(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for n := 1; n <= 5; n++ {
		bound := Exponential(100*time.Millisecond, 2, 30*time.Second).at(n)
		got := delay(n)
		if got < 0 || got > bound {
			t.Fatalf("attempt %d: delay %v outside [0, %v]", n, got, bound)
		}
	}
}

func TestEqualJitterStaysWithinHalfBound(t *testing.T) {
	delay, _, err := New(Config{
		Backoff: Exponential(100*time.Millisecond, 2, 30*time.Second),
		Jitter:  EqualJitter(),
	}, WithSource(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for n := 1; n <= 5; n++ {
		bound := Exponential(100*time.Millisecond, 2, 30*time.Second).at(n)
		got := delay(n)
		if got < bound/2 || got > bound {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", n, got, bound/2, bound)
		}
	}
}

func TestNoJitterMatchesRawBackoff(t *testing.T) {
	delay, _, err := New(Config{
		Backoff: Linear(100*time.Millisecond, 50*time.Millisecond, time.Second),
		Jitter:  NoJitter(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := Linear(100*time.Millisecond, 50*time.Millisecond, time.Second)
	for n := 1; n <= 4; n++ {
		if got, want := delay(n), b.at(n); got != want {
			t.Fatalf("attempt %d: got %v want %v", n, got, want)
		}
	}
}

func TestDecorrelatedJitterIsStatefulAndBounded(t *testing.T) {
	delay, _, err := New(Config{
		Backoff: Fixed(100 * time.Millisecond),
		Jitter:  DecorrelatedJitter(2*time.Second, 3),
	}, WithSource(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prev := delay(1)
	if prev > 2*time.Second {
		t.Fatalf("first delay %v exceeds max", prev)
	}
	for n := 2; n <= 6; n++ {
		got := delay(n)
		if got > 2*time.Second {
			t.Fatalf("attempt %d: delay %v exceeds max", n, got)
		}
		if got < 100*time.Millisecond {
			t.Fatalf("attempt %d: delay %v below base", n, got)
		}
	}
}

func TestDecorrelatedJitterSerializesConcurrentCallers(t *testing.T) {
	delay, _, err := New(Config{
		Backoff: Fixed(50 * time.Millisecond),
		Jitter:  DecorrelatedJitter(time.Second, 2),
	}, WithSource(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			delay(n%5 + 1)
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
