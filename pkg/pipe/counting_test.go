package pipe

import (
	"context"
	"testing"
)

type retryExhaustedErr struct{ msg string }

func (e *retryExhaustedErr) Error() string      { return e.msg }
func (e *retryExhaustedErr) RetryExhausted() bool { return true }

func TestCountingTracksDeliveredItems(t *testing.T) {
	counter := &Counter{}
	p := Counting[int](InMemory("nums", []int{1, 2, 3}), counter, nil)
	if _, err := drain[int](t, context.Background(), p.Enumerate(context.Background())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counter.Count(); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
}

func TestCountingInvokesOnRetryExhausted(t *testing.T) {
	failing := Streaming[int]("failing", false, func(ctx context.Context) Iterator[int] {
		return IteratorFunc[int](func(ctx context.Context) (int, bool, error) {
			return 0, false, &retryExhaustedErr{msg: "boom"}
		})
	})

	var captured error
	p := Counting[int](failing, nil, func(err error) { captured = err })
	_, _, err := p.Enumerate(context.Background()).Next(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if captured == nil {
		t.Fatalf("expected onRetryExhausted to be invoked")
	}
}
