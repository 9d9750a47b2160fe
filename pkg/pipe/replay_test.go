package pipe

import (
	"context"
	"errors"
	"testing"
)

func TestCappedReplayableReplaysExactSequence(t *testing.T) {
	ctx := context.Background()
	p := CappedReplayable[int]("cap", InMemory("nums", []int{1, 2, 3}), 10)

	first, err := drain[int](t, ctx, p.Enumerate(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := drain[int](t, ctx, p.Enumerate(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected replay to produce identical sequence, got %v then %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged at %d: %v vs %v", i, first, second)
		}
	}
}

func TestCappedReplayableOverflowFailsPermanently(t *testing.T) {
	ctx := context.Background()
	p := CappedReplayable[int]("cap", InMemory("nums", []int{1, 2, 3}), 2)

	_, err := drain[int](t, ctx, p.Enumerate(ctx))
	if !errors.Is(err, ErrMaterializationOverflow) {
		t.Fatalf("expected ErrMaterializationOverflow, got %v", err)
	}

	_, err = drain[int](t, ctx, p.Enumerate(ctx))
	if !errors.Is(err, ErrMaterializationOverflow) {
		t.Fatalf("expected second enumeration to also report ErrMaterializationOverflow, got %v", err)
	}
}

func TestCappedReplayableNegativeCapAlwaysOverflows(t *testing.T) {
	ctx := context.Background()
	p := CappedReplayable[int]("cap", InMemory("nums", []int{1}), -1)
	_, err := drain[int](t, ctx, p.Enumerate(ctx))
	if !errors.Is(err, ErrMaterializationOverflow) {
		t.Fatalf("expected ErrMaterializationOverflow, got %v", err)
	}
}
