package pipe

import (
	"context"
	"testing"
)

func TestConcatenatePreservesPerInputOrder(t *testing.T) {
	ctx := context.Background()
	p := Concatenate[int]("cat", InMemory("a", []int{1, 2}), InMemory("b", []int{3, 4}))
	got, err := drain[int](t, ctx, p.Enumerate(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestInterleaveDeliversAllItemsFromAllBranches(t *testing.T) {
	ctx := context.Background()
	p := Interleave[int]("merge", InMemory("a", []int{1, 2, 3}), InMemory("b", []int{4, 5, 6}))
	got, err := drain[int](t, ctx, p.Enumerate(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 items total, got %v", got)
	}
	seen := map[int]bool{}
	for _, v := range got {
		seen[v] = true
	}
	for _, want := range []int{1, 2, 3, 4, 5, 6} {
		if !seen[want] {
			t.Fatalf("missing item %d in interleaved output %v", want, got)
		}
	}
}

func TestZipPairsCorrespondingItemsAndStopsAtShorterSide(t *testing.T) {
	ctx := context.Background()
	p := Zip[int, string]("zip", InMemory("a", []int{1, 2, 3}), InMemory("b", []string{"x", "y"}))
	got, err := drain[Pair[int, string]](t, ctx, p.Enumerate(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected zip to stop at shorter side, got %v", got)
	}
	if got[0].First != 1 || got[0].Second != "x" {
		t.Fatalf("unexpected first pair: %+v", got[0])
	}
	if got[1].First != 2 || got[1].Second != "y" {
		t.Fatalf("unexpected second pair: %+v", got[1])
	}
}
