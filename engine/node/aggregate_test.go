package node

import "testing"

type sumByParity struct{}

func (sumByParity) KeyOf(item int) bool     { return item%2 == 0 }
func (sumByParity) Seed() int               { return 0 }
func (sumByParity) Fold(acc int, item int) int { return acc + item }
func (sumByParity) Merge(a, b int) int      { return a + b }
func (sumByParity) Finalize(key bool, acc int) []int { return []int{acc} }
func (sumByParity) Window() Window {
	return Tumbling(0, nil, 0)
}

var _ Aggregate[int, bool, int, int] = sumByParity{}

func TestAggregateFoldsWithinKey(t *testing.T) {
	var agg Aggregate[int, bool, int, int] = sumByParity{}
	acc := agg.Seed()
	for _, v := range []int{2, 4, 6} {
		acc = agg.Fold(acc, v)
	}
	got := agg.Finalize(true, acc)
	if len(got) != 1 || got[0] != 12 {
		t.Fatalf("got %v want [12]", got)
	}
}

func TestAggregateMergeCombinesAccumulators(t *testing.T) {
	var agg Aggregate[int, bool, int, int] = sumByParity{}
	a := agg.Fold(agg.Seed(), 2)
	b := agg.Fold(agg.Seed(), 4)
	merged := agg.Merge(a, b)
	if merged != 6 {
		t.Fatalf("got %d want 6", merged)
	}
}
