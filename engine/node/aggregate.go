package node

// Aggregate partitions an input stream by key and folds each key's items
// into an accumulator, finalizing into zero or more outputs when the
// owning window closes. Within a single key, items are folded in receive
// order; across keys, the runner is free to parallelize.
type Aggregate[In any, K comparable, Acc, Out any] interface {
	// KeyOf extracts the partition key for an item.
	KeyOf(item In) K
	// Seed returns a fresh accumulator for a key's first item.
	Seed() Acc
	// Fold combines one item into an accumulator.
	Fold(acc Acc, item In) Acc
	// Merge combines two accumulators for the same key, used when folding
	// happened across parallel workers.
	Merge(a, b Acc) Acc
	// Finalize converts a key's closed-window accumulator into zero or
	// more output items.
	Finalize(key K, acc Acc) []Out
	// Window declares how this aggregate partitions time.
	Window() Window
}
