package pipe

import "errors"

// Sentinel errors for the flow-control and downstream-observability error
// taxonomies (spec §7).
var (
	// ErrDisposed is returned when Enumerate or Next is called after
	// Dispose.
	ErrDisposed = errors.New("pipe: disposed")

	// ErrCancelled is returned from Next when the run's cancellation
	// signal has fired.
	ErrCancelled = errors.New("pipe: cancelled")

	// ErrMaterializationOverflow is returned by CappedReplayable when the
	// number of materialized items would exceed MaxMaterializedItems.
	ErrMaterializationOverflow = errors.New("pipe: materialization overflow")

	// ErrTooManySubscribers is returned by Multicast when a subscriber
	// view is requested beyond the declared subscriber count.
	ErrTooManySubscribers = errors.New("pipe: too many subscribers")
)
