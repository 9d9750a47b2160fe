package node

import "fmt"

// SourceInitError reports a Source that failed before producing any item.
// Mid-stream failures surface instead as ordinary errors from the pipe the
// source returned.
type SourceInitError struct {
	NodeID string
	Err    error
}

func (e *SourceInitError) Error() string {
	return fmt.Sprintf("node %s: source initialization failed: %v", e.NodeID, e.Err)
}

func (e *SourceInitError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that Resilient gave up retrying a
// transform after exhausting its configured attempts. It implements
// pipe.RetryExhausted structurally (via the RetryExhausted method) so that
// pkg/pipe's counting pipe can recognize it without engine/node importing
// pkg/pipe's error taxonomy or vice versa creating a cycle.
type RetryExhaustedError struct {
	NodeID   string
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("node %s: retry exhausted after %d attempts: %v", e.NodeID, e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }

// RetryExhausted satisfies pipe.RetryExhausted.
func (e *RetryExhaustedError) RetryExhausted() bool { return true }
