package dag

import "reflect"

// edge is a directed, typed connection between two nodes' handles.
type edge struct {
	from       string
	to         string
	elemType   reflect.Type
	bufferSize int
	role       string
}

// EdgeOption configures a single Connect call.
type EdgeOption func(*Edge)

// WithBufferSize sets a per-edge buffer capacity hint consumed by the
// runner when materializing this edge's pipe.
func WithBufferSize(n int) EdgeOption {
	return func(e *Edge) { e.BufferSize = n }
}

// WithRole tags the edge for downstream nodes with more than one kind of
// input (e.g. a primary edge vs. a late-data edge on an aggregate).
func WithRole(role string) EdgeOption {
	return func(e *Edge) { e.Role = role }
}
