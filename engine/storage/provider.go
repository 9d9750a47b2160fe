// Package storage defines the storage-provider contract connector nodes
// consume from the runtime. The core ships no implementation of its own —
// localfs and vectorblob are reference providers used by the conformance
// suite and by sample connectors, not a privileged default.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/npipeline/npipeline/pkg/pipe"
)

// URI identifies a storage object by scheme, host, path, and query
// parameters, independent of any one provider's native addressing.
type URI struct {
	Scheme string
	Host   string
	Path   string
	Query  url.Values
}

// ParseURI parses s into a URI. The scheme determines which Provider a
// caller routes the URI to; this package does not perform that routing.
func ParseURI(s string) (URI, error) {
	u, err := url.Parse(s)
	if err != nil {
		return URI{}, fmt.Errorf("storage: parse uri %q: %w", s, err)
	}
	return URI{Scheme: u.Scheme, Host: u.Host, Path: u.Path, Query: u.Query()}, nil
}

// String renders the URI back to its canonical form.
func (u URI) String() string {
	raw := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path, RawQuery: u.Query.Encode()}
	return raw.String()
}

// Metadata describes an object a Provider already holds.
type Metadata struct {
	URI         URI
	Size        int64
	ModifiedAt  time.Time
	ETag        string
	ContentType string
}

// Item is one entry yielded by Provider.List.
type Item struct {
	URI      URI
	Metadata Metadata
	IsPrefix bool
}

// Capabilities reports which operations a Provider actually supports. A
// caller must consult this before relying on an optional capability —
// calling an unsupported operation returns ProviderError, not a panic.
type Capabilities struct {
	Read         bool
	Write        bool
	Delete       bool
	List         bool
	Metadata     bool
	Hierarchical bool
}

// Sentinel errors forming the closed error taxonomy every Provider method
// must map its failures onto.
var (
	ErrNotFound         = errors.New("storage: not found")
	ErrUnauthorized     = errors.New("storage: unauthorized")
	ErrPermissionDenied = errors.New("storage: permission denied")
	ErrConflict         = errors.New("storage: conflict")
	ErrTransientIO      = errors.New("storage: transient io error")
)

// ProviderError wraps a provider-specific failure that the sentinel
// taxonomy has no closer match for.
type ProviderError struct {
	URI    URI
	Detail string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: provider error for %s: %s: %v", e.URI, e.Detail, e.Err)
	}
	return fmt.Sprintf("storage: provider error for %s: %s", e.URI, e.Detail)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider is the storage surface a connector node consumes. Every method
// takes a context for cancellation; no method blocks past the context's
// deadline or cancellation signal without returning ErrTransientIO or the
// context's own error.
type Provider interface {
	// OpenRead returns a stream over uri's contents. Returns ErrNotFound if
	// uri does not exist.
	OpenRead(ctx context.Context, uri URI) (io.ReadCloser, error)

	// OpenWrite returns a stream that writes to uri. Closing the stream
	// commits the write; a caller that abandons it without closing leaves
	// no object behind, when the provider can make that guarantee.
	OpenWrite(ctx context.Context, uri URI) (io.WriteCloser, error)

	// Exists reports whether uri currently names an object.
	Exists(ctx context.Context, uri URI) (bool, error)

	// List enumerates objects at or under prefix. recursive controls
	// whether nested prefixes are descended into or returned as IsPrefix
	// entries; a non-hierarchical provider (Capabilities.Hierarchical
	// false) ignores recursive and always returns a flat listing.
	List(ctx context.Context, prefix URI, recursive bool) (pipe.Pipe[Item], error)

	// Metadata returns uri's Metadata, or ErrNotFound if it does not
	// exist.
	Metadata(ctx context.Context, uri URI) (Metadata, error)

	// Capabilities reports which of the above a caller can rely on.
	Capabilities() Capabilities
}

// JoinPrefix is a small shared helper for hierarchical path-prefix
// providers: it normalizes prefix.Path to not have a trailing slash so
// child-path comparisons (strings.HasPrefix against path+"/") are
// unambiguous.
func JoinPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/")
}

// SortItems orders listing output deterministically by URI path, since
// neither a filesystem walk nor a Qdrant scroll guarantees any particular
// order.
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].URI.Path < items[j].URI.Path })
}
