// Package runctx defines the per-run context threaded through every node
// and pipe: cancellation, a cooperative parameters map, optional services,
// and a run identifier. It is split out from engine/runner so that
// engine/node can depend on the context shape without creating an import
// cycle with engine/runner, which in turn depends on engine/node to drive
// execution.
package runctx

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/npipeline/npipeline/engine/lineage"
)

// Services is the optional service bag a run's context carries.
type Services struct {
	Clock   func() time.Time
	Logger  *slog.Logger
	Lineage lineage.Collector
}

func (s Services) withDefaults() Services {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

// Context is the runtime context.PipelineContext realization: cancellation
// via a context.CancelCauseFunc, a CAS-guarded parameters map, optional
// services, and a run id.
type Context struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	Params   *Params
	Services Services
	RunID    uuid.UUID
}

// New creates a run context derived from parent. The returned Context must
// have Cancel called (directly, or transitively via the parent) to release
// resources associated with the derived context.
func New(parent context.Context, services Services) *Context {
	ctx, cancel := context.WithCancelCause(parent)
	return &Context{
		ctx:      ctx,
		cancel:   cancel,
		Params:   NewParams(),
		Services: services.withDefaults(),
		RunID:    uuid.New(),
	}
}

// Ctx returns the underlying context.Context, for passing to APIs that
// take one directly (pipe.Iterator.Next, node Execute calls, etc).
func (c *Context) Ctx() context.Context { return c.ctx }

// Cancel signals the run's cancellation token with cause. Idempotent; only
// the first call's cause is retained.
func (c *Context) Cancel(cause error) { c.cancel(cause) }

// Err returns the underlying context's error, or nil if it has not been
// cancelled.
func (c *Context) Err() error { return c.ctx.Err() }

// Cause returns the cause passed to Cancel, or context.Cause's default if
// the context was cancelled by its parent instead.
func (c *Context) Cause() error { return context.Cause(c.ctx) }

// Logger is a convenience accessor for Services.Logger.
func (c *Context) Logger() *slog.Logger { return c.Services.Logger }

// Now is a convenience accessor for Services.Clock.
func (c *Context) Now() time.Time { return c.Services.Clock() }
