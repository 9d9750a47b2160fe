package node

import (
	"time"

	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/retrydelay"
)

// Resilient wraps t so that a failing Execute call is attempted at most
// maxAttempts times in total, waiting delay(attempt) between attempts. On
// exhaustion it returns a *RetryExhaustedError rather than the last raw
// error. This generalizes the teacher's fn.Retry loop (which only offered
// a fixed exponential+full-jitter policy) to any retrydelay.DelayFunc.
func Resilient[In, Out any](id string, t Transform[In, Out], delay retrydelay.DelayFunc, maxAttempts int) Transform[In, Out] {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return TransformFunc[In, Out](func(ctx *runctx.Context, item In) (Out, bool, error) {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			out, ok, err := t.Execute(ctx, item)
			if err == nil {
				return out, ok, nil
			}
			lastErr = err

			if attempt == maxAttempts {
				break
			}
			select {
			case <-ctx.Ctx().Done():
				var zero Out
				return zero, false, ctx.Ctx().Err()
			default:
			}

			wait := delay(attempt)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Ctx().Done():
				timer.Stop()
				var zero Out
				return zero, false, ctx.Ctx().Err()
			case <-timer.C:
			}
		}
		var zero Out
		return zero, false, &RetryExhaustedError{NodeID: id, Attempts: maxAttempts, LastErr: lastErr}
	})
}
