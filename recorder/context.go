package recorder

import (
	"context"
	"time"
)

// startKey carries a request's start time inside that request's own context,
// so concurrent requests can never observe each other's timing.
type startKey struct{}

// StartedAtUserValue is the fasthttp.RequestCtx user value key holding a
// request's start time.
const StartedAtUserValue = "dumpslow.startedAt"

func WithStart(ctx context.Context, startedAt time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, startedAt)
}

// StartFromContext returns the start time stored by WithStart. For a
// fasthttp.RequestCtx the StartedAtUserValue user value is read instead.
func StartFromContext(ctx context.Context) (time.Time, bool) {
	if startedAt, ok := ctx.Value(startKey{}).(time.Time); ok {
		return startedAt, true
	}
	if userValues, ok := ctx.(interface{ UserValue(string) interface{} }); ok {
		startedAt, ok := userValues.UserValue(StartedAtUserValue).(time.Time)
		return startedAt, ok
	}
	return time.Time{}, false
}

// detachedContext keeps the values of a request's context but not its
// cancellation, so a client disconnecting after the response has been written
// does not abort recording.
type detachedContext struct {
	parent context.Context
}

func detach(ctx context.Context) context.Context {
	return detachedContext{parent: ctx}
}

func (detachedContext) Deadline() (time.Time, bool)         { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}               { return nil }
func (detachedContext) Err() error                          { return nil }
func (c detachedContext) Value(key interface{}) interface{} { return c.parent.Value(key) }
