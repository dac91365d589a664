package guardrails

import (
	"context"
	"time"
)

// Timeouts bounds each phase of a sweep, zero means no bound
type Timeouts struct {
	// Period bounds one period including reconciliation
	Period time.Duration

	// Record bounds one record ingest or review routing
	Record time.Duration

	// DB bounds short bookkeeping statements
	DB time.Duration
}

// ForPeriod derives the period scoped context
func ForPeriod(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Period)
}

// ForRecord derives a per record context
func ForRecord(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Record)
}

// ForDB derives a context for bookkeeping statements
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.DB)
}

// Remaining returns the time left until ctx's deadline, zero when none
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// the child never outlives the parent's deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
