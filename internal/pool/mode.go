package pool

import (
	"context"
	"fmt"
)

// Mode selects where persistence work runs.
type Mode int

const (
	// Async runs work on a pool lane and returns immediately.
	Async Mode = iota
	// Sync runs work inline on the caller's goroutine and context.
	Sync
)

func (m Mode) String() string {
	switch m {
	case Async:
		return "async"
	case Sync:
		return "sync"
	default:
		return "unknown"
	}
}

// ParseMode parses "sync" or "async".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "async", "":
		return Async, nil
	case "sync":
		return Sync, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want sync or async)", s)
	}
}

// Run executes fn according to mode. In Sync mode fn sees ctx and the
// returned Future is already resolved. In Async mode fn runs on p with
// the lane's context.
func Run[T any](ctx context.Context, p *Pool, mode Mode, important bool, fn func(ctx context.Context) (T, error)) *Future[T] {
	if mode == Sync {
		return Resolved(fn(ctx))
	}
	return Go(p, important, fn)
}

// Dispatch is Run for work without a result.
func Dispatch(ctx context.Context, p *Pool, mode Mode, important bool, fn func(ctx context.Context) error) *Future[struct{}] {
	return Run(ctx, p, mode, important, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
