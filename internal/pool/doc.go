// Package pool runs persistence work on a fixed set of background lanes.
//
// A Pool owns N lanes (N defaults to runtime.NumCPU()) fed by one shared
// FIFO queue. Work is submitted either through the queue (Enqueue, Go) or
// pinned to a claimed idle lane (RunExclusive). Every submission returns
// a Future that resolves when the job completes or is aborted.
//
// Jobs are "important" (shutdown waits for them, within a grace period)
// or background (aborted as soon as shutdown starts). Each job receives a
// context that shutdown cancels. Background jobs resolve with ErrAborted
// immediately; an important job that ignores its context is marked Aborted
// when the grace period ends. In both cases the eventual result of the
// work is discarded. A forced abort is a
// crash-consistency boundary, not a clean cancel: a write in progress may
// be torn.
//
// Thread-safety model:
//   - Enqueue, Go, RunExclusive, Snapshot: safe from any goroutine,
//     including from inside a running job
//   - Shutdown: safe to call more than once; later calls are no-ops
package pool
