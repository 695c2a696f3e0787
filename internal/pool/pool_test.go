package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, lanes int) *Pool {
	t.Helper()
	p := New(Options{Lanes: lanes})
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })
	return p
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.push(&task{id: id})
	}
	require.Equal(t, 3, q.len())

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", first.id)

	rest := q.drain()
	require.Len(t, rest, 2)
	assert.Equal(t, "b", rest[0].id)
	assert.Equal(t, "c", rest[1].id)

	_, ok = q.pop()
	assert.False(t, ok, "pop from empty queue should return false")
}

func TestPool_DefaultsToCPUCount(t *testing.T) {
	p := newTestPool(t, 0)
	assert.Greater(t, p.Size(), 0)
	assert.Len(t, p.Snapshot(), p.Size())
}

func TestPool_SingleLaneRunsInSubmissionOrder(t *testing.T) {
	p := newTestPool(t, 1)

	var (
		mu    sync.Mutex
		order []int
	)
	var futures []*Future[struct{}]
	for i := range 10 {
		futures = append(futures, p.Enqueue(Job{Work: func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}}))
	}
	for _, f := range futures {
		require.NoError(t, f.Wait())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestPool_NeverExceedsLaneCount(t *testing.T) {
	const lanes = 3
	p := newTestPool(t, lanes)

	var running, peak atomic.Int32
	var futures []*Future[struct{}]
	for range 30 {
		futures = append(futures, p.Enqueue(Job{Work: func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		}}))
	}
	for _, f := range futures {
		require.NoError(t, f.Wait())
	}
	assert.LessOrEqual(t, peak.Load(), int32(lanes))
}

func TestGo_ReturnsValue(t *testing.T) {
	p := newTestPool(t, 2)

	f := Go(p, false, func(context.Context) (string, error) { return "done", nil })
	got, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	failing := Go(p, false, func(context.Context) (int, error) { return 7, errors.New("boom") })
	v, err := failing.Await(context.Background())
	require.EqualError(t, err, "boom")
	assert.Zero(t, v, "failed jobs resolve to the zero value")
}

func TestPool_RecoversPanics(t *testing.T) {
	p := newTestPool(t, 1)

	err := p.Enqueue(Job{Work: func(context.Context) error { panic("kaboom") }}).Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The lane survives.
	require.NoError(t, p.Enqueue(Job{Work: func(context.Context) error { return nil }}).Wait())
}

func TestPool_NilWork(t *testing.T) {
	p := newTestPool(t, 1)
	assert.Error(t, p.Enqueue(Job{}).Wait())

	_, err := p.RunExclusive(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestRunExclusive_ElevatesDistinctLanes(t *testing.T) {
	p := newTestPool(t, 2)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	work := func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}

	f1, err := p.RunExclusive(context.Background(), work, true)
	require.NoError(t, err)
	f2, err := p.RunExclusive(context.Background(), work, false)
	require.NoError(t, err)
	<-started
	<-started

	snap := p.Snapshot()
	require.Len(t, snap, 2)
	for _, info := range snap {
		assert.Equal(t, LaneRunning, info.State)
		assert.True(t, info.Elevated)
		assert.NotEmpty(t, info.JobID)
	}
	assert.NotEqual(t, snap[0].JobID, snap[1].JobID)

	close(release)
	require.NoError(t, f1.Wait())
	require.NoError(t, f2.Wait())

	for _, info := range p.Snapshot() {
		assert.False(t, info.Elevated, "elevation ends with the job")
	}
}

func TestRunExclusive_BlocksUntilLaneIsIdle(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	busy := p.Enqueue(Job{Work: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	claimed := make(chan *Future[struct{}])
	go func() {
		f, err := p.RunExclusive(context.Background(), func(context.Context) error { return nil }, false)
		if err == nil {
			claimed <- f
		}
	}()

	select {
	case <-claimed:
		t.Fatal("RunExclusive claimed a busy lane")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, busy.Wait())

	select {
	case f := <-claimed:
		require.NoError(t, f.Wait())
	case <-time.After(time.Second):
		t.Fatal("RunExclusive never claimed the freed lane")
	}
}

func TestRunExclusive_ContextCancelled(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	p.Enqueue(Job{Work: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.RunExclusive(ctx, func(context.Context) error { return nil }, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdown_DropsQueuedAndRejectsNew(t *testing.T) {
	p := New(Options{Lanes: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	running := p.Enqueue(Job{Important: true, Work: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started
	queued := p.Enqueue(Job{Important: true, Work: func(context.Context) error { return nil }})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, p.Shutdown(time.Second))

	require.NoError(t, running.Wait(), "important jobs finish within the grace period")
	assert.ErrorIs(t, queued.Wait(), ErrAborted)

	assert.ErrorIs(t, p.Enqueue(Job{Work: func(context.Context) error { return nil }}).Wait(), ErrClosed)
	_, err := p.RunExclusive(context.Background(), func(context.Context) error { return nil }, false)
	assert.ErrorIs(t, err, ErrClosed)

	assert.NoError(t, p.Shutdown(time.Second), "second shutdown is a no-op")
	for _, info := range p.Snapshot() {
		assert.Equal(t, LaneAborted, info.State)
	}
}

func TestShutdown_CancelsBackgroundJobs(t *testing.T) {
	p := New(Options{Lanes: 1})

	started := make(chan struct{})
	f := p.Enqueue(Job{Work: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	<-started

	require.NoError(t, p.Shutdown(time.Second))
	assert.ErrorIs(t, f.Wait(), ErrAborted)
}

func TestShutdown_AbortsBackgroundJobsWithoutWaiting(t *testing.T) {
	p := New(Options{Lanes: 1})

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	f := p.Enqueue(Job{Work: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	begin := time.Now()
	require.NoError(t, p.Shutdown(2*time.Second))
	assert.Less(t, time.Since(begin), 500*time.Millisecond)

	assert.ErrorIs(t, f.Wait(), ErrAborted)
	lanes := p.Snapshot()
	require.Len(t, lanes, 1)
	assert.Equal(t, LaneAborted, lanes[0].State)
}

func TestShutdown_IdlePoolZeroGrace(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := New(Options{Lanes: 4})
		require.NoError(t, p.Shutdown(0))
		for _, info := range p.Snapshot() {
			assert.Equal(t, LaneAborted, info.State)
		}
	}
}

func TestShutdown_GracePeriodExpires(t *testing.T) {
	p := New(Options{Lanes: 2})

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	stuck := p.Enqueue(Job{Important: true, Work: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	begin := time.Now()
	err := p.Shutdown(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(begin), time.Second, "shutdown does not wait past the grace period")

	assert.ErrorIs(t, stuck.Wait(), ErrAborted)
	for _, info := range p.Snapshot() {
		assert.Equal(t, LaneAborted, info.State)
	}
}

func TestRecover(t *testing.T) {
	fallback := func(err error) string { return "fallback: " + err.Error() }

	v, err := Recover(Resolved("ok", nil), fallback).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	v, err = Recover(Resolved("", errors.New("boom")), fallback).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback: boom", v)

	p := New(Options{Lanes: 1})
	require.NoError(t, p.Shutdown(0))
	v, err = Recover(Go(p, false, func(context.Context) (string, error) { return "never", nil }), fallback).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback: "+ErrClosed.Error(), v)

	p = newTestPool(t, 1)
	release := make(chan struct{})
	pending := Go(p, false, func(context.Context) (string, error) {
		<-release
		return "", errors.New("late")
	})
	wrapped := Recover(pending, fallback)
	close(release)
	v, err = wrapped.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback: late", v)
}

type ctxKey struct{}

func TestRun_SyncUsesCallerContext(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")

	f := Run(ctx, p, Sync, false, func(ctx context.Context) (any, error) {
		return ctx.Value(ctxKey{}), nil
	})
	select {
	case <-f.Done():
	default:
		t.Fatal("sync futures are resolved on return")
	}
	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "caller", v)

	async := Run(ctx, p, Async, false, func(ctx context.Context) (any, error) {
		return ctx.Value(ctxKey{}), nil
	})
	v, err = async.Await(ctx)
	require.NoError(t, err)
	assert.Nil(t, v, "lane contexts do not inherit caller values")
}

func TestDispatch(t *testing.T) {
	p := newTestPool(t, 1)
	called := false
	require.NoError(t, Dispatch(context.Background(), p, Sync, true, func(context.Context) error {
		called = true
		return nil
	}).Wait())
	assert.True(t, called)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("sync")
	require.NoError(t, err)
	assert.Equal(t, Sync, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Async, m)

	_, err = ParseMode("later")
	assert.Error(t, err)
}

func TestFuture_AwaitRespectsContext(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.True(t, f.resolve(1, nil))
	assert.False(t, f.resolve(2, nil), "first resolution wins")
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
