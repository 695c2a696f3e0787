package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned for work submitted after Shutdown.
	ErrClosed = errors.New("pool is shut down")

	// ErrAborted resolves jobs that shutdown cancelled, dropped from the
	// queue, or force-aborted.
	ErrAborted = errors.New("job aborted by shutdown")

	// ErrShutdownTimeout reports that running jobs outlived the grace period.
	ErrShutdownTimeout = errors.New("jobs did not finish within the shutdown grace period")
)

// JobState is the lifecycle state of a submitted job.
type JobState int

const (
	Queued JobState = iota + 1
	Running
	Completed
	Aborted
)

func (s JobState) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// LaneState is the state of one background lane.
type LaneState int

const (
	LaneIdle LaneState = iota + 1
	LaneRunning
	LaneAborted
)

func (s LaneState) String() string {
	switch s {
	case LaneIdle:
		return "idle"
	case LaneRunning:
		return "running"
	case LaneAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Job is a unit of background work.
type Job struct {
	// Work runs on a lane. ctx is cancelled by shutdown: immediately for
	// background jobs, after the grace period for important ones.
	Work func(ctx context.Context) error

	// Important jobs are given the shutdown grace period to finish.
	Important bool
}

type task struct {
	id        string
	job       Job
	exclusive bool
	state     JobState // Guarded by Pool.mu
	resolve   func(error)
}

type lane struct {
	id       int
	state    LaneState
	elevated bool
	current  *task
	assigned *task // Exclusive work handed to this lane, not yet started
}

// LaneInfo is a point-in-time view of one lane.
type LaneInfo struct {
	ID        int
	State     LaneState
	Elevated  bool
	JobID     string
	Important bool
}

// Options configures a Pool.
type Options struct {
	// Lanes is the number of background lanes. Defaults to runtime.NumCPU().
	Lanes int

	// Logger receives job lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Pool is a fixed set of background lanes with a shared FIFO queue.
type Pool struct {
	mu    sync.Mutex
	work  *sync.Cond // Lanes wait here for queued or assigned tasks
	idle  *sync.Cond // RunExclusive waits here for an idle lane
	queue *jobQueue
	lanes []*lane

	closed bool

	importantCtx     context.Context
	cancelImportant  context.CancelFunc
	backgroundCtx    context.Context
	cancelBackground context.CancelFunc

	inflight sync.WaitGroup // Running important tasks

	logger *slog.Logger
}

// New starts a pool with opts.Lanes lanes.
func New(opts Options) *Pool {
	n := opts.Lanes
	if n <= 0 {
		n = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		queue:  newJobQueue(),
		lanes:  make([]*lane, n),
		logger: logger.With("component", "pool"),
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	// Background contexts derive from the important one so that cancelling
	// important work cancels everything.
	p.importantCtx, p.cancelImportant = context.WithCancel(context.Background())
	p.backgroundCtx, p.cancelBackground = context.WithCancel(p.importantCtx)

	for i := range p.lanes {
		l := &lane{id: i + 1, state: LaneIdle}
		p.lanes[i] = l
		go p.runLane(l)
	}

	p.logger.Debug("pool started", "lanes", n)
	return p
}

// Size returns the number of lanes. It never changes after New.
func (p *Pool) Size() int {
	return len(p.lanes)
}

// Enqueue appends job to the shared queue. Any idle lane picks it up.
func (p *Pool) Enqueue(job Job) *Future[struct{}] {
	f := newFuture[struct{}]()
	t := p.newTask(job, func(err error) { f.resolve(struct{}{}, err) })
	p.submit(t)
	return f
}

// Go runs fn on the pool and returns a typed Future of its result.
func Go[T any](p *Pool, important bool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	var val T
	t := p.newTask(Job{
		Important: important,
		Work: func(ctx context.Context) error {
			v, err := fn(ctx)
			val = v
			return err
		},
	}, func(err error) {
		if err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		f.resolve(val, nil)
	})
	p.submit(t)
	return f
}

// RunExclusive claims an idle lane, elevates it, and runs work on it.
// Blocks until a lane is idle, ctx is done, or the pool shuts down.
// Two exclusive jobs never share a lane. Calling RunExclusive from inside
// a job while every other lane is busy blocks until ctx is done.
func (p *Pool) RunExclusive(ctx context.Context, work func(ctx context.Context) error, important bool) (*Future[struct{}], error) {
	if work == nil {
		return nil, errors.New("pool: nil work")
	}
	f := newFuture[struct{}]()
	t := p.newTask(Job{Work: work, Important: important}, func(err error) { f.resolve(struct{}{}, err) })
	t.exclusive = true

	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.idle.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for {
		if p.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l := p.idleLane(); l != nil {
			l.assigned = t
			p.work.Broadcast()
			return f, nil
		}
		p.idle.Wait()
	}
}

// idleLane returns an idle, unclaimed lane. Caller holds p.mu.
func (p *Pool) idleLane() *lane {
	for _, l := range p.lanes {
		if l.state == LaneIdle && l.assigned == nil {
			return l
		}
	}
	return nil
}

// Snapshot reports the state of every lane.
func (p *Pool) Snapshot() []LaneInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]LaneInfo, len(p.lanes))
	for i, l := range p.lanes {
		info := LaneInfo{ID: l.id, State: l.state, Elevated: l.elevated}
		if l.current != nil {
			info.JobID = l.current.id
			info.Important = l.current.job.Important
		}
		out[i] = info
	}
	return out
}

// Shutdown stops the pool.
//
// New submissions are rejected and queued jobs resolve with ErrAborted.
// Running background jobs are aborted at once: their context is cancelled,
// their lane goes to LaneAborted and their future resolves with ErrAborted
// without waiting for the work to return. Running important jobs get grace
// (wall clock) to finish; after that their context is cancelled too, they
// are marked Aborted, and ErrShutdownTimeout is returned. Shutdown never
// blocks past grace, and returns at once when no important job is running.
func (p *Pool) Shutdown(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	pending := p.queue.drain()
	for _, l := range p.lanes {
		if l.assigned != nil {
			pending = append(pending, l.assigned)
			l.assigned = nil
		}
	}
	for _, t := range pending {
		t.state = Aborted
	}

	var background []*task
	important := 0
	for _, l := range p.lanes {
		switch {
		case l.current == nil:
			l.state = LaneAborted
		case l.current.job.Important:
			important++
		case l.current.state == Running:
			l.current.state = Aborted
			l.state = LaneAborted
			background = append(background, l.current)
		}
	}
	p.work.Broadcast()
	p.idle.Broadcast()
	p.mu.Unlock()

	p.cancelBackground()
	for _, t := range pending {
		p.finish(t, ErrAborted)
	}
	for _, t := range background {
		p.finish(t, ErrAborted)
	}

	if important > 0 {
		deadline := time.NewTimer(grace)
		defer deadline.Stop()
		if !waitTimeout(&p.inflight, deadline.C) {
			p.cancelImportant()
			aborted := p.forceAbort()
			p.logger.Warn("shutdown grace period expired, aborting running jobs",
				"grace", grace, "aborted", aborted)
			return ErrShutdownTimeout
		}
	}

	p.cancelImportant()
	p.logger.Debug("pool shut down", "dropped", len(pending), "aborted", len(background))
	return nil
}

// waitTimeout waits for wg until timeout fires. Returns false on timeout.
func waitTimeout(wg *sync.WaitGroup, timeout <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-timeout:
		return false
	}
}

// forceAbort marks every running task Aborted and resolves it.
func (p *Pool) forceAbort() int {
	p.mu.Lock()
	var victims []*task
	for _, l := range p.lanes {
		if l.current != nil && l.current.state == Running {
			l.current.state = Aborted
			victims = append(victims, l.current)
		}
		l.state = LaneAborted
	}
	p.mu.Unlock()

	for _, t := range victims {
		p.finish(t, ErrAborted)
	}
	return len(victims)
}

func (p *Pool) newTask(job Job, resolve func(error)) *task {
	return &task{
		id:      uuid.NewString(),
		job:     job,
		state:   Queued,
		resolve: resolve,
	}
}

func (p *Pool) submit(t *task) {
	if t.job.Work == nil {
		t.state = Aborted
		t.resolve(errors.New("pool: nil work"))
		return
	}

	p.mu.Lock()
	if p.closed {
		t.state = Aborted
		p.mu.Unlock()
		jobsTotal.WithLabelValues("rejected").Inc()
		t.resolve(ErrClosed)
		return
	}
	p.queue.push(t)
	p.work.Signal()
	p.mu.Unlock()
}

func (p *Pool) runLane(l *lane) {
	for {
		p.mu.Lock()
		var t *task
		for t == nil {
			if p.closed {
				l.state = LaneAborted
				p.mu.Unlock()
				return
			}
			if l.assigned != nil {
				t, l.assigned = l.assigned, nil
				break
			}
			if next, ok := p.queue.pop(); ok {
				t = next
				break
			}
			p.work.Wait()
		}
		// Chain the wakeup: the signal that woke this lane may have been
		// meant for queued work it did not take.
		if p.queue.len() > 0 {
			p.work.Signal()
		}

		ctx := p.backgroundCtx
		if t.job.Important {
			ctx = p.importantCtx
			p.inflight.Add(1)
		}
		t.state = Running
		l.state = LaneRunning
		l.current = t
		l.elevated = t.exclusive
		p.mu.Unlock()

		busyLanes.Inc()
		p.logger.Debug("job started", "lane", l.id, "job", t.id,
			"important", t.job.Important, "exclusive", t.exclusive)

		err := p.execute(ctx, t)

		busyLanes.Dec()

		p.mu.Lock()
		if t.job.Important {
			p.inflight.Done()
		}
		// Force-aborted tasks were already resolved by Shutdown.
		forced := t.state == Aborted
		switch {
		case forced:
		case err != nil && p.closed && ctx.Err() != nil:
			t.state = Aborted
			err = fmt.Errorf("%w: %w", ErrAborted, err)
		default:
			t.state = Completed
		}
		l.current = nil
		l.elevated = false
		if p.closed {
			l.state = LaneAborted
		} else {
			l.state = LaneIdle
			p.idle.Broadcast()
		}
		p.mu.Unlock()

		if !forced {
			p.finish(t, err)
		}
	}
}

// execute runs the task's work, recovering panics into errors.
func (p *Pool) execute(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", t.id, r)
			p.logger.Error("job panicked", "job", t.id, "panic", r)
		}
	}()
	return t.job.Work(ctx)
}

// finish resolves t's future and records the outcome.
func (p *Pool) finish(t *task, err error) {
	result := "completed"
	switch {
	case errors.Is(err, ErrAborted):
		result = "aborted"
	case err != nil:
		result = "failed"
	}
	jobsTotal.WithLabelValues(result).Inc()
	p.logger.Debug("job finished", "job", t.id, "result", result)
	t.resolve(err)
}
