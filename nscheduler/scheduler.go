// Package nscheduler implements NLib's priority worker-pool scheduler and
// runnable abstractions. The priority queue follows the teacher's chunked
// ingress idiom (eventloop/ingress.go) in spirit — batch under a single
// mutex rather than reach for a lock-free structure — composed with the
// standard library's container/heap for priority ordering. Workers execute
// scheduled work inline, never spawning a nested goroutine per task, which
// is the fix for the original NAsyncTaskScheduler::ExecuteTask
// serialization bug (see DESIGN.md).
package nscheduler

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/nlib/nthread"
	"github.com/joeycumines/nlib/ntask"
)

// job is a single unit of scheduled work, ordered by priority then by
// submission sequence (FIFO within a priority tier).
type job struct {
	run      func()
	priority ntask.Priority
	seq      uint64
}

type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler is a fixed-size worker pool that executes jobs in priority
// order, FIFO within a priority tier.
type Scheduler struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue        jobHeap
	nextSeq      uint64
	stopping     bool
	stopped      bool
	intakeClosed bool

	active  atomic.Int32
	pending atomic.Int32

	wg      sync.WaitGroup
	limiter *catrate.Limiter
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithRateLimiter attaches a catrate.Limiter that gates admission: if the
// limiter refuses a submission, ScheduleTask blocks until the limiter's
// next-allowed time before enqueueing.
func WithRateLimiter(l *catrate.Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// New creates a Scheduler with workers goroutines pulled from the queue.
func New(workers int, opts ...Option) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
	return s
}

var (
	defaultScheduler    *Scheduler
	defaultSchedulerOnce sync.Once
	backgroundScheduler     *Scheduler
	backgroundSchedulerOnce sync.Once
)

// DefaultScheduler returns the process-wide default scheduler, sized to
// the number of logical CPUs, created lazily on first use.
func DefaultScheduler() *Scheduler {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = New(nthread.HardwareConcurrency())
	})
	return defaultScheduler
}

// BackgroundScheduler returns a small process-wide scheduler intended for
// low-priority background work, created lazily on first use.
func BackgroundScheduler() *Scheduler {
	backgroundSchedulerOnce.Do(func() {
		backgroundScheduler = New(2)
	})
	return backgroundScheduler
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopping {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.stopping {
			s.mu.Unlock()
			return
		}
		j := heap.Pop(&s.queue).(*job)
		s.active.Add(1)
		s.pending.Add(-1)
		s.mu.Unlock()

		j.run()
		s.active.Add(-1)
	}
}

// submit enqueues run at the given priority.
func (s *Scheduler) submit(run func(), priority ntask.Priority) {
	s.mu.Lock()
	if s.stopped || s.intakeClosed {
		s.mu.Unlock()
		return
	}
	s.nextSeq++
	heap.Push(&s.queue, &job{run: run, priority: priority, seq: s.nextSeq})
	s.pending.Add(1)
	s.mu.Unlock()
	s.cond.Signal()
}

// ScheduleTask enqueues t for execution at t.Priority. t.Run executes
// inline on whichever worker goroutine dequeues it.
func ScheduleTask[T any](s *Scheduler, t *ntask.Task[T]) {
	if s.limiter != nil {
		if next, ok := s.limiter.Allow(schedulerRateCategory); !ok {
			time.Sleep(time.Until(next))
		}
	}
	s.submit(t.Run, t.Priority)
}

type rateCategory struct{}

var schedulerRateCategory = rateCategory{}

// Submit enqueues an arbitrary function at the given priority, without the
// Task/Future bookkeeping. Useful for fire-and-forget work.
func (s *Scheduler) Submit(fn func(), priority ntask.Priority) {
	s.submit(fn, priority)
}

// ActiveCount returns the number of jobs currently executing.
func (s *Scheduler) ActiveCount() int { return int(s.active.Load()) }

// PendingCount returns the number of jobs queued but not yet executing.
func (s *Scheduler) PendingCount() int { return int(s.pending.Load()) }

// IsRunning reports whether the scheduler is accepting new work.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && !s.stopping && !s.intakeClosed
}

// Stop halts the scheduler immediately: queued-but-not-started jobs never
// run. It returns once all workers have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.stopped = true
	s.queue = nil
	s.pending.Store(0)
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
}

// StopGracefully stops accepting new work immediately, then waits up to
// timeout for all queued and active jobs to finish before stopping the
// scheduler. Returns true if drained within timeout.
func (s *Scheduler) StopGracefully(timeout time.Duration) bool {
	s.mu.Lock()
	s.intakeClosed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	drained := s.WaitForAllTasks(ctx)

	s.mu.Lock()
	s.stopping = true
	s.stopped = true
	if !drained {
		s.queue = nil
		s.pending.Store(0)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
	return drained
}

// WaitForAllTasks blocks until both the pending queue and active count
// reach zero, or ctx is done.
func (s *Scheduler) WaitForAllTasks(ctx context.Context) bool {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if s.PendingCount() == 0 && s.ActiveCount() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
