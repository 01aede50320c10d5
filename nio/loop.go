package nio

import (
	"container/heap"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Standard Loop errors.
var (
	ErrLoopAlreadyRunning = errors.New("nio: loop is already running")
	ErrLoopStopped        = errors.New("nio: loop has stopped")
	ErrReentrantRun       = errors.New("nio: cannot call Run from within the loop")
)

// Loop is a single-threaded I/O reactor: one goroutine runs Run, polling
// for readiness on registered file descriptors, firing expired timers, and
// draining posted tasks, in that order each tick. Grounded on
// eventloop/loop.go's tick/poll structure, simplified to the teacher's
// "I/O mode" (channel wakeup plus poller) without its separate
// task-only fast path, since this package optimizes for I/O throughput
// rather than microsecond task latency.
type Loop struct {
	state *fastState

	poller poller

	taskMu sync.Mutex
	tasks  []func()

	timerMu sync.Mutex
	timers  timerHeap

	wake chan struct{}

	done chan struct{}

	userFDCount atomic.Int32
}

// New creates a Loop and initializes its platform poller.
func New() (*Loop, error) {
	l := &Loop{
		state:  newFastState(StateIdle),
		poller: newPoller(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if err := l.poller.Init(); err != nil {
		return nil, err
	}
	return l, nil
}

// PostTask schedules fn to run on the loop goroutine at the next
// opportunity, safe to call from any goroutine.
func (l *Loop) PostTask(fn func()) error {
	if l.state.Load() == StateStopped {
		return ErrLoopStopped
	}
	l.taskMu.Lock()
	l.tasks = append(l.tasks, fn)
	l.taskMu.Unlock()
	l.wakeup()
	return nil
}

// PostDelayedTask schedules fn to run on the loop goroutine after delay
// elapses, returning a handle that can cancel it before it fires.
func (l *Loop) PostDelayedTask(delay time.Duration, fn func()) TimerHandle {
	e := &timerEntry{when: time.Now().Add(delay), fn: fn}
	l.timerMu.Lock()
	heap.Push(&l.timers, e)
	l.timerMu.Unlock()
	l.wakeup()
	return TimerHandle{entry: e}
}

// RegisterFD watches fd for the given readiness events, invoking cb on the
// loop goroutine whenever PollIO observes them.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	err := l.poller.RegisterFD(fd, events, cb)
	if err == nil {
		l.userFDCount.Add(1)
		l.wakeup()
	}
	return err
}

// ModifyFD updates the events watched for an already-registered fd.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}

// UnregisterFD stops watching fd.
func (l *Loop) UnregisterFD(fd int) error {
	err := l.poller.UnregisterFD(fd)
	if err == nil {
		l.userFDCount.Add(-1)
	}
	return err
}

func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run runs the loop until Stop/Shutdown is called or ctx is cancelled,
// blocking the calling goroutine.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.TryTransition(StateIdle, StateRunning) {
		return ErrLoopAlreadyRunning
	}
	defer close(l.done)
	defer l.poller.Close()

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wakeup()
		case <-stopWatch:
		}
	}()
	defer close(stopWatch)

	for {
		select {
		case <-ctx.Done():
			l.drainTasks()
			l.state.Store(StateStopped)
			return ctx.Err()
		default:
		}
		if l.state.Load() == StateStopping {
			l.drainTasks()
			l.state.Store(StateStopped)
			return nil
		}
		l.tick()
	}
}

// RunOnce runs a single tick without blocking the poll beyond timeoutMs,
// useful for embedding the loop inside another loop or for tests.
func (l *Loop) RunOnce(timeoutMs int) {
	_, _ = l.poller.PollIO(timeoutMs)
	l.runTimers()
	l.drainTasks()
}

func (l *Loop) tick() {
	timeout := l.calculateTimeout()
	if _, err := l.poller.PollIO(timeout); err != nil {
		log.Printf("nio: poll error: %v", err)
	}

	l.runTimers()
	l.drainTasks()
}

func (l *Loop) drainTasks() {
	l.taskMu.Lock()
	batch := l.tasks
	l.tasks = nil
	l.taskMu.Unlock()

	for _, fn := range batch {
		l.safeExecute(fn)
	}

	select {
	case <-l.wake:
	default:
	}
}

func (l *Loop) runTimers() {
	now := time.Now()
	l.timerMu.Lock()
	ready := popReadyTimers(&l.timers, now)
	l.timerMu.Unlock()

	for _, fn := range ready {
		l.safeExecute(fn)
	}
}

func (l *Loop) calculateTimeout() int {
	const maxWaitMs = 1000

	l.timerMu.Lock()
	deadline, ok := nextDeadline(l.timers)
	l.timerMu.Unlock()

	wait := maxWaitMs
	if ok {
		d := time.Until(deadline)
		if d <= 0 {
			return 0
		}
		if ms := int(d.Milliseconds()); ms < wait {
			wait = ms
		}
	}

	if l.userFDCount.Load() == 0 {
		// No raw fds registered: block on the wake channel instead of the
		// poller so PostTask/PostDelayedTask latency stays low.
		select {
		case <-l.wake:
			return 0
		case <-time.After(time.Duration(wait) * time.Millisecond):
			return 0
		}
	}
	return wait
}

func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("nio: task panicked: %v", r)
		}
	}()
	fn()
}

// Stop requests the loop to finish its current tick, drain pending tasks,
// and exit. It does not block; use Shutdown to wait for completion.
func (l *Loop) Stop() {
	for {
		cur := l.state.Load()
		if cur == StateStopping || cur == StateStopped {
			return
		}
		if l.state.TryTransition(cur, StateStopping) {
			l.wakeup()
			return
		}
	}
}

// Shutdown requests Stop and blocks until Run returns or ctx expires.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.Stop()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the loop's current run state.
func (l *Loop) State() LoopState { return l.state.Load() }
