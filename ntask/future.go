package ntask

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/nlib/nerrors"
)

// State is the terminal-state lattice shared by Future and Task:
// Pending moves to exactly one of Completed, Cancelled, or Faulted, and
// never moves again.
type State int32

const (
	Pending State = iota
	Completed
	Cancelled
	Faulted
)

// String renders the state's name.
func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// Future is a read-only handle to a value that becomes available exactly
// once, grounded on the teacher's ChainedPromise (eventloop/promise.go)
// but generalized so continuations run on whichever goroutine performs the
// terminal transition, rather than being serialized through one loop
// thread.
type Future[T any] struct {
	mu    sync.Mutex
	state atomic.Int32
	value T
	err   error
	done  chan struct{}

	onCompleted []func(T)
	onFaulted   []func(error)
	onCancelled []func()
}

// NewFuture creates a Future in the Pending state, paired with the Promise
// used to settle it.
func NewFuture[T any]() (*Future[T], *Promise[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, &Promise[T]{f: f}
}

// State returns the future's current state.
func (f *Future[T]) State() State { return State(f.state.Load()) }

func (f *Future[T]) IsPending() bool   { return f.State() == Pending }
func (f *Future[T]) IsCompleted() bool { return f.State() == Completed }
func (f *Future[T]) IsCancelled() bool { return f.State() == Cancelled }
func (f *Future[T]) IsFaulted() bool   { return f.State() == Faulted }
func (f *Future[T]) IsReady() bool     { return f.State() != Pending }

// Done returns a channel closed once the future reaches a terminal state.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future settles and returns its value and error.
// err is ntask.ErrCancelled if the future was cancelled.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.result()
}

// TryGet returns the future's value without blocking, and whether it had
// already settled.
func (f *Future[T]) TryGet() (T, error, bool) {
	select {
	case <-f.done:
		v, err := f.result()
		return v, err, true
	default:
		var zero T
		return zero, nil, false
	}
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func (f *Future[T]) settle(state State, value T, err error) {
	f.mu.Lock()
	if f.state.Load() != int32(Pending) {
		f.mu.Unlock()
		return
	}
	f.value = value
	f.err = err
	f.state.Store(int32(state))
	completed := f.onCompleted
	faulted := f.onFaulted
	cancelled := f.onCancelled
	f.onCompleted, f.onFaulted, f.onCancelled = nil, nil, nil
	close(f.done)
	f.mu.Unlock()

	switch state {
	case Completed:
		for _, cb := range completed {
			cb(value)
		}
	case Faulted:
		for _, cb := range faulted {
			cb(err)
		}
	case Cancelled:
		for _, cb := range cancelled {
			cb()
		}
	}
}

// OnCompleted registers a callback invoked with the value once the future
// completes successfully. If already completed, it runs immediately.
func (f *Future[T]) OnCompleted(cb func(T)) {
	f.mu.Lock()
	if f.state.Load() == int32(Completed) {
		v := f.value
		f.mu.Unlock()
		cb(v)
		return
	}
	if f.state.Load() != int32(Pending) {
		f.mu.Unlock()
		return
	}
	f.onCompleted = append(f.onCompleted, cb)
	f.mu.Unlock()
}

// OnFaulted registers a callback invoked with the error once the future
// faults. If already faulted, it runs immediately.
func (f *Future[T]) OnFaulted(cb func(error)) {
	f.mu.Lock()
	if f.state.Load() == int32(Faulted) {
		err := f.err
		f.mu.Unlock()
		cb(err)
		return
	}
	if f.state.Load() != int32(Pending) {
		f.mu.Unlock()
		return
	}
	f.onFaulted = append(f.onFaulted, cb)
	f.mu.Unlock()
}

// OnCancelled registers a callback invoked once the future is cancelled.
// If already cancelled, it runs immediately.
func (f *Future[T]) OnCancelled(cb func()) {
	f.mu.Lock()
	if f.state.Load() == int32(Cancelled) {
		f.mu.Unlock()
		cb()
		return
	}
	if f.state.Load() != int32(Pending) {
		f.mu.Unlock()
		return
	}
	f.onCancelled = append(f.onCancelled, cb)
	f.mu.Unlock()
}

// Then chains a continuation that runs once f settles successfully,
// returning a new Future for the transformed value. If f faults or is
// cancelled, the returned future faults/cancels identically without
// invoking fn.
func Then[T, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	rf, rp := NewFuture[R]()
	f.OnCompleted(func(v T) {
		rv, err := fn(v)
		if err != nil {
			rp.SetException(err)
			return
		}
		rp.SetValue(rv)
	})
	f.OnFaulted(func(err error) { rp.SetException(err) })
	f.OnCancelled(func() { rp.SetCancelled() })
	return rf
}

// FromValue returns an already-completed future holding val.
func FromValue[T any](val T) *Future[T] {
	f, p := NewFuture[T]()
	p.SetValue(val)
	return f
}

// FromError returns an already-faulted future.
func FromError[T any](err error) *Future[T] {
	f, p := NewFuture[T]()
	p.SetException(err)
	return f
}

// Promise is the write side of a Future, grounded on the original
// library's CPromise<T>.
type Promise[T any] struct {
	f       *Future[T]
	mu      sync.Mutex
	isSet   bool
}

// Future returns the associated read-only Future.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// IsSet reports whether the promise has already been settled.
func (p *Promise[T]) IsSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isSet
}

func (p *Promise[T]) markSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isSet {
		return false
	}
	p.isSet = true
	return true
}

// SetValue settles the future successfully with val. Subsequent calls to
// any Set* method are no-ops.
func (p *Promise[T]) SetValue(val T) {
	if !p.markSet() {
		return
	}
	p.f.settle(Completed, val, nil)
}

// SetException settles the future as faulted with err.
func (p *Promise[T]) SetException(err error) {
	if !p.markSet() {
		return
	}
	if err == nil {
		err = &nerrors.Faulted{Message: "unspecified fault"}
	}
	var zero T
	p.f.settle(Faulted, zero, err)
}

// SetCancelled settles the future as cancelled.
func (p *Promise[T]) SetCancelled() {
	if !p.markSet() {
		return
	}
	var zero T
	p.f.settle(Cancelled, zero, ErrCancelled)
}
