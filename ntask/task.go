package ntask

import (
	"sync/atomic"

	"github.com/joeycumines/nlib/nerrors"
)

// Priority orders tasks within nscheduler's queue; higher values run
// first within the same submission order (FIFO within a priority tier).
type Priority uint32

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var nextTaskID atomic.Uint64

// Task pairs a cancellable unit of work with the Future that observes its
// outcome. Scheduling a Task onto a worker (see nscheduler) runs its Fn
// directly on the worker goroutine — no nested spawn-and-join — which is
// the fix for the original NAsyncTaskScheduler::ExecuteTask serialization
// bug described in DESIGN.md.
type Task[T any] struct {
	id       uint64
	Name     string
	Priority Priority

	token   *CancellationToken
	future  *Future[T]
	promise *Promise[T]
	fn      func(*CancellationToken) (T, error)
}

// New creates a Task wrapping fn, with a fresh CancellationToken and
// PriorityNormal.
func New[T any](fn func(token *CancellationToken) (T, error)) *Task[T] {
	f, p := NewFuture[T]()
	return &Task[T]{
		id:       nextTaskID.Add(1),
		Priority: PriorityNormal,
		token:    NewCancellationToken(),
		future:   f,
		promise:  p,
		fn:       fn,
	}
}

// ID returns the task's process-wide unique identifier.
func (t *Task[T]) ID() uint64 { return t.id }

// CancellationToken returns the token observed by this task's function.
func (t *Task[T]) CancellationToken() *CancellationToken { return t.token }

// Future returns the Future observing this task's outcome.
func (t *Task[T]) Future() *Future[T] { return t.future }

// Cancel requests cancellation of the task via its token.
func (t *Task[T]) Cancel() { t.token.Cancel() }

// State returns the current terminal-state of the task's future.
func (t *Task[T]) State() State { return t.future.State() }

// Run executes fn synchronously on the calling goroutine and settles the
// task's future with the outcome. A panic inside fn is recovered and
// reported as a Faulted future wrapping a *nerrors.Faulted. Run is safe to
// call exactly once; subsequent calls are no-ops since the future is
// already terminal.
func (t *Task[T]) Run() {
	if !t.future.IsPending() {
		return
	}
	if t.token.IsCancellationRequested() {
		t.promise.SetCancelled()
		return
	}

	var (
		val T
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = nerrors.FromRecover(r)
			}
		}()
		val, err = t.fn(t.token)
	}()

	if t.token.IsCancellationRequested() {
		t.promise.SetCancelled()
		return
	}
	if err != nil {
		t.promise.SetException(err)
		return
	}
	t.promise.SetValue(val)
}
