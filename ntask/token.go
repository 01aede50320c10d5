// Package ntask implements NLib's cooperative cancellation tokens,
// futures/promises, and cancellable tasks. Futures are grounded on the
// teacher's Promise/A+ implementation (eventloop/promise.go), generalized
// from a single-loop-thread execution model to genuine multi-goroutine
// parallelism; cancellation is grounded on eventloop/abort.go's
// AbortController/AbortSignal pair.
package ntask

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/nlib/nerrors"
	"github.com/joeycumines/nlib/nlog"
)

// CancellationToken propagates a cancellation request to a running Task.
// Cancellation is idempotent and one-way: once cancelled, a token stays
// cancelled.
type CancellationToken struct {
	mu        sync.Mutex
	cancelled atomic.Bool
	callbacks []func()
	fixed     bool // true only for the distinguished None token
}

// NewCancellationToken creates a fresh, cancellable token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// None is the distinguished token that can never be cancelled, matching
// the conventional meaning of "no cancellation was requested" used when a
// caller omits a token. See DESIGN.md for why this is a single shared
// instance rather than a fresh token per call.
var None = &CancellationToken{fixed: true}

// Cancel requests cancellation, running registered callbacks exactly once.
// Calling Cancel on None, or calling it more than once on any token, has
// no additional effect.
func (c *CancellationToken) Cancel() {
	if c.fixed {
		return
	}
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	cbs := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()
	for _, cb := range cbs {
		runCallback(cb)
	}
}

// runCallback invokes cb, recovering and logging any panic rather than
// letting it propagate: cancellation subscribers are one of the catch-all
// callback classes whose exceptions must be swallowed with a log, not
// allowed to take down the goroutine that triggered the cancellation.
func runCallback(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Error("ntask.cancellation", "cancellation subscriber panicked", nerrors.FromRecover(r), nil)
		}
	}()
	cb()
}

// CancelAfter schedules Cancel to run after delay elapses.
func (c *CancellationToken) CancelAfter(delay time.Duration) {
	if c.fixed {
		return
	}
	time.AfterFunc(delay, c.Cancel)
}

// IsCancellationRequested reports whether Cancel has been called.
func (c *CancellationToken) IsCancellationRequested() bool {
	return c.cancelled.Load()
}

// CanBeCancelled reports whether this token is capable of being cancelled.
// It is false only for None.
func (c *CancellationToken) CanBeCancelled() bool {
	return !c.fixed
}

// RegisterCallback registers fn to run when the token is cancelled. If the
// token is already cancelled, fn runs immediately, synchronously, on the
// calling goroutine.
func (c *CancellationToken) RegisterCallback(fn func()) {
	if fn == nil {
		return
	}
	if c.cancelled.Load() {
		runCallback(fn)
		return
	}
	c.mu.Lock()
	if c.cancelled.Load() {
		c.mu.Unlock()
		runCallback(fn)
		return
	}
	c.callbacks = append(c.callbacks, fn)
	c.mu.Unlock()
}

// ErrCancelled is returned by ThrowIfCancellationRequested once the token
// has been cancelled.
var ErrCancelled = cancelledError{}

type cancelledError struct{}

func (cancelledError) Error() string { return "ntask: operation cancelled" }

// ThrowIfCancellationRequested returns ErrCancelled if cancellation has
// been requested, or nil otherwise.
func (c *CancellationToken) ThrowIfCancellationRequested() error {
	if c.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}
