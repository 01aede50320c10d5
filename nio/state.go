// Package nio implements NLib's I/O reactor/proactor event loop: a
// platform-backed readiness multiplexer (epoll on Linux, kqueue on
// Darwin, a portable fallback elsewhere), a timer heap, a cross-goroutine
// post-task queue, and high-level TCP/UDP reactor facades. It is grounded
// on the teacher's eventloop package (loop.go, poller_linux.go,
// poller_darwin.go, wakeup_linux.go, wakeup_darwin.go) and the original
// NEventLoop.h/NIOEvent.h headers, simplified to a single blocking-poll
// mode rather than the teacher's dual fast-path/I/O-mode design.
package nio

import "sync/atomic"

// LoopState is the Loop's run state, following the same small state
// machine eventloop/state.go uses.
type LoopState uint32

const (
	// StateIdle indicates the loop has been created but not started.
	StateIdle LoopState = iota
	// StateRunning indicates the loop is actively ticking.
	StateRunning
	// StateStopping indicates Stop or Shutdown has been requested.
	StateStopping
	// StateStopped indicates the loop has fully drained and exited.
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// fastState is a CAS-guarded atomic LoopState, cache-line padded the same
// way eventloop/state.go's FastState pads its single atomic field.
type fastState struct {
	_     [64]byte
	v     atomic.Uint32
	_     [60]byte
}

func newFastState(initial LoopState) *fastState {
	fs := &fastState{}
	fs.v.Store(uint32(initial))
	return fs
}

func (fs *fastState) Load() LoopState { return LoopState(fs.v.Load()) }

func (fs *fastState) Store(s LoopState) { fs.v.Store(uint32(s)) }

func (fs *fastState) TryTransition(from, to LoopState) bool {
	return fs.v.CompareAndSwap(uint32(from), uint32(to))
}
