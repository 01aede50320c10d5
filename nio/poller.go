package nio

import "errors"

// IOEvents is a bitmask of readiness conditions a registered file
// descriptor can be watched for, grounded on eventloop/poller_linux.go's
// IOEvents type.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// IOCallback is invoked with the observed readiness events for a
// registered file descriptor.
type IOCallback func(IOEvents)

// Standard poller errors.
var (
	ErrFDAlreadyRegistered = errors.New("nio: fd already registered")
	ErrFDNotRegistered     = errors.New("nio: fd not registered")
	ErrPollerClosed        = errors.New("nio: poller closed")
	ErrPollerUnsupported   = errors.New("nio: raw fd polling unsupported on this platform")
)

// poller is the platform readiness multiplexer used internally by Loop.
// Linux and Darwin back it with epoll/kqueue (poller_linux.go,
// poller_darwin.go); every other platform uses the portable fallback in
// poller_other.go.
type poller interface {
	Init() error
	Close() error
	RegisterFD(fd int, events IOEvents, cb IOCallback) error
	UnregisterFD(fd int) error
	ModifyFD(fd int, events IOEvents) error
	// PollIO blocks up to timeoutMs (0 = non-blocking, <0 = forever)
	// waiting for readiness, dispatching callbacks for whatever fired, and
	// returns the number of fds that had events.
	PollIO(timeoutMs int) (int, error)
}
