//go:build !linux && !darwin

package nio

// fallbackPoller is used on platforms without a native readiness
// multiplexer wired in (e.g. Windows). Raw fd registration is
// unsupported; Loop still works for timers and posted tasks, and
// Proactor's simulated completion-port model (proactor.go) covers
// socket I/O portably by running blocking calls on a worker pool
// instead of depending on readiness notification.
type fallbackPoller struct{}

func newPoller() poller { return fallbackPoller{} }

func (fallbackPoller) Init() error  { return nil }
func (fallbackPoller) Close() error { return nil }

func (fallbackPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	return ErrPollerUnsupported
}

func (fallbackPoller) UnregisterFD(fd int) error { return ErrPollerUnsupported }

func (fallbackPoller) ModifyFD(fd int, events IOEvents) error { return ErrPollerUnsupported }

func (fallbackPoller) PollIO(timeoutMs int) (int, error) { return 0, nil }
