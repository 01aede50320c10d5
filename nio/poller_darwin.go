//go:build darwin

package nio

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// kqueuePoller backs poller with Darwin kqueue, grounded on
// eventloop/poller_darwin.go's FastPoller, trimmed to a map-keyed
// registry in place of the teacher's preallocated fixed-size slice.
type kqueuePoller struct {
	kq       int
	fdMu     sync.RWMutex
	fds      map[int]fdRegistration
	eventBuf [256]unix.Kevent_t
	closed   atomic.Bool
}

type fdRegistration struct {
	cb     IOCallback
	events IOEvents
}

func newPoller() poller {
	return &kqueuePoller{fds: make(map[int]fdRegistration)}
}

func (p *kqueuePoller) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	return nil
}

func (p *kqueuePoller) Close() error {
	p.closed.Store(true)
	return unix.Close(p.kq)
}

func (p *kqueuePoller) changeFD(fd int, events IOEvents, flags uint16) error {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	p.fdMu.Lock()
	if _, ok := p.fds[fd]; ok {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdRegistration{cb: cb, events: events}
	p.fdMu.Unlock()

	if err := p.changeFD(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR); err != nil {
		p.fdMu.Lock()
		delete(p.fds, fd)
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	p.fdMu.Lock()
	reg, ok := p.fds[fd]
	if !ok {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	p.fdMu.Unlock()
	return p.changeFD(fd, reg.events, unix.EV_DELETE)
}

func (p *kqueuePoller) ModifyFD(fd int, events IOEvents) error {
	p.fdMu.Lock()
	old, ok := p.fds[fd]
	if !ok {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd] = fdRegistration{cb: old.cb, events: events}
	p.fdMu.Unlock()

	_ = p.changeFD(fd, old.events, unix.EV_DELETE)
	return p.changeFD(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
}

func (p *kqueuePoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		p.fdMu.RLock()
		reg, ok := p.fds[fd]
		p.fdMu.RUnlock()
		if !ok || reg.cb == nil {
			continue
		}
		var ev IOEvents
		switch p.eventBuf[i].Filter {
		case unix.EVFILT_READ:
			ev = EventRead
		case unix.EVFILT_WRITE:
			ev = EventWrite
		}
		if p.eventBuf[i].Flags&unix.EV_EOF != 0 {
			ev |= EventHangup
		}
		if p.eventBuf[i].Flags&unix.EV_ERROR != 0 {
			ev |= EventError
		}
		reg.cb(ev)
	}
	return n, nil
}
