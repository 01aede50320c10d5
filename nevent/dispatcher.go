package nevent

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/nlib/nerrors"
	"github.com/joeycumines/nlib/nlog"
	"github.com/joeycumines/nlib/nscheduler"
	"github.com/joeycumines/nlib/ntask"
)

type registration struct {
	id       ListenerID
	priority int
	fn       HandlerFunc
	filter   Filter
	once     bool
	global   bool
}

// Dispatcher routes Events to registered handlers, global or scoped to an
// event type, honoring priority order (higher first), filters, and
// interceptors, across four dispatch modes.
type Dispatcher struct {
	mu     sync.RWMutex
	global []registration
	byType map[string][]registration
	nextID atomic.Uint64

	pausedGlobal atomic.Bool
	pausedTypes  map[string]bool

	interceptors []regInterceptor

	stats *statsCounters

	history *historyRing

	schedulerMu sync.RWMutex
	scheduler   *nscheduler.Scheduler

	errorMu      sync.RWMutex
	errorHandler func(err error, e *Event)

	limiterMu sync.RWMutex
	limiter   *catrate.Limiter

	queueMu     sync.Mutex
	queueCond   *sync.Cond
	queue       []*Event
	queueCap    int
	queueClosed bool
	queueOnce   sync.Once

	deferredMu sync.Mutex
	deferred   []*Event
}

type regInterceptor struct {
	priority int
	fn       Interceptor
}

// NewDispatcher creates a Dispatcher with a bounded queue of the given
// capacity for Queued-mode dispatch and a history ring retaining the last
// historySize dispatched events. Async dispatch hands off to whatever
// scheduler is attached via SetScheduler, falling back to
// nscheduler.DefaultScheduler if none is.
func NewDispatcher(queueCapacity, historySize int) *Dispatcher {
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	d := &Dispatcher{
		byType:      make(map[string][]registration),
		pausedTypes: make(map[string]bool),
		queueCap:    queueCapacity,
		history:     newHistoryRing(historySize),
		stats:       newStatsCounters(),
	}
	d.queueCond = sync.NewCond(&d.queueMu)
	return d
}

// SetScheduler attaches the scheduler that Async-mode dispatch hands off
// to. Passing nil reverts to nscheduler.DefaultScheduler.
func (d *Dispatcher) SetScheduler(s *nscheduler.Scheduler) {
	d.schedulerMu.Lock()
	d.scheduler = s
	d.schedulerMu.Unlock()
}

func (d *Dispatcher) asyncScheduler() *nscheduler.Scheduler {
	d.schedulerMu.RLock()
	s := d.scheduler
	d.schedulerMu.RUnlock()
	if s == nil {
		s = nscheduler.DefaultScheduler()
	}
	return s
}

// SetRateLimiter attaches a catrate.Limiter gating dispatch: a category is
// the event's Type, and an event whose type has exceeded its configured
// rate is dropped (counted in Statistics.Dropped) rather than dispatched,
// in every mode. Passing nil removes rate limiting entirely.
func (d *Dispatcher) SetRateLimiter(l *catrate.Limiter) {
	d.limiterMu.Lock()
	d.limiter = l
	d.limiterMu.Unlock()
}

func (d *Dispatcher) allow(eventType string) bool {
	d.limiterMu.RLock()
	l := d.limiter
	d.limiterMu.RUnlock()
	if l == nil {
		return true
	}
	_, ok := l.Allow(eventType)
	return ok
}

// SetErrorHandler installs fn to run, itself panic-guarded, whenever a
// handler panics during dispatch — in addition to the standard log every
// handler panic already produces.
func (d *Dispatcher) SetErrorHandler(fn func(err error, e *Event)) {
	d.errorMu.Lock()
	d.errorHandler = fn
	d.errorMu.Unlock()
}

func (d *Dispatcher) callErrorHandler(err error, e *Event) {
	d.errorMu.RLock()
	fn := d.errorHandler
	d.errorMu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			nlog.Error("nevent.dispatch", "error handler itself panicked", nerrors.FromRecover(r), map[string]any{"type": e.Type})
		}
	}()
	fn(err, e)
}

// AddGlobalHandler registers fn to observe every dispatched Event,
// regardless of type, returning a token to unregister it later.
func (d *Dispatcher) AddGlobalHandler(priority int, fn HandlerFunc) ListenerID {
	return d.add("", priority, fn, nil, false)
}

// AddHandler registers fn to observe Events of the given type only.
func (d *Dispatcher) AddHandler(eventType string, priority int, fn HandlerFunc) ListenerID {
	return d.add(eventType, priority, fn, nil, false)
}

// AddFilteredHandler registers fn to observe Events of the given type for
// which filter returns true. An empty eventType registers globally.
func (d *Dispatcher) AddFilteredHandler(eventType string, priority int, filter Filter, fn HandlerFunc) ListenerID {
	return d.add(eventType, priority, fn, filter, false)
}

// AddHandlerOnce registers fn to run at most once, then automatically
// unregister.
func (d *Dispatcher) AddHandlerOnce(eventType string, priority int, fn HandlerFunc) ListenerID {
	return d.add(eventType, priority, fn, nil, true)
}

func (d *Dispatcher) add(eventType string, priority int, fn HandlerFunc, filter Filter, once bool) ListenerID {
	id := ListenerID(d.nextID.Add(1))
	reg := registration{id: id, priority: priority, fn: fn, filter: filter, once: once, global: eventType == ""}

	d.mu.Lock()
	defer d.mu.Unlock()
	if eventType == "" {
		d.global = append(d.global, reg)
		sortByPriorityDesc(d.global)
	} else {
		d.byType[eventType] = append(d.byType[eventType], reg)
		sortByPriorityDesc(d.byType[eventType])
	}
	return id
}

func sortByPriorityDesc(regs []registration) {
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority > regs[j].priority })
}

// RemoveHandler unregisters the handler identified by id, wherever it was
// registered (global or a specific type).
func (d *Dispatcher) RemoveHandler(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if removed := removeByID(&d.global, id); removed {
		return true
	}
	for t, regs := range d.byType {
		if removeByID(&regs, id) {
			d.byType[t] = regs
			return true
		}
	}
	return false
}

func removeByID(regs *[]registration, id ListenerID) bool {
	for i, r := range *regs {
		if r.id == id {
			*regs = append((*regs)[:i], (*regs)[i+1:]...)
			return true
		}
	}
	return false
}

// AddInterceptor registers fn to run, in priority order (higher first),
// before any handler observes a dispatched Event. If fn returns true,
// dispatch stops: no further interceptor or handler runs for that event.
func (d *Dispatcher) AddInterceptor(priority int, fn Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interceptors = append(d.interceptors, regInterceptor{priority: priority, fn: fn})
	sort.SliceStable(d.interceptors, func(i, j int) bool { return d.interceptors[i].priority > d.interceptors[j].priority })
}

// Pause makes Dispatch discard every event, in every mode, until Resume is
// called; each discarded event is counted in the paused statistic. Events
// already deferred or queued before the Pause still run, and discarded
// events are not replayed by Resume.
func (d *Dispatcher) Pause() { d.pausedGlobal.Store(true) }

// Resume lifts a global Pause.
func (d *Dispatcher) Resume() { d.pausedGlobal.Store(false) }

// PauseType makes Dispatch discard events of a single event type, as
// Pause does for all types, until ResumeType is called.
func (d *Dispatcher) PauseType(eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pausedTypes[eventType] = true
}

// ResumeType lifts a PauseType for a single event type.
func (d *Dispatcher) ResumeType(eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pausedTypes, eventType)
}

func (d *Dispatcher) isPaused(eventType string) bool {
	if d.pausedGlobal.Load() {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pausedTypes[eventType]
}

// Dispatch routes e to matching handlers according to mode.
func (d *Dispatcher) Dispatch(e *Event, mode DispatchMode) {
	if d.isPaused(e.Type) {
		d.stats.recordPaused()
		return
	}
	if !d.allow(e.Type) {
		d.stats.recordDropped()
		return
	}
	switch mode {
	case Immediate:
		d.dispatchNow(e)
	case Deferred:
		d.deferredMu.Lock()
		d.deferred = append(d.deferred, e)
		d.deferredMu.Unlock()
	case Async:
		d.asyncScheduler().Submit(func() { d.dispatchNow(e) }, ntask.PriorityNormal)
	case Queued:
		d.enqueue(e)
	default:
		d.dispatchNow(e)
	}
}

// RunDeferred runs every event queued via Deferred dispatch, in FIFO
// order, on the calling goroutine.
func (d *Dispatcher) RunDeferred() int {
	d.deferredMu.Lock()
	batch := d.deferred
	d.deferred = nil
	d.deferredMu.Unlock()

	for _, e := range batch {
		d.dispatchNow(e)
	}
	return len(batch)
}

func (d *Dispatcher) dispatchNow(e *Event) {
	start := nowFunc()
	defer func() {
		d.history.push(e)
		d.stats.recordDispatch(nowFunc().Sub(start))
	}()

	d.mu.RLock()
	interceptors := append([]regInterceptor(nil), d.interceptors...)
	merged := make([]registration, 0, len(d.global)+len(d.byType[e.Type]))
	merged = append(merged, d.global...)
	merged = append(merged, d.byType[e.Type]...)
	d.mu.RUnlock()
	sortByPriorityDesc(merged)

	for _, ic := range interceptors {
		if ic.fn(e) {
			d.stats.recordIntercepted()
			return
		}
	}

	handled := d.runHandlers(merged, e)
	if handled > 0 {
		d.stats.recordHandled()
	}
	if e.Cancelled() {
		d.stats.recordCancelled()
	}
}

// runHandlers invokes regs (already merged across global/per-type and
// sorted by priority descending) in order, stopping as soon as the event
// becomes Cancelled — by Cancel called from within one of these very
// handlers, or from an earlier stage. Each invocation is individually
// panic-guarded so one bad handler cannot prevent its siblings from
// running or crash the dispatching goroutine.
func (d *Dispatcher) runHandlers(regs []registration, e *Event) int {
	count := 0
	var onceIDs []ListenerID
	for _, r := range regs {
		if e.Cancelled() {
			break
		}
		if r.filter != nil && !r.filter(e) {
			continue
		}
		d.invokeHandler(r, e)
		d.stats.recordHandlerInvocation(r.id)
		count++
		if r.once {
			onceIDs = append(onceIDs, r.id)
		}
	}
	for _, id := range onceIDs {
		d.RemoveHandler(id)
	}
	return count
}

func (d *Dispatcher) invokeHandler(r registration, e *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			err := nerrors.FromRecover(rec)
			nlog.Error("nevent.dispatch", "handler panicked", err, map[string]any{
				"listener": uint64(r.id),
				"type":     e.Type,
			})
			d.callErrorHandler(err, e)
		}
	}()
	r.fn(e)
}

// Stats returns a snapshot of the dispatcher's running statistics.
func (d *Dispatcher) Stats() Statistics { return d.stats.snapshot() }

// History returns up to n of the most recently dispatched events, newest
// last.
func (d *Dispatcher) History(n int) []*Event { return d.history.recent(n) }
