// Package nevent implements NLib's event dispatcher: global and per-type
// handler registration via stable ListenerID tokens, filters, priority
// interceptors, four dispatch modes, pause/resume, dispatch statistics,
// and a bounded event history.
//
// ListenerID is grounded directly on eventloop/eventtarget.go's own
// rationale: Go function values cannot be reliably compared for equality,
// so handler identity for unregistration purposes has to be a token
// minted at registration time, not the function value itself.
package nevent

import (
	"sync/atomic"
	"time"
	"weak"

	"github.com/joeycumines/nlib/nobject"
)

var nextEventID atomic.Uint64

// Event is a single dispatchable occurrence: an identity, a textual type
// tag, a timestamp, a priority, the handled/cancellable/cancelled trio,
// an optional weak back-reference to whatever object raised it, a
// string-keyed data bag, and a set of categories, alongside the Type/Data
// fields handlers use day to day.
type Event struct {
	id        uint64
	Type      string
	Data      any
	Priority  int
	Timestamp time.Time

	handled     bool
	cancellable bool
	cancelled   bool

	source    weak.Pointer[nobject.Base]
	hasSource bool

	categories []string
	fields     map[string]any
}

// EventOption configures an Event at construction time.
type EventOption func(*Event)

// WithPriority sets the event's Priority field. The Dispatcher does not
// read it: handler order within a dispatch depends only on the priorities
// the handlers were registered with.
func WithPriority(priority int) EventOption {
	return func(e *Event) { e.Priority = priority }
}

// WithCancellable overrides the default (true): whether Cancel has any
// effect on this event.
func WithCancellable(cancellable bool) EventOption {
	return func(e *Event) { e.cancellable = cancellable }
}

// WithSource attaches a weak back-reference to the object that raised the
// event. It does not extend base's lifetime.
func WithSource(base *nobject.Base) EventOption {
	return func(e *Event) {
		if base == nil {
			return
		}
		e.source = weak.Make(base)
		e.hasSource = true
	}
}

// WithCategories attaches one or more categories to the event.
func WithCategories(categories ...string) EventOption {
	return func(e *Event) { e.categories = append(e.categories, categories...) }
}

// WithField sets a single string-keyed entry in the event's data bag.
func WithField(key string, value any) EventOption {
	return func(e *Event) {
		if e.fields == nil {
			e.fields = make(map[string]any)
		}
		e.fields[key] = value
	}
}

// NewEvent creates an Event of the given type carrying data, assigning it
// a fresh identity and the current time as its Timestamp. Events are
// cancellable by default.
func NewEvent(eventType string, data any, opts ...EventOption) *Event {
	e := &Event{
		id:          nextEventID.Add(1),
		Type:        eventType,
		Data:        data,
		Timestamp:   nowFunc(),
		cancellable: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the event's process-wide identity.
func (e *Event) ID() uint64 { return e.id }

// MarkHandled records that some handler considers the event handled.
// Unlike Cancel, it has no effect on dispatch: handled events still reach
// every remaining matching handler.
func (e *Event) MarkHandled() { e.handled = true }

// Handled reports whether MarkHandled has been called.
func (e *Event) Handled() bool { return e.handled }

// Cancellable reports whether Cancel has any effect on this event.
func (e *Event) Cancellable() bool { return e.cancellable }

// Cancel marks the event as cancelled, provided it is Cancellable; a
// subsequent handler observes this via Cancelled and dispatch stops before
// reaching it. Calling Cancel on a non-cancellable event is a no-op.
func (e *Event) Cancel() {
	if !e.cancellable {
		return
	}
	e.cancelled = true
}

// Cancelled reports whether Cancel has taken effect.
func (e *Event) Cancelled() bool { return e.cancelled }

// Source resolves the event's weak back-reference, if one was attached
// with WithSource and the referenced object is still strong-owned.
func (e *Event) Source() (*nobject.Base, bool) {
	if !e.hasSource {
		return nil, false
	}
	base := e.source.Value()
	if base == nil || base.StrongCount() <= 0 || base.Destroying() {
		return nil, false
	}
	return base, true
}

// Categories returns the event's attached categories.
func (e *Event) Categories() []string {
	return append([]string(nil), e.categories...)
}

// HasCategory reports whether cat was attached via WithCategories.
func (e *Event) HasCategory(cat string) bool {
	for _, c := range e.categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Field retrieves a value from the event's string-keyed data bag.
func (e *Event) Field(key string) (any, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// SetField stores a value in the event's string-keyed data bag.
func (e *Event) SetField(key string, value any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = value
}

// Fields returns a copy of the event's string-keyed data bag.
func (e *Event) Fields() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// HandlerFunc observes a dispatched Event.
type HandlerFunc func(e *Event)

// Filter decides whether an Event should reach a given handler.
type Filter func(e *Event) bool

// Interceptor runs before any handler for an Event and may short-circuit
// dispatch entirely by returning true.
type Interceptor func(e *Event) (stop bool)

// ListenerID is a stable token identifying a single handler registration,
// returned by AddHandler/AddGlobalHandler and required to unregister it.
type ListenerID uint64

// DispatchMode selects how a dispatched Event reaches its handlers.
type DispatchMode int

const (
	// Immediate runs all matching handlers synchronously, on the
	// dispatching goroutine, before Dispatch returns.
	Immediate DispatchMode = iota
	// Deferred queues the event to run on a later call to RunDeferred,
	// in FIFO order, still on whatever goroutine calls RunDeferred.
	Deferred
	// Async hands the event off to the dispatcher's attached task
	// scheduler (nscheduler.Scheduler); Dispatch returns immediately
	// without waiting for it to run.
	Async
	// Queued pushes the event onto the dispatcher's bounded internal
	// queue, processed sequentially by a single background worker. If
	// the queue is full, the oldest queued event is dropped to make
	// room (back-pressure via eviction, not blocking).
	Queued
)
