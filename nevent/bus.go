package nevent

// Bus is publish/subscribe sugar over Dispatcher: Publish builds and
// dispatches an Event in one call, and Subscribe returns a ScopedHandler
// instead of a bare ListenerID, so callers can defer unregistration with
// Close rather than tracking the ID themselves (a supplemented feature:
// the distilled spec has no publish/subscribe front door of its own).
type Bus struct {
	dispatcher *Dispatcher
}

// NewBus wraps dispatcher with the Publish/Subscribe sugar.
func NewBus(dispatcher *Dispatcher) *Bus {
	return &Bus{dispatcher: dispatcher}
}

// Dispatcher returns the underlying Dispatcher, for callers that need the
// lower-level API (interceptors, pause/resume, history, stats).
func (b *Bus) Dispatcher() *Dispatcher { return b.dispatcher }

// Publish builds an Event of eventType carrying data and dispatches it in
// the given mode.
func (b *Bus) Publish(eventType string, data any, mode DispatchMode) {
	b.dispatcher.Dispatch(NewEvent(eventType, data), mode)
}

// Subscribe registers fn for eventType (or every event, if eventType is
// empty) at the given priority, returning a ScopedHandler that unregisters
// it on Close.
func (b *Bus) Subscribe(eventType string, priority int, fn HandlerFunc) *ScopedHandler {
	var id ListenerID
	if eventType == "" {
		id = b.dispatcher.AddGlobalHandler(priority, fn)
	} else {
		id = b.dispatcher.AddHandler(eventType, priority, fn)
	}
	return &ScopedHandler{dispatcher: b.dispatcher, id: id}
}

// SubscribeFiltered is Subscribe with an additional Filter.
func (b *Bus) SubscribeFiltered(eventType string, priority int, filter Filter, fn HandlerFunc) *ScopedHandler {
	id := b.dispatcher.AddFilteredHandler(eventType, priority, filter, fn)
	return &ScopedHandler{dispatcher: b.dispatcher, id: id}
}

// SubscribeOnce is Subscribe for a handler that fires at most once.
func (b *Bus) SubscribeOnce(eventType string, priority int, fn HandlerFunc) *ScopedHandler {
	id := b.dispatcher.AddHandlerOnce(eventType, priority, fn)
	return &ScopedHandler{dispatcher: b.dispatcher, id: id}
}

// ScopedHandler is a registration handle that unregisters its handler
// exactly once, the first time Close is called, standing in for the
// original's RAII NScopedEventHandler (which unregistered automatically
// on scope exit; Go has no destructors, so Close must be called
// explicitly, typically via defer).
type ScopedHandler struct {
	dispatcher *Dispatcher
	id         ListenerID
	closed     bool
}

// Close unregisters the handler. Safe to call more than once.
func (s *ScopedHandler) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.dispatcher.RemoveHandler(s.id)
}

// ID returns the underlying ListenerID, for callers that need it (e.g. to
// pass to Dispatcher.RemoveHandler directly).
func (s *ScopedHandler) ID() ListenerID { return s.id }
