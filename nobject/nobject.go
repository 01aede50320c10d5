// Package nobject implements NLib's reference-counted object base: a
// strong/weak counter pair per object, strong handles that keep an object
// alive, weak handles that observe it without extending its lifetime, and
// an exclusive (movable, non-counted) handle for unshared ownership.
//
// Weak handles are grounded on the standard library's weak package, the
// same mechanism the teacher's event loop uses to avoid leaking promise
// registrations (eventloop/registry.go).
package nobject

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
)

// ID is a process-wide unique object identity, assigned once per Base.
type ID uint64

var nextID atomic.Uint64

// Base is embedded by any type that participates in strong/weak reference
// counting. It carries no knowledge of T; Strong[T]/Weak[T] pair a *Base
// with a *T pointer supplied by the caller at construction time.
type Base struct {
	id         ID
	strong     atomic.Int64
	weak       atomic.Int64
	destroying atomic.Bool
	onZero     func()

	uuidOnce sync.Once
	uuid     uuid.UUID
}

// NewBase creates a Base with a fresh identity and zero strong/weak
// counts. NewStrong seeds the initial strong owner.
func NewBase() *Base {
	return &Base{id: ID(nextID.Add(1))}
}

// ID returns the object's process-wide identity.
func (b *Base) ID() ID { return b.id }

// UUID returns a stable, globally-unique string identity for the object,
// minted lazily on first call. Use it where identity must cross process
// boundaries (logs, distributed tracing); the numeric ID is cheaper and
// sufficient for in-process use.
func (b *Base) UUID() uuid.UUID {
	b.uuidOnce.Do(func() {
		b.uuid = uuid.New()
	})
	return b.uuid
}

// StrongCount returns the current strong reference count.
func (b *Base) StrongCount() int64 { return b.strong.Load() }

// WeakCount returns the current weak reference count.
func (b *Base) WeakCount() int64 { return b.weak.Load() }

// Destroying reports whether the strong count has reached zero and
// finalization has begun (or completed). Once true, it never reverts to
// false: destruction is a one-way transition.
func (b *Base) Destroying() bool { return b.destroying.Load() }

func (b *Base) initStrong(onZero func()) {
	b.onZero = onZero
	b.strong.Store(1)
}

func (b *Base) addRefStrong() int64 { return b.strong.Add(1) }

func (b *Base) releaseStrong() int64 {
	n := b.strong.Add(-1)
	if n == 0 && b.destroying.CompareAndSwap(false, true) {
		if b.onZero != nil {
			b.onZero()
		}
	}
	return n
}

// Strong is an owning handle to a *T. It must be released exactly once per
// construction or Clone; Go has no destructors, so there is no implicit
// release on scope exit.
type Strong[T any] struct {
	ptr  *T
	base *Base
}

// NewStrong creates the first Strong handle to ptr, seeding base's strong
// count at 1. onZero, if non-nil, runs exactly once, the moment the strong
// count reaches zero.
func NewStrong[T any](ptr *T, base *Base, onZero func()) Strong[T] {
	base.initStrong(onZero)
	return Strong[T]{ptr: ptr, base: base}
}

// Valid reports whether this handle wraps a live object.
func (s Strong[T]) Valid() bool { return s.ptr != nil }

// Get returns the underlying pointer. The result is valid only as long as
// the caller holds this or another Strong handle to the same object.
func (s Strong[T]) Get() *T { return s.ptr }

// Clone returns a new Strong handle sharing ownership, incrementing the
// strong count.
func (s Strong[T]) Clone() Strong[T] {
	if s.base != nil {
		s.base.addRefStrong()
	}
	return s
}

// Release drops this handle's ownership. Once the strong count reaches
// zero, onZero (passed to NewStrong) runs.
func (s Strong[T]) Release() {
	if s.base != nil {
		s.base.releaseStrong()
	}
}

// Weak returns a new weak handle observing the same object. It does not
// extend the object's lifetime.
func (s Strong[T]) Weak() Weak[T] {
	if s.base == nil {
		return Weak[T]{}
	}
	s.base.weak.Add(1)
	return Weak[T]{w: weak.Make(s.ptr), base: s.base}
}

// Base returns the underlying reference-count Base.
func (s Strong[T]) Base() *Base { return s.base }

// Weak is a non-owning handle to a *T. Lock attempts to upgrade it to a
// Strong handle, failing once the strong count has reached zero (even if
// the weak.Pointer itself still resolves, since the Go GC may not have
// collected the object yet during destruction).
type Weak[T any] struct {
	w    weak.Pointer[T]
	base *Base
}

// Lock attempts to obtain a Strong handle. It fails (ok=false) if the
// object's strong count has already reached zero or destruction has begun,
// even momentarily — this is the destruction-in-progress guard.
func (w Weak[T]) Lock() (Strong[T], bool) {
	if w.base == nil {
		return Strong[T]{}, false
	}
	for {
		n := w.base.strong.Load()
		if n <= 0 || w.base.destroying.Load() {
			return Strong[T]{}, false
		}
		if w.base.strong.CompareAndSwap(n, n+1) {
			p := w.w.Value()
			if p == nil {
				w.base.releaseStrong()
				return Strong[T]{}, false
			}
			return Strong[T]{ptr: p, base: w.base}, true
		}
	}
}

// Expired reports whether the referenced object can no longer be locked.
func (w Weak[T]) Expired() bool {
	if w.base == nil {
		return true
	}
	return w.base.strong.Load() <= 0 || w.base.destroying.Load()
}

// Exclusive is a movable-only, non-reference-counted handle, for values
// with a single, transferable owner. Go's existing pointer semantics
// already prevent aliasing at the type-system level once Take is called;
// Exclusive exists to make the no-aliasing intent explicit in signatures.
type Exclusive[T any] struct {
	ptr *T
}

// NewExclusive wraps ptr as an exclusively-owned value.
func NewExclusive[T any](ptr *T) Exclusive[T] { return Exclusive[T]{ptr: ptr} }

// Get returns the wrapped pointer without transferring ownership.
func (e *Exclusive[T]) Get() *T { return e.ptr }

// Take transfers ownership out of e, leaving it empty.
func (e *Exclusive[T]) Take() *T {
	p := e.ptr
	e.ptr = nil
	return p
}

// SelfReferencer lets an object mint additional Strong handles to itself
// (the `enable_shared_from_this` idiom). Self fails until the object has
// been given its first strong owner, and again once destruction begins.
type SelfReferencer[T any] struct {
	ptr  *T
	base *Base
}

// Init binds the mixin to the enclosing object's pointer and Base. Call it
// once, typically from the constructor, before any Strong handle exists.
func (s *SelfReferencer[T]) Init(ptr *T, base *Base) {
	s.ptr = ptr
	s.base = base
}

// Self mints a new Strong handle to the enclosing object. Calling it on an
// object that is not currently strong-owned by anyone is a contract
// violation (a programming error, not an operational one — see spec §4.7)
// and panics; callers that dispatch through the core's callback sites
// recover and route the panic to the error-handler hook the same way any
// other handler/continuation panic is handled. It also panics once
// destruction has begun, since by then no new strong owner can be minted.
func (s *SelfReferencer[T]) Self() Strong[T] {
	if s.base == nil {
		panic("nobject: SelfReferencer.Self called before Init")
	}
	for {
		n := s.base.strong.Load()
		if n <= 0 || s.base.destroying.Load() {
			panic("nobject: SelfReferencer.Self called while not strong-owned")
		}
		if s.base.strong.CompareAndSwap(n, n+1) {
			return Strong[T]{ptr: s.ptr, base: s.base}
		}
	}
}
