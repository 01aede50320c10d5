package nsync

import "sync/atomic"

// Integer is the set of types nsync.AtomicInt supports.
type Integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

// Atomic is a generic atomic value box offering Load, Store and Swap only;
// it has no CompareAndSwap and no arithmetic. AtomicInt[T] below adds
// CompareAndSwap and FetchAdd/FetchSub for Integer types. Neither type
// offers increment/decrement helpers.
type Atomic[T any] struct {
	v atomic.Pointer[T]
}

// NewAtomic creates an Atomic holding the given initial value.
func NewAtomic[T any](initial T) *Atomic[T] {
	a := &Atomic[T]{}
	a.Store(initial)
	return a
}

// Load returns the current value.
func (a *Atomic[T]) Load() T {
	p := a.v.Load()
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Store sets the current value.
func (a *Atomic[T]) Store(val T) {
	a.v.Store(&val)
}

// Swap sets val and returns the previous value.
func (a *Atomic[T]) Swap(val T) T {
	p := a.v.Swap(&val)
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// AtomicInt is a cache-line-padded atomic integer, following the FastState
// padding idiom: false sharing is avoided by padding the field to a full
// cache line on either side.
type AtomicInt[T Integer] struct {
	_ [64]byte
	v atomicValue[T]
	_ [56]byte
}

type atomicValue[T Integer] struct {
	raw atomic.Uint64
}

// NewAtomicInt creates an AtomicInt with the given initial value.
func NewAtomicInt[T Integer](initial T) *AtomicInt[T] {
	a := &AtomicInt[T]{}
	a.Store(initial)
	return a
}

func (a *AtomicInt[T]) Load() T { return T(a.v.raw.Load()) }

func (a *AtomicInt[T]) Store(val T) { a.v.raw.Store(uint64(val)) }

func (a *AtomicInt[T]) Swap(val T) T { return T(a.v.raw.Swap(uint64(val))) }

// CompareAndSwap performs a CAS, returning true on success.
func (a *AtomicInt[T]) CompareAndSwap(old, new T) bool {
	return a.v.raw.CompareAndSwap(uint64(old), uint64(new))
}

// FetchAdd atomically adds delta and returns the new value.
func (a *AtomicInt[T]) FetchAdd(delta T) T {
	return T(a.v.raw.Add(uint64(delta)))
}

// FetchSub atomically subtracts delta and returns the new value.
func (a *AtomicInt[T]) FetchSub(delta T) T {
	return T(a.v.raw.Add(^(uint64(delta) - 1)))
}
