package ntask

import (
	"sync"
	"time"

	"github.com/joeycumines/nlib/nerrors"
)

// WhenAll returns a Future that completes with every input future's value,
// in input order, once all have completed; if any faulted it faults with
// that error when there is exactly one, or with a *nerrors.Aggregate of all
// of them when there are several, and it cancels if any were cancelled
// (checked after all have settled, faults taking priority per spec).
func WhenAll[T any](futures []*Future[T]) *Future[[]T] {
	rf, rp := NewFuture[[]T]()
	if len(futures) == 0 {
		rp.SetValue(nil)
		return rf
	}

	var (
		mu        sync.Mutex
		remaining = len(futures)
		values    = make([]T, len(futures))
		errs      []error
		anyCancel bool
	)

	for i, f := range futures {
		i := i
		settle := func() {
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if !done {
				return
			}
			mu.Lock()
			aggErrs := errs
			cancelled := anyCancel
			mu.Unlock()
			if agg := nerrors.NewAggregate(aggErrs...); agg != nil {
				rp.SetException(agg)
				return
			}
			if cancelled {
				rp.SetCancelled()
				return
			}
			rp.SetValue(values)
		}
		f.OnCompleted(func(v T) {
			mu.Lock()
			values[i] = v
			mu.Unlock()
			settle()
		})
		f.OnFaulted(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			settle()
		})
		f.OnCancelled(func() {
			mu.Lock()
			anyCancel = true
			mu.Unlock()
			settle()
		})
	}
	return rf
}

// WhenAny returns a Future that settles identically to whichever input
// future settles first.
func WhenAny[T any](futures []*Future[T]) *Future[T] {
	rf, rp := NewFuture[T]()
	if len(futures) == 0 {
		rp.SetException(&nerrors.RangeError{Message: "WhenAny requires at least one future"})
		return rf
	}
	for _, f := range futures {
		f.OnCompleted(func(v T) { rp.SetValue(v) })
		f.OnFaulted(func(err error) { rp.SetException(err) })
		f.OnCancelled(func() { rp.SetCancelled() })
	}
	return rf
}

// Transform maps a completed future's value through fn, producing a new
// future of a possibly different type. Faults and cancellation propagate
// unchanged.
func Transform[T, R any](f *Future[T], fn func(T) R) *Future[R] {
	return Then(f, func(v T) (R, error) { return fn(v), nil })
}

// Delay returns a future that settles identically to source, but no sooner
// than d after it is called. A cancellation of source is the exception: it
// cancels the returned future at once, without waiting for d.
func Delay[T any](source *Future[T], d time.Duration) *Future[T] {
	rf, rp := NewFuture[T]()
	timer := time.AfterFunc(d, func() {
		v, err, ok := source.TryGet()
		if !ok {
			// source not yet settled when the delay elapsed; wait for it now.
			v, err = source.Wait()
		}
		switch source.State() {
		case Completed:
			rp.SetValue(v)
		case Cancelled:
			rp.SetCancelled()
		default:
			rp.SetException(err)
		}
	})
	source.OnCancelled(func() { timer.Stop(); rp.SetCancelled() })
	return rf
}

// Timeout returns a future that faults with nerrors.ErrTimeout if source
// has not settled within d; otherwise it settles identically to source.
func Timeout[T any](source *Future[T], d time.Duration) *Future[T] {
	rf, rp := NewFuture[T]()
	timer := time.AfterFunc(d, func() {
		rp.SetException(nerrors.ErrTimeout)
	})
	source.OnCompleted(func(v T) {
		if timer.Stop() {
			rp.SetValue(v)
		}
	})
	source.OnFaulted(func(err error) {
		if timer.Stop() {
			rp.SetException(err)
		}
	})
	source.OnCancelled(func() {
		if timer.Stop() {
			rp.SetCancelled()
		}
	})
	return rf
}
