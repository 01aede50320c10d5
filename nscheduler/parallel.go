package nscheduler

import (
	"sync"

	"github.com/joeycumines/nlib/ntask"
)

// ParallelFor runs fn(i) for every i in [start, end) concurrently on s,
// returning the aggregate of any errors. Grounded on the original
// library's NParallelExecutor::ParallelFor, dropped from the distilled
// spec but reinstated here as a thin combinator over Scheduler+WhenAll.
func ParallelFor(s *Scheduler, start, end int, fn func(i int) error) error {
	if end <= start {
		return nil
	}
	futures := make([]*ntask.Future[struct{}], 0, end-start)
	for i := start; i < end; i++ {
		i := i
		t := ntask.New(func(tok *ntask.CancellationToken) (struct{}, error) {
			return struct{}{}, fn(i)
		})
		futures = append(futures, t.Future())
		ScheduleTask(s, t)
	}
	_, err := ntask.WhenAll(futures).Wait()
	return err
}

// ParallelForEach runs fn(item) for every item in items concurrently on s.
func ParallelForEach[T any](s *Scheduler, items []T, fn func(item T) error) error {
	return ParallelFor(s, 0, len(items), func(i int) error { return fn(items[i]) })
}

// ParallelInvoke runs every function in fns concurrently on s and waits
// for all to finish, returning the aggregate of any errors.
func ParallelInvoke(s *Scheduler, fns ...func() error) error {
	return ParallelForEach(s, fns, func(fn func() error) error { return fn() })
}

// MapReduce maps each input through mapFn concurrently on s, then folds
// the results sequentially through reduceFn starting from initial.
func MapReduce[TIn, TOut any](s *Scheduler, input []TIn, mapFn func(TIn) TOut, reduceFn func(acc TOut, v TOut) TOut, initial TOut) TOut {
	if len(input) == 0 {
		return initial
	}
	results := make([]TOut, len(input))
	var wg sync.WaitGroup
	for i, v := range input {
		i, v := i, v
		wg.Add(1)
		s.Submit(func() {
			defer wg.Done()
			results[i] = mapFn(v)
		}, ntask.PriorityNormal)
	}
	wg.Wait()

	acc := initial
	for _, r := range results {
		acc = reduceFn(acc, r)
	}
	return acc
}

// RunInBackground submits fn to run fire-and-forget on BackgroundScheduler.
func RunInBackground(fn func()) {
	BackgroundScheduler().Submit(fn, ntask.PriorityLow)
}

// RunAsync schedules fn as a Task on DefaultScheduler and returns its
// Future.
func RunAsync[T any](fn func(*ntask.CancellationToken) (T, error)) *ntask.Future[T] {
	t := ntask.New(fn)
	ScheduleTask(DefaultScheduler(), t)
	return t.Future()
}
