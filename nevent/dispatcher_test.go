package nevent_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/nlib/nevent"
	"github.com/joeycumines/nlib/nscheduler"
	"github.com/stretchr/testify/require"
)

func TestImmediateDispatchRunsHandlersByPriority(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var order []int
	var mu sync.Mutex

	d.AddHandler("tick", 1, func(e *nevent.Event) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	d.AddHandler("tick", 10, func(e *nevent.Event) {
		mu.Lock()
		order = append(order, 10)
		mu.Unlock()
	})

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{10, 1}, order)
}

func TestFilterExcludesNonMatchingEvents(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var count int
	d.AddFilteredHandler("tick", 0, func(e *nevent.Event) bool {
		return e.Data == "yes"
	}, func(e *nevent.Event) { count++ })

	d.Dispatch(nevent.NewEvent("tick", "no"), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("tick", "yes"), nevent.Immediate)

	require.Equal(t, 1, count)
}

func TestInterceptorShortCircuitsDispatch(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var handlerRan bool
	d.AddHandler("tick", 0, func(e *nevent.Event) { handlerRan = true })
	d.AddInterceptor(0, func(e *nevent.Event) bool { return true })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	require.False(t, handlerRan)

	stats := d.Stats()
	require.EqualValues(t, 1, stats.Intercepted)
}

func TestRemoveHandlerStopsFutureDispatch(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var count int
	id := d.AddHandler("tick", 0, func(e *nevent.Event) { count++ })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	require.True(t, d.RemoveHandler(id))
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	require.Equal(t, 1, count)
}

func TestHandlerOnceFiresExactlyOnce(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var count int
	d.AddHandlerOnce("tick", 0, func(e *nevent.Event) { count++ })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	require.Equal(t, 1, count)
}

func TestPauseSuppressesDispatch(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var count int
	d.AddHandler("tick", 0, func(e *nevent.Event) { count++ })

	d.Pause()
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	require.Equal(t, 0, count)

	d.Resume()
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	require.Equal(t, 1, count)
}

func TestPauseTypeScopesSuppression(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var tickCount, boomCount int
	d.AddHandler("tick", 0, func(e *nevent.Event) { tickCount++ })
	d.AddHandler("boom", 0, func(e *nevent.Event) { boomCount++ })

	d.PauseType("tick")
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("boom", nil), nevent.Immediate)

	require.Equal(t, 0, tickCount)
	require.Equal(t, 1, boomCount)
}

func TestDeferredDispatchWaitsForRunDeferred(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var count int
	d.AddHandler("tick", 0, func(e *nevent.Event) { count++ })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Deferred)
	require.Equal(t, 0, count)

	n := d.RunDeferred()
	require.Equal(t, 1, n)
	require.Equal(t, 1, count)
}

func TestQueuedDispatchDropsOldestOnOverflow(t *testing.T) {
	d := nevent.NewDispatcher(2, 8)
	var mu sync.Mutex
	var seen []int
	release := make(chan struct{})
	first := true

	d.AddHandler("tick", 0, func(e *nevent.Event) {
		if first {
			first = false
			<-release // block the worker so the queue backs up
		}
		mu.Lock()
		seen = append(seen, e.Data.(int))
		mu.Unlock()
	})

	d.Dispatch(nevent.NewEvent("tick", 1), nevent.Queued) // picked up by worker, blocks
	time.Sleep(10 * time.Millisecond)
	d.Dispatch(nevent.NewEvent("tick", 2), nevent.Queued)
	d.Dispatch(nevent.NewEvent("tick", 3), nevent.Queued)
	d.Dispatch(nevent.NewEvent("tick", 4), nevent.Queued) // should evict event 2

	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 3, 4}, seen)
}

func TestAsyncDispatchRunsOffCallerGoroutine(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var ran atomic.Bool
	done := make(chan struct{})
	d.AddHandler("tick", 0, func(e *nevent.Event) {
		ran.Store(true)
		close(done)
	})

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Async)
	require.False(t, ran.Load(), "async dispatch must not run synchronously")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestHistoryReturnsRecentEventsInOrder(t *testing.T) {
	d := nevent.NewDispatcher(8, 2)
	d.Dispatch(nevent.NewEvent("a", 1), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("b", 2), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("c", 3), nevent.Immediate)

	hist := d.History(10)
	require.Len(t, hist, 2)
	require.Equal(t, "b", hist[0].Type)
	require.Equal(t, "c", hist[1].Type)
}

func TestGlobalAndScopedHandlersMergeByPriority(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var order []string
	var mu sync.Mutex
	record := func(name string) nevent.HandlerFunc {
		return func(e *nevent.Event) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	d.AddGlobalHandler(1, record("global-low"))
	d.AddHandler("tick", 100, record("scoped-high"))
	d.AddGlobalHandler(50, record("global-mid"))
	d.AddHandler("tick", 0, record("scoped-low"))

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"scoped-high", "global-mid", "global-low", "scoped-low"}, order)
}

func TestCancelStopsSiblingHandlers(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var ran []int
	d.AddHandler("tick", 10, func(e *nevent.Event) {
		ran = append(ran, 10)
		e.Cancel()
	})
	d.AddHandler("tick", 5, func(e *nevent.Event) { ran = append(ran, 5) })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	require.Equal(t, []int{10}, ran)
	require.EqualValues(t, 1, d.Stats().Cancelled)
}

func TestPanickingHandlerDoesNotStopSiblingsOrCrash(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	var secondRan bool
	var capturedErr error
	var capturedEvent *nevent.Event
	d.SetErrorHandler(func(err error, e *nevent.Event) {
		capturedErr = err
		capturedEvent = e
	})

	d.AddHandler("tick", 10, func(e *nevent.Event) { panic("boom") })
	d.AddHandler("tick", 5, func(e *nevent.Event) { secondRan = true })

	require.NotPanics(t, func() {
		d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	})

	require.True(t, secondRan, "a panicking handler must not prevent its siblings from running")
	require.Error(t, capturedErr)
	require.NotNil(t, capturedEvent)
}

func TestStatsCountHandlerInvocationsAndCancellation(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	id := d.AddHandler("tick", 0, func(e *nevent.Event) {})

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	stats := d.Stats()
	require.EqualValues(t, 2, stats.HandlerInvocations[id])
	require.EqualValues(t, 0, stats.Cancelled)
}

func TestAsyncDispatchUsesAttachedScheduler(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	s := nscheduler.New(1)
	defer s.Stop()
	d.SetScheduler(s)

	done := make(chan struct{})
	d.AddHandler("tick", 0, func(e *nevent.Event) { close(done) })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Async)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran on the attached scheduler")
	}
}

func TestRateLimiterDropsExcessDispatches(t *testing.T) {
	d := nevent.NewDispatcher(8, 8)
	d.SetRateLimiter(catrate.NewLimiter(map[time.Duration]int{time.Minute: 1}))

	var count int
	d.AddHandler("tick", 0, func(e *nevent.Event) { count++ })

	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)
	d.Dispatch(nevent.NewEvent("tick", nil), nevent.Immediate)

	require.Equal(t, 1, count)
	require.EqualValues(t, 1, d.Stats().Dropped)
}
