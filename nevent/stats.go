package nevent

import (
	"sync"
	"time"
)

// nowFunc is indirected for test determinism, following the same
// test-seam idiom catrate.Limiter uses for time.Now.
var nowFunc = time.Now

// Statistics is a snapshot of a Dispatcher's running counters: how many
// events were dispatched, handled by at least one handler, cancelled
// mid-dispatch, intercepted (short-circuited), or skipped due to Pause,
// processing-time min/avg/max across dispatched events (exact, running
// extremes/mean, not estimated), P50/P99 latency estimates (streaming,
// via pSquareQuantile), and per-handler invocation counts keyed by
// ListenerID.
type Statistics struct {
	Dispatched   int64
	Handled      int64
	Cancelled    int64
	Intercepted  int64
	Paused       int64
	Dropped      int64
	MinDuration  time.Duration
	MaxDuration  time.Duration
	MeanDuration time.Duration
	P50Duration  time.Duration
	P99Duration  time.Duration

	// HandlerInvocations counts how many times each registered handler
	// has actually run (filtered-out or cancellation-skipped calls don't
	// count).
	HandlerInvocations map[ListenerID]int64
}

type statsCounters struct {
	mu          sync.Mutex
	dispatched  int64
	handled     int64
	cancelled   int64
	intercepted int64
	paused      int64
	dropped     int64
	minDur      time.Duration
	maxDur      time.Duration
	totalDur    time.Duration

	p50 *pSquareQuantile
	p99 *pSquareQuantile

	handlerInvocations map[ListenerID]int64
}

func newStatsCounters() *statsCounters {
	return &statsCounters{
		p50:                newPSquareQuantile(0.50),
		p99:                newPSquareQuantile(0.99),
		handlerInvocations: make(map[ListenerID]int64),
	}
}

func (st *statsCounters) recordDispatch(d time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.dispatched++
	st.totalDur += d
	if st.dispatched == 1 || d < st.minDur {
		st.minDur = d
	}
	if d > st.maxDur {
		st.maxDur = d
	}
	st.p50.update(float64(d))
	st.p99.update(float64(d))
}

func (st *statsCounters) recordHandled() {
	st.mu.Lock()
	st.handled++
	st.mu.Unlock()
}

func (st *statsCounters) recordCancelled() {
	st.mu.Lock()
	st.cancelled++
	st.mu.Unlock()
}

func (st *statsCounters) recordIntercepted() {
	st.mu.Lock()
	st.intercepted++
	st.mu.Unlock()
}

func (st *statsCounters) recordPaused() {
	st.mu.Lock()
	st.paused++
	st.mu.Unlock()
}

func (st *statsCounters) recordDropped() {
	st.mu.Lock()
	st.dropped++
	st.mu.Unlock()
}

func (st *statsCounters) recordHandlerInvocation(id ListenerID) {
	st.mu.Lock()
	st.handlerInvocations[id]++
	st.mu.Unlock()
}

func (st *statsCounters) snapshot() Statistics {
	st.mu.Lock()
	defer st.mu.Unlock()
	var mean time.Duration
	if st.dispatched > 0 {
		mean = st.totalDur / time.Duration(st.dispatched)
	}
	invocations := make(map[ListenerID]int64, len(st.handlerInvocations))
	for id, n := range st.handlerInvocations {
		invocations[id] = n
	}
	return Statistics{
		Dispatched:         st.dispatched,
		Handled:            st.handled,
		Cancelled:          st.cancelled,
		Intercepted:        st.intercepted,
		Paused:             st.paused,
		Dropped:            st.dropped,
		MinDuration:        st.minDur,
		MaxDuration:        st.maxDur,
		MeanDuration:       mean,
		P50Duration:        time.Duration(st.p50.quantile()),
		P99Duration:        time.Duration(st.p99.quantile()),
		HandlerInvocations: invocations,
	}
}
