package nio

import (
	"container/heap"
	"time"
)

// timerEntry is a scheduled one-shot callback, grounded on
// eventloop/loop.go's timerHeap.
type timerEntry struct {
	when      time.Time
	fn        func()
	cancelled bool
	index     int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerHandle cancels a timer scheduled via Loop.PostDelayedTask.
type TimerHandle struct {
	entry *timerEntry
}

// Cancel prevents the timer from firing, if it has not fired already.
// Safe to call more than once, and safe to call after the timer fired.
func (h TimerHandle) Cancel() {
	if h.entry != nil {
		h.entry.cancelled = true
	}
}

func popReadyTimers(h *timerHeap, now time.Time) []func() {
	var ready []func()
	for h.Len() > 0 {
		top := (*h)[0]
		if top.when.After(now) {
			break
		}
		heap.Pop(h)
		if !top.cancelled {
			ready = append(ready, top.fn)
		}
	}
	return ready
}

func nextDeadline(h timerHeap) (time.Time, bool) {
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[0].when, true
}
