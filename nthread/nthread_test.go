package nthread_test

import (
	"testing"
	"time"

	"github.com/joeycumines/nlib/nthread"
	"github.com/stretchr/testify/require"
)

func TestThreadStartJoin(t *testing.T) {
	var ran bool
	th := nthread.New("worker", func(t *nthread.Thread) { ran = true })
	th.Start()
	th.Join()
	require.True(t, ran)
}

func TestThreadTryJoin(t *testing.T) {
	release := make(chan struct{})
	th := nthread.New("slow", func(t *nthread.Thread) { <-release })
	th.Start()
	require.False(t, th.TryJoin())
	close(release)
	th.Join()
	require.True(t, th.TryJoin())
}

func TestThreadInterruptCooperative(t *testing.T) {
	done := make(chan struct{})
	th := nthread.New("pollable", func(t *nthread.Thread) {
		for !t.IsInterrupted() {
			time.Sleep(time.Millisecond)
		}
		close(done)
	})
	th.Start()
	th.Interrupt()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("thread never observed interrupt")
	}
}

func TestThreadLocalScopedByThread(t *testing.T) {
	tl := nthread.NewThreadLocal[int]()
	a := nthread.New("a", func(t *nthread.Thread) {})
	b := nthread.New("b", func(t *nthread.Thread) {})

	tl.Set(a, 1)
	tl.Set(b, 2)

	va, ok := tl.Get(a)
	require.True(t, ok)
	require.Equal(t, 1, va)

	vb, ok := tl.Get(b)
	require.True(t, ok)
	require.Equal(t, 2, vb)

	tl.Delete(a)
	_, ok = tl.Get(a)
	require.False(t, ok)
}

func TestHardwareConcurrencyPositive(t *testing.T) {
	require.Greater(t, nthread.HardwareConcurrency(), 0)
}
