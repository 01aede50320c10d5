package nio_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/nlib/nio"
	"github.com/stretchr/testify/require"
)

func newRunningLoop(t *testing.T) (*nio.Loop, context.CancelFunc) {
	t.Helper()
	l, err := nio.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	require.Eventually(t, func() bool { return l.State() == nio.StateRunning }, time.Second, time.Millisecond)
	return l, cancel
}

func TestPostTaskRunsOnLoop(t *testing.T) {
	l, cancel := newRunningLoop(t)
	defer cancel()

	done := make(chan struct{})
	require.NoError(t, l.PostTask(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted task never ran")
	}
}

func TestPostDelayedTaskFiresAfterDelay(t *testing.T) {
	l, cancel := newRunningLoop(t)
	defer cancel()

	start := time.Now()
	done := make(chan time.Time, 1)
	l.PostDelayedTask(30*time.Millisecond, func() { done <- time.Now() })

	select {
	case fired := <-done:
		require.GreaterOrEqual(t, fired.Sub(start), 25*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed task never fired")
	}
}

func TestPostDelayedTaskCancel(t *testing.T) {
	l, cancel := newRunningLoop(t)
	defer cancel()

	var ran bool
	var mu sync.Mutex
	h := l.PostDelayedTask(30*time.Millisecond, func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})
	h.Cancel()

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, ran)
}

func TestStopDrainsLoopGracefully(t *testing.T) {
	l, err := nio.New()
	require.NoError(t, err)
	ctx := context.Background()

	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(ctx) }()
	require.Eventually(t, func() bool { return l.State() == nio.StateRunning }, time.Second, time.Millisecond)

	ran := make(chan struct{})
	require.NoError(t, l.PostTask(func() { close(ran) }))
	<-ran

	require.NoError(t, l.Shutdown(context.Background()))
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop never stopped")
	}
	require.Equal(t, nio.StateStopped, l.State())
}

func TestRunOnceProcessesWithoutBlockingForever(t *testing.T) {
	l, err := nio.New()
	require.NoError(t, err)

	var ran atomic32
	require.NoError(t, l.PostTask(func() { ran.set(1) }))
	l.RunOnce(0)
	require.Equal(t, int32(1), ran.get())
}

type atomic32 struct {
	mu sync.Mutex
	v  int32
}

func (a *atomic32) set(v int32) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomic32) get() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
