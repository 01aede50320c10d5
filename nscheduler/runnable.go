package nscheduler

import (
	"sync"
	"sync/atomic"
)

// Runnable is a unit of repeatable work with an explicit lifecycle,
// grounded on the original library's IRunnable/NRunnable contract.
type Runnable interface {
	// Initialize prepares the runnable for execution. Called at most once.
	Initialize() error
	// Run executes the runnable's body. For a one-shot Runnable this runs
	// to completion; for a PeriodicRunnable this blocks until RequestStop.
	Run()
	// RequestStop asks a running Runnable to stop cooperatively.
	RequestStop()
	// Shutdown releases any resources. Called after Run returns.
	Shutdown() error
}

// FunctionRunnable adapts a plain function to the Runnable interface.
type FunctionRunnable struct {
	Fn      func()
	running atomic.Bool
	stop    atomic.Bool
}

func NewFunctionRunnable(fn func()) *FunctionRunnable {
	return &FunctionRunnable{Fn: fn}
}

func (r *FunctionRunnable) Initialize() error { return nil }

func (r *FunctionRunnable) Run() {
	r.running.Store(true)
	defer r.running.Store(false)
	if r.Fn != nil {
		r.Fn()
	}
}

func (r *FunctionRunnable) RequestStop() { r.stop.Store(true) }

func (r *FunctionRunnable) StopRequested() bool { return r.stop.Load() }

func (r *FunctionRunnable) IsRunning() bool { return r.running.Load() }

func (r *FunctionRunnable) Shutdown() error { return nil }

// RunnablePool runs a set of Runnables concurrently, each on its own
// goroutine, tracking completion so callers can wait for all to finish —
// the FIFO/untyped analogue of Scheduler for long-lived runnables rather
// than discrete tasks.
type RunnablePool struct {
	mu   sync.Mutex
	wg   sync.WaitGroup
	runs []Runnable
}

// NewRunnablePool creates an empty pool.
func NewRunnablePool() *RunnablePool {
	return &RunnablePool{}
}

// Add calls r.Initialize on the calling goroutine, returning its error if
// any; otherwise it runs Run and then Shutdown on a new goroutine.
func (p *RunnablePool) Add(r Runnable) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	p.mu.Lock()
	p.runs = append(p.runs, r)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		r.Run()
		_ = r.Shutdown()
	}()
	return nil
}

// StopAll requests every runnable in the pool to stop.
func (p *RunnablePool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.runs {
		r.RequestStop()
	}
}

// Wait blocks until every runnable added to the pool has returned from
// Run and completed Shutdown.
func (p *RunnablePool) Wait() {
	p.wg.Wait()
}
