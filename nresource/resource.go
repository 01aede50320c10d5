// Package nresource implements NLib's resource base class and factory
// registry: a dependency-gated load/unload/reload state machine with
// multicast lifecycle delegates, grounded on
// original_source/.../Resources/NResource.h (no teacher equivalent exists
// in eventloop; async load/unload and event notification reuse ntask and
// nscheduler the way the teacher's own async primitives are composed).
// Dependency tracking is backed by ncontainer.Set; the concrete resource
// kinds in concrete.go (DataResource, TextResource, ConfigResource) use
// ncodec for config decoding, giving both ambient collaborators a real
// consumer.
package nresource

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/nlib/ncontainer"
	"github.com/joeycumines/nlib/nerrors"
	"github.com/joeycumines/nlib/nlog"
	"github.com/joeycumines/nlib/nscheduler"
	"github.com/joeycumines/nlib/ntask"
)

// State is a resource's position in its load lifecycle.
type State uint32

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
	Unloading
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Failed:
		return "Failed"
	case Unloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// Priority mirrors ntask.Priority's tiers for resource load scheduling.
type Priority = ntask.Priority

// Loader is implemented by concrete resource kinds; LoadInternal/
// UnloadInternal are the subclass hook the original's NResource exposes
// as pure-virtual methods.
type Loader interface {
	LoadInternal() error
	UnloadInternal()
}

var nextResourceID atomic.Uint64

// Base is the shared base every concrete resource embeds, providing
// state tracking, dependency gating, metadata/tags, and multicast
// lifecycle delegates. Concrete resource kinds embed *Base and supply a
// Loader.
type Base struct {
	id   uint64
	path string
	name string

	mu       sync.RWMutex
	state    State
	priority Priority
	lastErr  error

	loadTime       time.Time
	lastAccessTime time.Time

	refCount atomic.Int32

	deps *ncontainer.Set[*Base]

	metadata map[string]string
	tags     map[string]struct{}

	onLoaded   []func(*Base)
	onUnloaded []func(*Base)
	onFailed   []func(*Base, error)
	onReloaded []func(*Base)
}

// NewBase creates a Base identified by path, in the Unloaded state.
func NewBase(path string) *Base {
	return &Base{
		id:       nextResourceID.Add(1),
		path:     path,
		priority: ntask.PriorityNormal,
		metadata: make(map[string]string),
		tags:     make(map[string]struct{}),
		deps:     ncontainer.NewSet[*Base](compareByID),
	}
}

func (r *Base) ID() uint64          { return r.id }
func (r *Base) Path() string        { return r.path }
func (r *Base) Name() string        { return r.name }
func (r *Base) SetName(name string) { r.name = name }

func (r *Base) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Base) IsLoaded() bool   { return r.State() == Loaded }
func (r *Base) IsLoading() bool  { return r.State() == Loading }
func (r *Base) IsFailed() bool   { return r.State() == Failed }
func (r *Base) IsUnloaded() bool { return r.State() == Unloaded }

func (r *Base) Priority() Priority        { return r.priority }
func (r *Base) SetPriority(p Priority)    { r.priority = p }

func (r *Base) LoadTime() time.Time       { return r.loadTime }
func (r *Base) LastAccessTime() time.Time { return r.lastAccessTime }
func (r *Base) Touch()                    { r.lastAccessTime = time.Now() }

func (r *Base) AddReference() int32    { return r.refCount.Add(1) }
func (r *Base) RemoveReference() int32 { return r.refCount.Add(-1) }
func (r *Base) ReferenceCount() int32  { return r.refCount.Load() }

func compareByID(a, b *Base) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}

// AddDependency registers dep as required to be loaded before this
// resource can load. Adding the same dependency twice is a no-op.
func (r *Base) AddDependency(dep *Base) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Add(dep)
}

// Dependencies returns the resource's registered dependencies, ordered by
// registration id.
func (r *Base) Dependencies() []*Base {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Base(nil), r.deps.Values()...)
}

// DependenciesLoaded reports whether every dependency is in the Loaded
// state.
func (r *Base) DependenciesLoaded() bool {
	for _, d := range r.Dependencies() {
		if !d.IsLoaded() {
			return false
		}
	}
	return true
}

// LastError returns the error from the most recent failed load, if any.
func (r *Base) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// SetMetadata stores a key/value pair alongside the resource.
func (r *Base) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = value
}

// Metadata retrieves a stored value, or fallback if absent.
func (r *Base) Metadata(key, fallback string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.metadata[key]; ok {
		return v
	}
	return fallback
}

// AddTag attaches a tag to the resource.
func (r *Base) AddTag(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[tag] = struct{}{}
}

// HasTag reports whether tag is attached.
func (r *Base) HasTag(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tags[tag]
	return ok
}

// OnLoaded registers a callback fired after a successful Load.
func (r *Base) OnLoaded(fn func(*Base)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoaded = append(r.onLoaded, fn)
}

// OnUnloaded registers a callback fired after Unload completes.
func (r *Base) OnUnloaded(fn func(*Base)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUnloaded = append(r.onUnloaded, fn)
}

// OnLoadFailed registers a callback fired when Load fails.
func (r *Base) OnLoadFailed(fn func(*Base, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailed = append(r.onFailed, fn)
}

// OnReloaded registers a callback fired after a successful Reload.
func (r *Base) OnReloaded(fn func(*Base)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReloaded = append(r.onReloaded, fn)
}

func (r *Base) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// ErrDependenciesNotLoaded is returned by Load when a required dependency
// is not yet in the Loaded state.
var ErrDependenciesNotLoaded = errors.New("nresource: dependencies not loaded")

// runDelegates invokes every delegate in cbs, recovering and logging any
// panic rather than letting a bad subclass callback take down the caller:
// resource delegates are one of the catch-all callback classes whose
// exceptions must be swallowed with a log.
func runDelegates[T any](r *Base, cbs []T, call func(T)) {
	for _, cb := range cbs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					nlog.Error("nresource.delegate", "resource delegate panicked", nerrors.FromRecover(rec), map[string]any{"resource": r.path})
				}
			}()
			call(cb)
		}()
	}
}

// Load transitions the resource through Unloaded -> Loading -> Loaded (or
// Failed), invoking loader's LoadInternal. It is idempotent: if the
// resource is already Loaded, Load bumps its last-access time and reports
// success without re-invoking LoadInternal. If a load is already in
// progress elsewhere (concurrent callers racing the same resource), Load
// logs a warning and reports failure without an error, leaving the
// in-flight load to finish on its own.
func Load(r *Base, loader Loader) (bool, error) {
	switch r.State() {
	case Loaded:
		r.Touch()
		return true, nil
	case Loading:
		nlog.Warn("nresource.load", "load already in progress, skipping", map[string]any{"resource": r.path})
		return false, nil
	}
	if !r.DependenciesLoaded() {
		r.setState(Failed)
		err := ErrDependenciesNotLoaded
		r.mu.Lock()
		r.lastErr = err
		cbs := append([]func(*Base, error)(nil), r.onFailed...)
		r.mu.Unlock()
		runDelegates(r, cbs, func(cb func(*Base, error)) { cb(r, err) })
		return false, err
	}

	r.setState(Loading)
	err := loader.LoadInternal()
	if err != nil {
		r.setState(Failed)
		r.mu.Lock()
		r.lastErr = err
		cbs := append([]func(*Base, error)(nil), r.onFailed...)
		r.mu.Unlock()
		runDelegates(r, cbs, func(cb func(*Base, error)) { cb(r, err) })
		return false, err
	}

	r.mu.Lock()
	r.lastErr = nil
	r.loadTime = time.Now()
	r.mu.Unlock()
	r.setState(Loaded)
	r.Touch()

	r.mu.RLock()
	cbs := append([]func(*Base)(nil), r.onLoaded...)
	r.mu.RUnlock()
	runDelegates(r, cbs, func(cb func(*Base)) { cb(r) })
	return true, nil
}

// Unload transitions Loaded -> Unloading -> Unloaded, invoking loader's
// UnloadInternal. A no-op on an already-unloaded resource.
func Unload(r *Base, loader Loader) {
	if r.State() == Unloaded {
		return
	}
	r.setState(Unloading)
	loader.UnloadInternal()
	r.setState(Unloaded)

	r.mu.RLock()
	cbs := append([]func(*Base)(nil), r.onUnloaded...)
	r.mu.RUnlock()
	runDelegates(r, cbs, func(cb func(*Base)) { cb(r) })
}

// Reload unloads then loads the resource. On success the Load fires
// OnLoaded as usual, and Reload then fires OnReloaded.
func Reload(r *Base, loader Loader) error {
	Unload(r, loader)
	if _, err := Load(r, loader); err != nil {
		return err
	}
	r.mu.RLock()
	cbs := append([]func(*Base)(nil), r.onReloaded...)
	r.mu.RUnlock()
	runDelegates(r, cbs, func(cb func(*Base)) { cb(r) })
	return nil
}

// LoadAsync schedules Load onto sched and returns a Future observing the
// outcome, grounded on the original's TSharedPtr<NAsyncTask<bool>>
// LoadAsync().
func LoadAsync(sched *nscheduler.Scheduler, r *Base, loader Loader) *ntask.Future[bool] {
	t := ntask.New(func(token *ntask.CancellationToken) (bool, error) {
		return Load(r, loader)
	})
	t.Priority = r.priority
	nscheduler.ScheduleTask(sched, t)
	return t.Future()
}

// UnloadAsync schedules Unload onto sched and returns a Future that
// completes once it finishes.
func UnloadAsync(sched *nscheduler.Scheduler, r *Base, loader Loader) *ntask.Future[struct{}] {
	t := ntask.New(func(token *ntask.CancellationToken) (struct{}, error) {
		Unload(r, loader)
		return struct{}{}, nil
	})
	nscheduler.ScheduleTask(sched, t)
	return t.Future()
}
