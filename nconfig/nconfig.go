// Package nconfig implements NLib's minimal layered configuration surface:
// the spec treats configuration management as an external collaborator
// (plain key/value fetch), so this package supplies just that, plus
// fsnotify-driven hot reload. The configwatcher module referenced by the
// GoCodeAlone/modular pack ships no extractable Go source in this
// retrieval, so the fsnotify wiring below follows that library's own
// documented Watcher/Add/Events/Errors/Close API directly rather than
// adapting a concrete reference implementation.
package nconfig

import (
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Layer is a named, ordered source of key/value configuration. Layers with
// a higher Priority override lower-priority layers for the same key.
type Layer struct {
	Name     string
	Priority int
	Values   map[string]string
}

// Store merges Layers by priority (highest wins ties broken by later
// registration) into a single Get(path) lookup surface.
type Store struct {
	mu     sync.RWMutex
	layers []Layer
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// SetLayer registers or replaces the named layer.
func (s *Store) SetLayer(layer Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.layers {
		if l.Name == layer.Name {
			s.layers[i] = layer
			return
		}
	}
	s.layers = append(s.layers, layer)
}

// RemoveLayer deletes the named layer, if present.
func (s *Store) RemoveLayer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.layers {
		if l.Name == name {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			return
		}
	}
}

// Get returns the value for path from the highest-priority layer that
// defines it.
func (s *Store) Get(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := append([]Layer(nil), s.layers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var (
		value string
		found bool
	)
	for _, l := range ordered {
		if v, ok := l.Values[path]; ok {
			value, found = v, true
		}
	}
	return value, found
}

// GetOr returns Get's value, or fallback if path is unset in every layer.
func (s *Store) GetOr(path, fallback string) string {
	if v, ok := s.Get(path); ok {
		return v
	}
	return fallback
}

// Snapshot returns the fully-merged key/value view across every layer.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := append([]Layer(nil), s.layers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	merged := make(map[string]string)
	for _, l := range ordered {
		for k, v := range l.Values {
			merged[k] = v
		}
	}
	return merged
}

// Watcher reloads a file-backed Layer whenever its source file changes on
// disk, calling onReload with the Store after each successful reload.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	layer    string
	path     string
	load     func(path string) (map[string]string, error)
	onReload func(*Store)
	onError  func(error)

	done chan struct{}
}

// NewWatcher starts watching path for changes, reloading it into layer
// (at priority) via load whenever fsnotify reports a write. onReload, if
// non-nil, runs after every successful reload.
func NewWatcher(store *Store, layerName string, priority int, path string, load func(path string) (map[string]string, error), onReload func(*Store)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		store:    store,
		fsw:      fsw,
		layer:    layerName,
		path:     path,
		load:     load,
		onReload: onReload,
		done:     make(chan struct{}),
	}

	if values, err := load(path); err == nil {
		store.SetLayer(Layer{Name: layerName, Priority: priority, Values: values})
	}

	go w.run(priority)
	return w, nil
}

// OnError registers a callback invoked when a reload fails. Must be
// called before the first filesystem event arrives to avoid a race with
// run's background goroutine.
func (w *Watcher) OnError(fn func(error)) { w.onError = fn }

func (w *Watcher) run(priority int) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			values, err := w.load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.store.SetLayer(Layer{Name: w.layer, Priority: priority, Values: values})
			if w.onReload != nil {
				w.onReload(w.store)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops watching and releases the underlying fsnotify.Watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
