package nresource

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Factory creates resources for paths it recognizes, grounded on the
// original's IResourceFactory interface (supplemented feature: the
// distilled spec omits the factory registry entirely).
type Factory interface {
	// CreateResource builds a new resource wired to path.
	CreateResource(path string) (*Base, Loader, error)
	// Extensions lists the lower-cased file extensions this factory
	// handles, e.g. ".json".
	Extensions() []string
	// Name identifies the factory for diagnostics.
	Name() string
	// Priority breaks ties when multiple factories claim the same
	// extension; higher wins.
	Priority() int
}

// Registry maps file extensions to the Factory responsible for them,
// grounded on the original's IResourceFactory registration pattern.
type Registry struct {
	mu        sync.RWMutex
	factories map[string][]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string][]Factory)}
}

// Register adds f under every extension it declares, highest-Priority
// factory first when more than one factory claims the same extension.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range f.Extensions() {
		ext = strings.ToLower(ext)
		list := append(r.factories[ext], f)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.factories[ext] = list
	}
}

// ErrNoFactory is returned by Create when no registered factory claims
// the resource path's extension.
type ErrNoFactory struct {
	Path string
}

func (e *ErrNoFactory) Error() string {
	return fmt.Sprintf("nresource: no factory registered for %q", e.Path)
}

// Create builds the resource at path using the highest-priority factory
// registered for its extension.
func (r *Registry) Create(path string) (*Base, Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	candidates := r.factories[ext]
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, nil, &ErrNoFactory{Path: path}
	}
	return candidates[0].CreateResource(path)
}

// Factories returns the factories registered for ext, highest-priority
// first.
func (r *Registry) Factories(ext string) []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Factory(nil), r.factories[strings.ToLower(ext)]...)
}
