package scraper

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
)

// Registry holds the known site adapters
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Adapter)}
}

// Register adds a. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[a.Name()]; ok {
		return fmt.Errorf("adapter %q already registered", a.Name())
	}
	r.byName[a.Name()] = a
	r.adapters = append(r.adapters, a)
	return nil
}

// Lookup returns the first registered adapter that matches u
func (r *Registry) Lookup(u *url.URL) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.adapters {
		if a.Match(u) {
			return a, true
		}
	}
	return nil, false
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the registered adapter names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
