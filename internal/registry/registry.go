// Package registry provides the build-lifetime record of the message paths
// each file declares in its translation blocks.
package registry

import (
	"slices"
	"sync"
)

// Registry maps file identifiers to the ordered set of leaf paths declared
// by that file. Sets only grow. A Registry is safe for concurrent use.
type Registry struct {
	lock  sync.RWMutex
	paths map[string][]string
	known map[string]map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		paths: make(map[string][]string),
		known: make(map[string]map[string]struct{}),
	}
}

// Paths returns a copy of the paths registered for id in registration order.
// Returns nil for unknown identifiers.
func (r *Registry) Paths(id string) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.Clone(r.paths[id])
}

// Has reports whether path is registered for id.
func (r *Registry) Has(id, path string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.known[id][path]
	return ok
}

// AddPaths merges paths into the set of id.
// Previously registered paths keep their position, new ones are appended
// in the given order and duplicates are dropped.
// Returns the number of paths that were actually added.
func (r *Registry) AddPaths(id string, paths []string) (added int) {
	r.lock.Lock()
	defer r.lock.Unlock()

	set := r.known[id]
	if set == nil {
		set = make(map[string]struct{}, len(paths))
		r.known[id] = set
	}
	for _, p := range paths {
		if _, ok := set[p]; ok {
			continue
		}
		set[p] = struct{}{}
		r.paths[id] = append(r.paths[id], p)
		added++
	}
	return added
}

// IDs returns all identifiers with at least one registration, sorted.
func (r *Registry) IDs() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ids := make([]string, 0, len(r.known))
	for id := range r.known {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the total number of registered paths across all identifiers.
func (r *Registry) Len() (n int) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, p := range r.paths {
		n += len(p)
	}
	return n
}
