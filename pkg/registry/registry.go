// Package registry holds the compiled Snapshot for every project this
// instance currently serves, and arbitrates concurrent access to them.
package registry

import (
	"sync"

	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// Registry is a concurrent map of ProjectID to *snapshot.Snapshot. Get
// never blocks on a write to any project: the map itself is guarded by a
// lightweight RWMutex for the pointer swap, while Mutate additionally
// takes a per-project lock so that writers of two different projects
// never block each other.
type Registry struct {
	mu         sync.RWMutex
	projects   map[types.ProjectID]*snapshot.Snapshot
	writeLocks sync.Map // types.ProjectID -> *sync.Mutex
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{projects: map[types.ProjectID]*snapshot.Snapshot{}}
}

// Get returns the current snapshot for id, or nil if the registry holds
// nothing for it.
func (r *Registry) Get(id types.ProjectID) *snapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projects[id]
}

// Projects returns every project id the registry currently holds.
func (r *Registry) Projects() []types.ProjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ProjectID, 0, len(r.projects))
	for id := range r.projects {
		out = append(out, id)
	}
	return out
}

func (r *Registry) writeLock(id types.ProjectID) *sync.Mutex {
	v, _ := r.writeLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Put replaces the entry for the snapshot's project with snap in one
// atomic step, visible to readers only once the swap completes: a
// concurrent Get for that project id sees either the old snapshot in
// full or the new one in full, never a mix.
func (r *Registry) Put(snap *snapshot.Snapshot) {
	lock := r.writeLock(snap.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	r.projects[snap.ProjectID] = snap
	r.mu.Unlock()
}

// Remove drops the entry for id.
func (r *Registry) Remove(id types.ProjectID) {
	lock := r.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	delete(r.projects, id)
	r.mu.Unlock()
	r.writeLocks.Delete(id)
}

// Mutate recompiles the snapshot for id under that project's write lock,
// so two concurrent writes to the same project serialize but writes to
// different projects run in parallel. fn receives the current snapshot
// (nil if none exists yet), mutates and recompiles it, and returns the
// replacement to install; if fn returns an error the registry entry is
// left unchanged.
func (r *Registry) Mutate(id types.ProjectID, fn func(current *snapshot.Snapshot) (*snapshot.Snapshot, error)) error {
	lock := r.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.projects[id]
	r.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.projects[id] = next
	r.mu.Unlock()
	return nil
}
