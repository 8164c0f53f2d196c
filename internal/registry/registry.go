package registry

import (
	"sync"

	"classd/pkg/types"
)

// State represents the lifecycle state of a registered model.
type State string

const (
	StateRegistered State = "registered"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateActive     State = "active"
	StateEvicted    State = "evicted"
	StateLoadFailed State = "load_failed"
)

// Registry is the catalog of known model ids and their static descriptors.
// Descriptors are immutable after Register; only the lifecycle state moves.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

type entry struct {
	desc  types.ModelDescriptor
	state State
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a descriptor to the catalog.
func (r *Registry) Register(d types.ModelDescriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[d.ID]; ok {
		return ErrDuplicateID(d.ID)
	}
	r.entries[d.ID] = &entry{desc: d, state: StateRegistered}
	r.order = append(r.order, d.ID)
	return nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (types.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return types.ModelDescriptor{}, ErrNotFound(id)
	}
	return e.desc, nil
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []types.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].desc)
	}
	return out
}

// StateOf returns the lifecycle state for id, or "" when unknown.
func (r *Registry) StateOf(id string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.state
	}
	return ""
}

// SetState moves a registered model to state s. Unknown ids are ignored;
// the holder only reports states for ids it resolved through Get.
func (r *Registry) SetState(id string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.state = s
	}
}

// Len reports the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
