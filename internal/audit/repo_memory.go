package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in process, indexed by entity. Tests and local runs only.
type MemoryRepo struct {
	mu       sync.RWMutex
	events   []Event
	byEntity map[entityKey][]int
}

type entityKey struct{ typ, id string }

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEntity: make(map[entityKey][]int)}
}

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := entityKey{e.EntityType, e.EntityID}
	r.byEntity[k] = append(r.byEntity[k], len(r.events))
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) ListForEntity(_ context.Context, entityType, entityID string) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.byEntity[entityKey{entityType, entityID}]
	out := make([]Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.events[i])
	}
	return out, nil
}

// Events returns every event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}
