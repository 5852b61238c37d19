package history

import (
	"sync"

	"github.com/goliatone/go-history/pkg/reactive"
	"github.com/google/uuid"
)

type registration[T any] struct {
	ref      TriggerRef
	strategy Strategy[T]
	stop     func()
}

// triggerRegistry maps trigger identities to their strategy and keeps the
// subscription handle needed to detach the trigger again.
type triggerRegistry[T any] struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*registration[T]
	order   []uuid.UUID
}

func newTriggerRegistry[T any]() *triggerRegistry[T] {
	return &triggerRegistry[T]{entries: make(map[uuid.UUID]*registration[T])}
}

// register stores strategy for trigger. When the trigger is already present
// only its strategy is swapped and subscribe is not called again.
func (r *triggerRegistry[T]) register(trigger *reactive.Trigger, strategy Strategy[T], subscribe func() func()) {
	ref := RefOf(trigger)
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[ref.ID]; ok {
		entry.strategy = strategy
		return
	}
	r.entries[ref.ID] = &registration[T]{
		ref:      ref,
		strategy: strategy,
		stop:     subscribe(),
	}
	r.order = append(r.order, ref.ID)
}

func (r *triggerRegistry[T]) lookup(id uuid.UUID) (Strategy[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Strategy[T]{}, false
	}
	return entry.strategy, true
}

func (r *triggerRegistry[T]) has(id uuid.UUID) bool {
	_, ok := r.lookup(id)
	return ok
}

func (r *triggerRegistry[T]) unregister(id uuid.UUID) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		for i, candidate := range r.order {
			if candidate == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if ok && entry.stop != nil {
		entry.stop()
	}
}

// refs returns the registered triggers in registration order.
func (r *triggerRegistry[T]) refs() []TriggerRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TriggerRef, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].ref)
	}
	return out
}

func (r *triggerRegistry[T]) clear() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[uuid.UUID]*registration[T])
	r.order = nil
	r.mu.Unlock()
	for _, entry := range entries {
		if entry.stop != nil {
			entry.stop()
		}
	}
}
