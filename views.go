package history

// Status is one consistent read of the derived views.
type Status[T any] struct {
	Name       string
	Len        int
	CurIndex   int
	CanUndo    bool
	CanRedo    bool
	Suppressed bool
	Head       Record[T]
}

// Status reads every derived view under one lock.
func (h *History[T]) Status() Status[T] {
	h.mu.Lock()
	status := h.statusLocked()
	h.mu.Unlock()
	status.Head = h.detach(status.Head)
	return status
}

func (h *History[T]) statusLocked() Status[T] {
	return Status[T]{
		Name:       h.name,
		Len:        h.store.len(),
		CurIndex:   h.store.cur,
		CanUndo:    h.store.canUndo(),
		CanRedo:    h.store.canRedo(),
		Suppressed: h.writeBacks > 0,
		Head:       h.store.head(),
	}
}

// Len returns the number of records.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.len()
}

// CurIndex returns the position of the head record.
func (h *History[T]) CurIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.cur
}

func (h *History[T]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.canUndo()
}

func (h *History[T]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.canRedo()
}

// CurRecord returns the head record. Its value is passed through the
// configured cloner.
func (h *History[T]) CurRecord() Record[T] {
	h.mu.Lock()
	rec := h.store.head()
	h.mu.Unlock()
	return h.detach(rec)
}

// RecordAt returns the record at index i.
func (h *History[T]) RecordAt(i int) (Record[T], bool) {
	h.mu.Lock()
	rec, ok := h.store.recordAt(i)
	h.mu.Unlock()
	if !ok {
		return rec, false
	}
	return h.detach(rec), true
}

// Records returns a copy of the record sequence, oldest first.
func (h *History[T]) Records() []Record[T] {
	h.mu.Lock()
	records := h.store.snapshot()
	h.mu.Unlock()
	for i := range records {
		records[i] = h.detach(records[i])
	}
	return records
}

// Values returns the recorded values, oldest first.
func (h *History[T]) Values() []T {
	h.mu.Lock()
	records := h.store.snapshot()
	h.mu.Unlock()
	out := make([]T, 0, len(records))
	for _, rec := range records {
		out = append(out, h.clone(rec.Value))
	}
	return out
}

func (h *History[T]) detach(rec Record[T]) Record[T] {
	rec.Value = h.clone(rec.Value)
	return rec
}

// Triggers returns the watched triggers in registration order.
func (h *History[T]) Triggers() []TriggerRef {
	return h.registry.refs()
}

// Suppressed reports whether a navigation write-back is still propagating.
func (h *History[T]) Suppressed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeBacks > 0
}

// ActualState returns the head value while a navigation write-back is
// propagating and the live composite otherwise.
func (h *History[T]) ActualState() T {
	h.mu.Lock()
	if h.writeBacks > 0 {
		value := h.store.head().Value
		h.mu.Unlock()
		return h.clone(value)
	}
	h.mu.Unlock()
	return h.projection.Value()
}
