package history

import "github.com/goliatone/go-history/pkg/activity"

// Undo moves to the previous record and writes it back into the source
// cells. At the oldest record it does nothing. The error reports a failed
// write-back or a strategy that failed while the write-back propagated.
func (h *History[T]) Undo() error {
	return h.navigate(-1)
}

// Redo moves to the next record and writes it back into the source cells. At
// the newest record it does nothing.
func (h *History[T]) Redo() error {
	return h.navigate(1)
}

func (h *History[T]) navigate(step int) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	target := h.store.cur + step
	if target < 0 || target >= h.store.len() {
		h.mu.Unlock()
		return nil
	}
	h.store.cur = target
	h.writeBacks++
	rec := h.store.head()
	h.mu.Unlock()

	h.logger.Debug("navigating", "step", step, "index", target, "record_id", rec.ID)
	err := h.writeBack(rec.Value)

	status := h.Status()
	input := h.eventInput(rec, status)
	input.Index = target
	if step < 0 {
		h.emit(activity.BuildUndoneEvent(input))
	} else {
		h.emit(activity.BuildRedoneEvent(input))
	}
	h.notify(status)
	return err
}

// writeBack applies value to the source cells and re-arms capture once the
// resulting notifications have drained. The caller has already raised
// writeBacks.
func (h *History[T]) writeBack(value T) error {
	err := h.projection.Apply(h.clone(value))
	h.graph.After(h.rearm)
	if err != nil {
		h.logger.Debug("write-back failed", "error", err)
	}
	return err
}

func (h *History[T]) rearm() {
	h.mu.Lock()
	if h.writeBacks > 0 {
		h.writeBacks--
	}
	h.mu.Unlock()
}
