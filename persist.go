package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-history/internal/hydrate"
	"github.com/goliatone/go-history/pkg/activity"
	"github.com/goliatone/go-history/pkg/state"
)

// Snapshot is the persistable form of a history. Triggers and Payloads are
// omitted when serialization is disabled.
type Snapshot[T any] struct {
	Name     string       `json:"name,omitempty"`
	Values   []T          `json:"values"`
	CurIndex int          `json:"cur_index"`
	Triggers []TriggerRef `json:"triggers,omitempty"`
	Payloads []any        `json:"payloads,omitempty"`
}

// Validate checks the snapshot describes a reachable history.
func (s Snapshot[T]) Validate() error {
	n := len(s.Values)
	if n == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidSnapshot)
	}
	if s.CurIndex < 0 || s.CurIndex >= n {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidSnapshot, s.CurIndex, n)
	}
	if len(s.Triggers) != 0 && len(s.Triggers) != n {
		return fmt.Errorf("%w: %d triggers for %d values", ErrInvalidSnapshot, len(s.Triggers), n)
	}
	if len(s.Payloads) != 0 && len(s.Payloads) != n {
		return fmt.Errorf("%w: %d payloads for %d values", ErrInvalidSnapshot, len(s.Payloads), n)
	}
	return nil
}

// Snapshot captures the record sequence and position.
func (h *History[T]) Snapshot() Snapshot[T] {
	h.mu.Lock()
	records := h.store.snapshot()
	cur := h.store.cur
	h.mu.Unlock()

	snap := Snapshot[T]{
		Name:     h.name,
		Values:   make([]T, len(records)),
		CurIndex: cur,
	}
	if h.serialize {
		snap.Triggers = make([]TriggerRef, len(records))
		snap.Payloads = make([]any, len(records))
	}
	for i, rec := range records {
		snap.Values[i] = rec.Value
		if h.serialize {
			snap.Triggers[i] = rec.Trigger
			snap.Payloads[i] = rec.Payload
		}
	}
	return snap
}

// Hydrate replaces the history with snap and writes the head back into the
// source cells with capture suppressed. Records beyond the capacity are
// evicted oldest first; missing triggers become UnknownTrigger.
func (h *History[T]) Hydrate(snap Snapshot[T]) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	n := len(snap.Values)
	records := make([]Record[T], n)
	for i, value := range snap.Values {
		trigger := UnknownTrigger
		if len(snap.Triggers) == n {
			trigger = snap.Triggers[i]
		}
		var payload any
		if len(snap.Payloads) == n {
			payload = snap.Payloads[i]
		}
		records[i] = newRecord(h.clone(value), trigger, payload)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	evicted := h.store.load(records, snap.CurIndex)
	h.writeBacks++
	head := h.store.head()
	h.mu.Unlock()

	h.logger.Debug("history restored", "length", n-evicted, "evicted", evicted)
	err := h.writeBack(head.Value)

	status := h.Status()
	input := h.eventInput(head, status)
	input.Discarded = evicted
	h.emit(activity.BuildRestoredEvent(input))
	h.notify(status)
	return err
}

// SnapshotMigration rewrites a raw snapshot document before it is decoded.
// Returning nil keeps the document unchanged.
type SnapshotMigration func(doc map[string]any) (map[string]any, error)

// DecodeSnapshot decodes a JSON snapshot document, applying migrations in
// order and validating the result.
func DecodeSnapshot[T any](data []byte, migrations ...SnapshotMigration) (Snapshot[T], error) {
	opts := make([]hydrate.DecoderOption[Snapshot[T]], 0, len(migrations)+1)
	for _, migrate := range migrations {
		if migrate == nil {
			continue
		}
		opts = append(opts, hydrate.WithPreHook[Snapshot[T]](func(_ hydrate.Source, doc map[string]any) (map[string]any, error) {
			return migrate(doc)
		}))
	}
	opts = append(opts, hydrate.WithPostHook(func(_ hydrate.Source, snap *Snapshot[T]) error {
		return snap.Validate()
	}))

	snap, err := hydrate.NewDecoder(opts...).DecodeBytes(hydrate.Source{Name: "snapshot"}, data)
	if err != nil {
		return Snapshot[T]{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// HydrateJSON decodes data with DecodeSnapshot and hydrates the history.
func (h *History[T]) HydrateJSON(data []byte, migrations ...SnapshotMigration) error {
	snap, err := DecodeSnapshot[T](data, migrations...)
	if err != nil {
		return err
	}
	return h.Hydrate(snap)
}

// Persist saves a snapshot under ref. meta carries the expected ETag for
// optimistic concurrency.
func (h *History[T]) Persist(ctx context.Context, store state.Store[Snapshot[T]], ref state.Ref, meta state.Meta) (state.Meta, error) {
	if store == nil {
		return state.Meta{}, errors.New("history: store is nil")
	}
	saved, err := store.Save(ctx, ref, h.Snapshot(), meta)
	if err != nil {
		return saved, fmt.Errorf("history: persist %s/%s: %w", ref.Domain, ref.ID, err)
	}
	return saved, nil
}

// Restore loads the snapshot stored under ref and hydrates the history from
// it. ok is false when nothing is stored.
func (h *History[T]) Restore(ctx context.Context, store state.Store[Snapshot[T]], ref state.Ref) (meta state.Meta, ok bool, err error) {
	if store == nil {
		return state.Meta{}, false, errors.New("history: store is nil")
	}
	snap, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return meta, false, fmt.Errorf("history: restore %s/%s: %w", ref.Domain, ref.ID, err)
	}
	if !ok {
		return meta, false, nil
	}
	if err := h.Hydrate(snap); err != nil {
		return meta, true, err
	}
	return meta, true, nil
}
