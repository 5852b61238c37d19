package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goliatone/go-history/pkg/activity"
	"github.com/goliatone/go-history/pkg/reactive"
	"github.com/google/uuid"
)

// History records snapshots of a projection whenever its clock fires and
// navigates them with Undo and Redo.
type History[T any] struct {
	id         uuid.UUID
	name       string
	projection Projection[T]
	graph      *reactive.Graph
	cloner     func(T) T
	serialize  bool
	logger     *slog.Logger
	emitter    *activity.Emitter
	changed    *reactive.Trigger
	registry   *triggerRegistry[T]
	// cellClock holds the projection triggers used as the default clock. At
	// most one of their pushes is recorded per propagation pass.
	cellClock map[uuid.UUID]bool

	mu    sync.Mutex
	store *recordStore[T]
	// writeBacks counts navigation write-backs whose notifications have not
	// drained yet. Capture by push-always triggers is suppressed while it is
	// non-zero.
	writeBacks  int
	capturePass uint64
	closed      bool
}

// New creates a history over projection holding one record with the current
// composite value.
func New[T any](projection Projection[T], opts ...Option[T]) (*History[T], error) {
	if projection == nil {
		return nil, ErrProjectionRequired
	}
	cfg := applyOptions(opts)
	if cfg.maxLengthSet && cfg.maxLength <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxLength, cfg.maxLength)
	}

	graph := projection.Graph()
	clock := cfg.clock
	if !cfg.clockSet {
		clock = projection.Triggers()
	}
	watched := make(map[uuid.UUID]bool, len(clock))
	for i, trigger := range clock {
		if trigger == nil {
			return nil, fmt.Errorf("history: clock trigger %d is nil", i)
		}
		if trigger.Graph() != graph {
			return nil, fmt.Errorf("%w: trigger %q", ErrMixedGraphs, trigger.Name())
		}
		watched[trigger.ID()] = true
	}
	for id, binding := range cfg.strategies {
		if !watched[id] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, binding.trigger.Name())
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &History[T]{
		id:         uuid.New(),
		name:       cfg.name,
		projection: projection,
		graph:      graph,
		cloner:     cfg.cloner,
		serialize:  cfg.serialize,
		emitter:    activity.NewEmitter(cfg.activityHooks, cfg.activity),
		registry:   newTriggerRegistry[T](),
	}
	h.logger = logger.With("history", h.label(), "history_id", h.id.String())
	h.changed = reactive.NewTrigger(graph, h.label()+".changed")
	h.store = newRecordStore(newRecord(h.clone(projection.Value()), InitialTrigger, nil), cfg.maxLength)

	if !cfg.clockSet {
		h.cellClock = make(map[uuid.UUID]bool, len(clock))
		for _, trigger := range clock {
			h.cellClock[trigger.ID()] = true
		}
	}
	for _, trigger := range clock {
		strategy := PushAlways[T]()
		if binding, ok := cfg.strategies[trigger.ID()]; ok {
			strategy = binding.strategy
		}
		h.attach(trigger, strategy)
	}
	return h, nil
}

// ID returns the instance identifier stamped on activity events.
func (h *History[T]) ID() string {
	return h.id.String()
}

// Name returns the configured name.
func (h *History[T]) Name() string {
	return h.name
}

// Changed fires a Status after every mutation of the history.
func (h *History[T]) Changed() *reactive.Trigger {
	return h.changed
}

// Register adds trigger to the clock with strategy (push-always when
// omitted). Registering a watched trigger again swaps its strategy. The
// returned function removes the trigger from the clock.
func (h *History[T]) Register(trigger *reactive.Trigger, strategy ...Strategy[T]) (func(), error) {
	if trigger == nil {
		return nil, fmt.Errorf("history: trigger is nil")
	}
	if trigger.Graph() != h.graph {
		return nil, fmt.Errorf("%w: trigger %q", ErrMixedGraphs, trigger.Name())
	}
	chosen := PushAlways[T]()
	if len(strategy) > 0 {
		chosen = strategy[0]
	}
	id := trigger.ID()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.registry.has(id) {
		h.logger.Debug("strategy swapped", "trigger", RefOf(trigger).String(), "strategy", chosen.Kind().String())
	}
	h.attach(trigger, chosen)
	return func() { h.registry.unregister(id) }, nil
}

// Close detaches the history from every trigger. Later firings are ignored
// and navigation returns ErrClosed.
func (h *History[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()
	h.registry.clear()
	h.logger.Debug("history closed")
}

// Push appends value as a new record tagged with ManualTrigger.
func (h *History[T]) Push(value T) {
	h.push(h.clone(value), ManualTrigger, nil)
}

// Replace overwrites the head with value tagged with ManualTrigger.
func (h *History[T]) Replace(value T) {
	h.replace(h.clone(value), ManualTrigger, nil)
}

// Clear collapses the history to one record holding the current composite
// value.
func (h *History[T]) Clear() {
	rec := newRecord(h.clone(h.projection.Value()), InitialTrigger, nil)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	dropped := h.store.reset(rec)
	status := h.statusLocked()
	h.mu.Unlock()

	h.logger.Debug("history cleared", "dropped", dropped)
	input := h.eventInput(rec, status)
	input.Discarded = dropped
	h.emit(activity.BuildClearedEvent(input))
	h.notify(status)
}

func (h *History[T]) attach(trigger *reactive.Trigger, strategy Strategy[T]) {
	ref := RefOf(trigger)
	h.registry.register(trigger, strategy, func() func() {
		return trigger.Sample(func(payload any) error {
			return h.handleFiring(ref, payload)
		})
	})
	h.logger.Debug("trigger registered", "trigger", ref.String(), "strategy", strategy.Kind().String())
}

// handleFiring runs the capture protocol for one firing. Samplers run after
// every watcher of the firing, so the projection already reflects it.
func (h *History[T]) handleFiring(ref TriggerRef, payload any) error {
	strategy, ok := h.registry.lookup(ref.ID)
	if !ok {
		return nil
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	head := h.store.head()
	suppressed := h.writeBacks > 0
	h.mu.Unlock()

	decision, err := evaluate(strategy, CheckInput[T]{
		Trigger:    ref,
		Payload:    payload,
		CurTrigger: head.Trigger,
		CurPayload: head.Payload,
		CurRecord:  head.Value,
	}, suppressed)
	if err != nil {
		h.logger.Debug("strategy failed", "trigger", ref.String(), "error", err)
		return fmt.Errorf("history: strategy for trigger %q: %w", ref.String(), err)
	}
	h.logger.Debug("capture decision",
		"trigger", ref.String(),
		"strategy", strategy.Kind().String(),
		"decision", decision.String(),
		"suppressed", suppressed,
	)

	if decision == DecisionPush && h.cellClock[ref.ID] && !h.claimPass() {
		h.logger.Debug("capture coalesced", "trigger", ref.String(), "pass", h.graph.Pass())
		return nil
	}

	switch decision {
	case DecisionPush:
		h.push(h.clone(h.projection.Value()), ref, payload)
	case DecisionReplace:
		h.replace(h.clone(h.projection.Value()), ref, payload)
	}
	return nil
}

// claimPass reports whether no cell-clock push has been recorded yet in the
// current propagation pass and marks the pass as captured.
func (h *History[T]) claimPass() bool {
	pass := h.graph.Pass()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.capturePass == pass {
		return false
	}
	h.capturePass = pass
	return true
}

func (h *History[T]) push(value T, trigger TriggerRef, payload any) {
	rec := newRecord(value, trigger, payload)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	result := h.store.push(rec)
	status := h.statusLocked()
	h.mu.Unlock()

	h.logger.Debug("record pushed",
		"trigger", trigger.String(),
		"index", status.CurIndex,
		"length", status.Len,
		"discarded", result.discarded,
	)
	input := h.eventInput(rec, status)
	input.Discarded = result.discarded
	h.emit(activity.BuildPushedEvent(input))
	if result.evicted != nil {
		h.logger.Debug("record evicted", "record_id", result.evicted.ID)
		evicted := h.eventInput(*result.evicted, status)
		evicted.Index = 0
		h.emit(activity.BuildEvictedEvent(evicted))
	}
	h.notify(status)
}

func (h *History[T]) replace(value T, trigger TriggerRef, payload any) {
	rec := newRecord(value, trigger, payload)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	previous := h.store.replace(rec)
	status := h.statusLocked()
	h.mu.Unlock()

	h.logger.Debug("record replaced",
		"trigger", trigger.String(),
		"index", status.CurIndex,
		"previous_trigger", previous.Trigger.String(),
	)
	input := h.eventInput(rec, status)
	input.Metadata = map[string]any{"previous_record_id": previous.ID}
	h.emit(activity.BuildReplacedEvent(input))
	h.notify(status)
}

func (h *History[T]) clone(value T) T {
	if h.cloner == nil {
		return value
	}
	return h.cloner(value)
}

func (h *History[T]) label() string {
	if h.name != "" {
		return h.name
	}
	return "history"
}

func (h *History[T]) eventInput(rec Record[T], status Status[T]) activity.HistoryEventInput {
	return activity.HistoryEventInput{
		HistoryID:   h.id.String(),
		HistoryName: h.name,
		RecordID:    rec.ID,
		Trigger:     rec.Trigger.String(),
		Index:       status.CurIndex,
		Length:      status.Len,
	}
}

func (h *History[T]) emit(event activity.Event) {
	if !h.emitter.Enabled() {
		return
	}
	if err := h.emitter.Emit(context.Background(), event); err != nil {
		h.logger.Warn("activity hook failed", "verb", event.Verb, "error", err)
	}
}

// notify fires Changed. When called from inside a propagation pass the
// handlers run later in that pass and their errors surface to whoever drives
// it.
func (h *History[T]) notify(status Status[T]) {
	status.Head = h.detach(status.Head)
	if err := h.changed.Fire(status); err != nil {
		h.logger.Warn("change handler failed", "error", err)
	}
}
