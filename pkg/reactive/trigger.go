package reactive

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Handler receives the payload of a trigger firing.
type Handler func(payload any) error

// Trigger is a discrete event stream with a stable identity.
type Trigger struct {
	id    uuid.UUID
	name  string
	graph *Graph

	mu       sync.Mutex
	nextID   int
	watchers []subscription
	samplers []subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewTrigger creates a trigger bound to g. A nil graph gets a private one.
func NewTrigger(g *Graph, name string) *Trigger {
	if g == nil {
		g = NewGraph()
	}
	name = strings.TrimSpace(name)
	id := uuid.New()
	if name == "" {
		name = id.String()
	}
	return &Trigger{id: id, name: name, graph: g}
}

// ID returns the identity of the trigger.
func (t *Trigger) ID() uuid.UUID {
	return t.id
}

// Name returns the label the trigger was created with.
func (t *Trigger) Name() string {
	return t.name
}

// Graph returns the graph notifications are scheduled on.
func (t *Trigger) Graph() *Graph {
	return t.graph
}

// Fire schedules delivery of payload to every handler. When called outside a
// batch the notification is delivered before Fire returns and the joined
// handler errors are returned; inside a batch delivery happens when the batch
// drains and errors surface from the outermost call.
func (t *Trigger) Fire(payload any) error {
	return t.graph.schedule(func() error {
		return t.deliver(payload)
	})
}

// Watch registers fn to run on every firing. The returned func unregisters it.
func (t *Trigger) Watch(fn Handler) func() {
	return t.subscribe(&t.watchers, fn)
}

// Sample registers fn to run after all Watch handlers of the same firing.
func (t *Trigger) Sample(fn Handler) func() {
	return t.subscribe(&t.samplers, fn)
}

func (t *Trigger) subscribe(list *[]subscription, fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	*list = append(*list, subscription{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			*list = removeSubscription(*list, id)
		})
	}
}

func (t *Trigger) deliver(payload any) error {
	t.mu.Lock()
	watchers := append([]subscription(nil), t.watchers...)
	samplers := append([]subscription(nil), t.samplers...)
	t.mu.Unlock()

	var errs []error
	for _, sub := range watchers {
		if err := sub.fn(payload); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sub := range samplers {
		if err := sub.fn(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func removeSubscription(list []subscription, id int) []subscription {
	out := list[:0:0]
	for _, sub := range list {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
