package history

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-history/pkg/reactive"
)

// Projection combines a fixed set of cells into one composite value and can
// write a composite back into those cells.
type Projection[T any] interface {
	// Value recomputes the composite from the latest value of every cell.
	Value() T
	// Apply writes value into the cells as one batch.
	Apply(value T) error
	// Triggers returns the change trigger of every cell, in shape order.
	Triggers() []*reactive.Trigger
	// Graph returns the graph shared by the cells.
	Graph() *reactive.Graph
}

// FieldProjection exposes named cells as a map[string]any composite.
type FieldProjection struct {
	graph   *reactive.Graph
	keys    []string
	sources map[string]reactive.Source
}

// Fields builds a named projection. Keys are kept sorted so Triggers is
// deterministic.
func Fields(sources map[string]reactive.Source) (*FieldProjection, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	keys := make([]string, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	copied := make(map[string]reactive.Source, len(sources))
	var graph *reactive.Graph
	for _, key := range keys {
		source := sources[key]
		if source == nil {
			return nil, fmt.Errorf("history: source %q is nil", key)
		}
		g := source.Changed().Graph()
		if graph == nil {
			graph = g
		} else if g != graph {
			return nil, fmt.Errorf("%w: source %q", ErrMixedGraphs, key)
		}
		copied[key] = source
	}
	return &FieldProjection{graph: graph, keys: keys, sources: copied}, nil
}

// Value implements Projection.
func (p *FieldProjection) Value() map[string]any {
	out := make(map[string]any, len(p.keys))
	for _, key := range p.keys {
		out[key] = p.sources[key].Load()
	}
	return out
}

// Apply implements Projection. value must carry exactly the projection keys.
func (p *FieldProjection) Apply(value map[string]any) error {
	if len(value) != len(p.keys) {
		return fmt.Errorf("%w: expected %d fields, got %d", ErrShapeMismatch, len(p.keys), len(value))
	}
	for _, key := range p.keys {
		if _, ok := value[key]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrShapeMismatch, key)
		}
	}
	return p.graph.Batch(func() error {
		for _, key := range p.keys {
			if err := p.sources[key].Store(value[key]); err != nil {
				return fmt.Errorf("history: write back %q: %w", key, err)
			}
		}
		return nil
	})
}

// Triggers implements Projection.
func (p *FieldProjection) Triggers() []*reactive.Trigger {
	out := make([]*reactive.Trigger, 0, len(p.keys))
	for _, key := range p.keys {
		out = append(out, p.sources[key].Changed())
	}
	return out
}

// Graph implements Projection.
func (p *FieldProjection) Graph() *reactive.Graph {
	return p.graph
}

// Keys returns the field names in shape order.
func (p *FieldProjection) Keys() []string {
	return append([]string(nil), p.keys...)
}

// SlotProjection exposes indexed cells as a []any composite.
type SlotProjection struct {
	graph   *reactive.Graph
	sources []reactive.Source
}

// Slots builds an indexed projection.
func Slots(sources ...reactive.Source) (*SlotProjection, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	var graph *reactive.Graph
	for i, source := range sources {
		if source == nil {
			return nil, fmt.Errorf("history: source %d is nil", i)
		}
		g := source.Changed().Graph()
		if graph == nil {
			graph = g
		} else if g != graph {
			return nil, fmt.Errorf("%w: source %d", ErrMixedGraphs, i)
		}
	}
	return &SlotProjection{graph: graph, sources: append([]reactive.Source(nil), sources...)}, nil
}

// Value implements Projection.
func (p *SlotProjection) Value() []any {
	out := make([]any, len(p.sources))
	for i, source := range p.sources {
		out[i] = source.Load()
	}
	return out
}

// Apply implements Projection. value must have one entry per slot.
func (p *SlotProjection) Apply(value []any) error {
	if len(value) != len(p.sources) {
		return fmt.Errorf("%w: expected %d slots, got %d", ErrShapeMismatch, len(p.sources), len(value))
	}
	return p.graph.Batch(func() error {
		for i, source := range p.sources {
			if err := source.Store(value[i]); err != nil {
				return fmt.Errorf("history: write back slot %d: %w", i, err)
			}
		}
		return nil
	})
}

// Triggers implements Projection.
func (p *SlotProjection) Triggers() []*reactive.Trigger {
	out := make([]*reactive.Trigger, len(p.sources))
	for i, source := range p.sources {
		out[i] = source.Changed()
	}
	return out
}

// Graph implements Projection.
func (p *SlotProjection) Graph() *reactive.Graph {
	return p.graph
}
