package reactive

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrTypeMismatch indicates a value of the wrong type was stored into a cell.
var ErrTypeMismatch = errors.New("reactive: type mismatch")

// Source is the untyped view of a cell used by projections that combine cells
// of different value types.
type Source interface {
	Name() string
	Load() any
	Store(value any) error
	Changed() *Trigger
}

// CellOption configures a Cell on creation.
type CellOption[V any] func(*Cell[V])

// WithEqual overrides the equality check used to suppress no-op writes.
func WithEqual[V any](equal func(a, b V) bool) CellOption[V] {
	return func(c *Cell[V]) {
		c.equal = equal
	}
}

// Cell holds one piece of host state and announces its changes.
type Cell[V any] struct {
	mu      sync.RWMutex
	value   V
	changed *Trigger
	equal   func(a, b V) bool
}

// NewCell creates a cell on g holding initial. Its Changed trigger is named
// after the cell.
func NewCell[V any](g *Graph, name string, initial V, opts ...CellOption[V]) *Cell[V] {
	c := &Cell[V]{
		value:   initial,
		changed: NewTrigger(g, name),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name returns the cell name.
func (c *Cell[V]) Name() string {
	return c.changed.Name()
}

// Get returns the current value.
func (c *Cell[V]) Get() V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores value and fires Changed with it. Writes equal to the current
// value are dropped without notification.
func (c *Cell[V]) Set(value V) error {
	c.mu.Lock()
	if c.same(c.value, value) {
		c.mu.Unlock()
		return nil
	}
	c.value = value
	c.mu.Unlock()
	return c.changed.Fire(value)
}

// Update applies fn to the current value and stores the result.
func (c *Cell[V]) Update(fn func(V) V) error {
	if fn == nil {
		return nil
	}
	return c.Set(fn(c.Get()))
}

// Changed returns the trigger fired after every effective write.
func (c *Cell[V]) Changed() *Trigger {
	return c.changed
}

// Load implements Source.
func (c *Cell[V]) Load() any {
	return c.Get()
}

// Store implements Source. A nil value stores the zero value of V. Numbers
// of another numeric type are converted when the conversion is lossless, so
// values decoded from JSON can be written back.
func (c *Cell[V]) Store(value any) error {
	if value == nil {
		var zero V
		return c.Set(zero)
	}
	typed, ok := value.(V)
	if !ok {
		typed, ok = convertNumber[V](value)
	}
	if !ok {
		var zero V
		return fmt.Errorf("%w: cell %q holds %T, got %T", ErrTypeMismatch, c.Name(), zero, value)
	}
	return c.Set(typed)
}

func (c *Cell[V]) same(a, b V) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return sameValue(a, b)
}

// sameValue compares values that are comparable at runtime; anything else
// (slices, maps, funcs) is treated as changed.
func sameValue(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

func convertNumber[V any](value any) (V, bool) {
	var zero V
	target := reflect.TypeOf(&zero).Elem()
	rv := reflect.ValueOf(value)
	if !isNumber(rv.Kind()) || !isNumber(target.Kind()) || !rv.CanConvert(target) {
		return zero, false
	}
	converted := rv.Convert(target)
	if !converted.Convert(rv.Type()).Equal(rv) {
		return zero, false
	}
	return converted.Interface().(V), true
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
