package reactive

import "errors"

// Graph owns the notification queue shared by a set of cells and triggers.
type Graph struct {
	depth int
	pass  uint64
	queue []func() error
}

// NewGraph constructs an idle propagation graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Batch runs fn and defers every notification it produces until the outermost
// batch returns. The queue is then drained in FIFO order, including
// notifications scheduled by handlers while draining. Errors returned by fn
// and by handlers are joined.
func (g *Graph) Batch(fn func() error) error {
	var err error
	func() {
		g.depth++
		defer func() { g.depth-- }()
		if fn != nil {
			err = fn()
		}
	}()
	if g.depth > 0 {
		return err
	}
	return errors.Join(err, g.flush())
}

// Settled reports whether no batch is running and nothing is queued.
func (g *Graph) Settled() bool {
	return g.depth == 0 && len(g.queue) == 0
}

// Pass identifies the propagation pass being drained, or the last drained
// pass when the graph is settled. Every handler run by one drain sees the
// same value.
func (g *Graph) Pass() uint64 {
	return g.pass
}

// After runs fn once every notification queued so far has been delivered.
// On a settled graph fn runs immediately.
func (g *Graph) After(fn func()) {
	if fn == nil {
		return
	}
	if g.Settled() {
		fn()
		return
	}
	g.queue = append(g.queue, func() error {
		fn()
		return nil
	})
}

func (g *Graph) schedule(fn func() error) error {
	return g.Batch(func() error {
		g.queue = append(g.queue, fn)
		return nil
	})
}

func (g *Graph) flush() error {
	g.pass++
	g.depth++
	defer func() { g.depth-- }()

	var errs []error
	for len(g.queue) > 0 {
		next := g.queue[0]
		g.queue[0] = nil
		g.queue = g.queue[1:]
		if err := next(); err != nil {
			errs = append(errs, err)
		}
	}
	g.queue = nil
	return errors.Join(errs...)
}
