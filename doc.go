// Package history keeps an undo/redo timeline of a composite value built from
// independently owned state cells.
//
// A Projection combines cells (see pkg/reactive) into one value. Whenever a
// clock trigger fires, the trigger's Strategy decides whether the current
// composite is pushed as a new record, replaces the head, or is ignored.
// Undo and Redo move the head pointer and write the selected record back into
// the cells; while that write-back propagates, push-always triggers do not
// capture, so navigation never records itself.
//
//	graph := reactive.NewGraph()
//	foo := reactive.NewCell(graph, "foo", "foo")
//	bar := reactive.NewCell(graph, "bar", 2)
//	proj, _ := history.Fields(map[string]reactive.Source{"foo": foo, "bar": bar})
//	h, _ := history.New[map[string]any](proj)
//	_ = foo.Set("foo2")
//	_ = h.Undo()
//
// Strategies can be written in Go (Custom) or as expressions evaluated by
// expr, CEL or JavaScript (RuleStrategy). Histories can be persisted through
// pkg/state stores and report their mutations to pkg/activity hooks.
package history
