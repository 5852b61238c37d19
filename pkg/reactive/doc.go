// Package reactive provides the small propagation engine that go-history sits
// on: host-owned state cells, identity-bearing triggers, and a Graph that
// delivers change notifications in a single synchronous pass.
//
// Responsibilities:
//   - Cell[V] stores a value and fires its Changed trigger when the value
//     actually changes. Writes are visible immediately; notifications are not.
//   - Trigger is a discrete event stream with a stable identity (a UUID) and a
//     human-readable name. Handlers registered through Watch run first;
//     handlers registered through Sample run after every Watch handler of the
//     same firing, so samplers observe the cells those watchers updated.
//   - Graph queues notifications and drains them FIFO when the outermost
//     Batch returns, which means a batch of writes is observed as a whole.
//
// Data flow:
//
//	Cell.Set -> Trigger.Fire -> Graph queue -> Watch handlers -> Sample handlers
//
// A Graph must be driven from one goroutine at a time. Cells may be read from
// any goroutine.
package reactive
