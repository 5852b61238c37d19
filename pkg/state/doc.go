// Package state defines persistence-facing contracts for loading and saving
// history snapshots.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - The history package stays persistence-agnostic; it hands a Store to
//     History.Persist and History.Restore and never reaches a backend directly.
//   - Meta.ETag gives optimistic concurrency: a Save carrying an ETag fails
//     with ErrETagMismatch when the stored snapshot moved on.
//
// Data flow:
//
//	History.Snapshot -> Store.Save ... Store.Load -> History.Hydrate
//
// Deterministic keys:
//
//	Ref.Identifier() provides the canonical storage key `<domain>/<id>`.
//	Backends (MemoryStore, redisstore, badgerstore) all key by it.
package state
