package history

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-history/pkg/state"
	"github.com/goliatone/go-history/pkg/state/badgerstore"
	"github.com/goliatone/go-history/pkg/state/redisstore"
	"github.com/redis/go-redis/v9"
)

func TestSnapshotCarriesTriggersWhenSerializing(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t, WithName[map[string]any]("editor"))
	fire(t, env.fooChanged, "foo2")

	snap := h.Snapshot()
	if snap.Name != "editor" || snap.CurIndex != 1 || len(snap.Values) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Triggers) != 2 || !snap.Triggers[0].Same(InitialTrigger) || snap.Triggers[1].Name != "foo" {
		t.Fatalf("unexpected triggers %+v", snap.Triggers)
	}
	if !reflect.DeepEqual(snap.Payloads, []any{nil, "foo2"}) {
		t.Fatalf("unexpected payloads %v", snap.Payloads)
	}
}

func TestHydrateRestoresAndWritesBackWithoutCapture(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t, WithSerialize[map[string]any](false))

	err := h.Hydrate(Snapshot[map[string]any]{
		Values:   []map[string]any{fb("a", 1), fb("b", 2), fb("c", 3)},
		CurIndex: 1,
	})
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	assertValues(t, h, fb("a", 1), fb("b", 2), fb("c", 3))
	if h.CurIndex() != 1 || !h.CanRedo() {
		t.Fatalf("unexpected status %+v", h.Status())
	}
	if env.foo.Get() != "b" || env.bar.Get() != 2 {
		t.Fatalf("head not written back: foo=%q bar=%d", env.foo.Get(), env.bar.Get())
	}
	if !h.CurRecord().Trigger.Same(UnknownTrigger) {
		t.Fatalf("missing triggers restore as unknown, got %s", h.CurRecord().Trigger)
	}
	if h.Suppressed() {
		t.Fatalf("capture must be re-armed after hydrate")
	}
}

func TestHydrateEvictsBeyondMaxLength(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t, WithMaxLength[map[string]any](2))

	err := h.Hydrate(Snapshot[map[string]any]{
		Values:   []map[string]any{fb("a", 1), fb("b", 2), fb("c", 3)},
		CurIndex: 2,
	})
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	assertValues(t, h, fb("b", 2), fb("c", 3))
	if h.CurIndex() != 1 {
		t.Fatalf("expected index 1, got %d", h.CurIndex())
	}
}

func TestHydrateRejectsInvalidSnapshots(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t)
	cases := map[string]Snapshot[map[string]any]{
		"empty":            {},
		"index too large":  {Values: []map[string]any{fb("a", 1)}, CurIndex: 1},
		"negative index":   {Values: []map[string]any{fb("a", 1)}, CurIndex: -1},
		"trigger mismatch": {Values: []map[string]any{fb("a", 1)}, Triggers: []TriggerRef{ManualTrigger, ManualTrigger}},
		"payload mismatch": {Values: []map[string]any{fb("a", 1)}, Payloads: []any{1, 2}},
	}
	for name, snap := range cases {
		if err := h.Hydrate(snap); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected ErrInvalidSnapshot, got %v", name, err)
		}
	}
	assertValues(t, h, fb("foo", 2))
}

// jsonStore round-trips snapshots through JSON the way remote stores do.
type jsonStore struct {
	inner *state.MemoryStore[[]byte]
}

func (s jsonStore) Load(ctx context.Context, ref state.Ref) (Snapshot[map[string]any], state.Meta, bool, error) {
	var snap Snapshot[map[string]any]
	data, meta, ok, err := s.inner.Load(ctx, ref)
	if err != nil || !ok {
		return snap, meta, ok, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, meta, true, err
	}
	return snap, meta, true, nil
}

func (s jsonStore) Save(ctx context.Context, ref state.Ref, snap Snapshot[map[string]any], meta state.Meta) (state.Meta, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return state.Meta{}, err
	}
	return s.inner.Save(ctx, ref, data, meta)
}

func TestPersistAndRestoreAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := jsonStore{inner: state.NewMemoryStore[[]byte]()}
	ref := state.Ref{Domain: "editor", ID: "doc-1"}

	source := newFooBar(t)
	h := source.history(t)
	fire(t, source.fooChanged, "foo2")
	fire(t, source.barChanged, 3)
	_ = h.Undo()

	meta, err := h.Persist(ctx, store, ref, state.Meta{})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if meta.ETag == "" {
		t.Fatalf("expected etag")
	}

	target := newFooBar(t)
	restored := target.history(t)
	_, ok, err := restored.Restore(ctx, store, ref)
	if err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}

	if restored.CurIndex() != 1 || restored.Len() != 3 {
		t.Fatalf("unexpected status %+v", restored.Status())
	}
	if target.foo.Get() != "foo2" || target.bar.Get() != 2 {
		t.Fatalf("cells not restored: foo=%q bar=%d", target.foo.Get(), target.bar.Get())
	}
	if err := restored.Redo(); err != nil {
		t.Fatalf("redo after restore: %v", err)
	}
	if target.bar.Get() != 3 {
		t.Fatalf("expected numeric cell restored from JSON, got %d", target.bar.Get())
	}

	if _, err := h.Persist(ctx, store, ref, state.Meta{ETag: "stale"}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t)
	store := state.NewMemoryStore[Snapshot[map[string]any]]()

	_, ok, err := h.Restore(context.Background(), store, state.Ref{Domain: "editor", ID: "none"})
	if err != nil || ok {
		t.Fatalf("expected nothing restored, ok=%v err=%v", ok, err)
	}
	if _, _, err := h.Restore(context.Background(), nil, state.Ref{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestDecodeSnapshotAppliesMigrations(t *testing.T) {
	legacy := []byte(`{"name":"editor","states":[{"foo":"a","bar":1},{"foo":"b","bar":2}],"index":0}`)
	migrate := func(doc map[string]any) (map[string]any, error) {
		doc["values"] = doc["states"]
		doc["cur_index"] = doc["index"]
		delete(doc, "states")
		delete(doc, "index")
		return doc, nil
	}

	snap, err := DecodeSnapshot[map[string]any](legacy, migrate)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Name != "editor" || snap.CurIndex != 0 || len(snap.Values) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := DecodeSnapshot[map[string]any](legacy); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("unmigrated document must fail validation, got %v", err)
	}
	if _, err := DecodeSnapshot[map[string]any]([]byte(`not json`)); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for malformed input, got %v", err)
	}
}

func TestHydrateJSONWritesBack(t *testing.T) {
	env := newFooBar(t)
	h := env.history(t)

	err := h.HydrateJSON([]byte(`{"values":[{"foo":"a","bar":1},{"foo":"b","bar":5}],"cur_index":1}`))
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if env.foo.Get() != "b" || env.bar.Get() != 5 {
		t.Fatalf("head not written back: foo=%q bar=%d", env.foo.Get(), env.bar.Get())
	}
	if h.Len() != 2 || !h.CanUndo() {
		t.Fatalf("unexpected status %+v", h.Status())
	}
}

func TestPersistThroughRemoteStores(t *testing.T) {
	ref := state.Ref{Domain: "editor", ID: "doc-1"}

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	redisStore, err := redisstore.New[Snapshot[map[string]any]](rdb, "test")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}

	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	badgerStore, err := badgerstore.New[Snapshot[map[string]any]](db)
	if err != nil {
		t.Fatalf("badger store: %v", err)
	}

	stores := map[string]state.Store[Snapshot[map[string]any]]{
		"redis":  redisStore,
		"badger": badgerStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			source := newFooBar(t)
			h := source.history(t)
			fire(t, source.barChanged, 7)

			meta, err := h.Persist(ctx, store, ref, state.Meta{})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			target := newFooBar(t)
			restored := target.history(t)
			loaded, ok, err := restored.Restore(ctx, store, ref)
			if err != nil || !ok {
				t.Fatalf("restore: ok=%v err=%v", ok, err)
			}
			if loaded.ETag != meta.ETag {
				t.Fatalf("expected etag %q, got %q", meta.ETag, loaded.ETag)
			}
			if target.bar.Get() != 7 || restored.Len() != 2 {
				t.Fatalf("unexpected restore: bar=%d status=%+v", target.bar.Get(), restored.Status())
			}

			if _, err := h.Persist(ctx, store, ref, loaded); err != nil {
				t.Fatalf("persist with current etag: %v", err)
			}
			if _, err := h.Persist(ctx, store, ref, loaded); !errors.Is(err, state.ErrETagMismatch) {
				t.Fatalf("expected ErrETagMismatch, got %v", err)
			}
		})
	}
}
