package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-history/pkg/state"
)

const keyPrefix = "history/snapshot/"

type envelope[T any] struct {
	Data T          `json:"data"`
	Meta state.Meta `json:"meta"`
}

// Store implements state.Store over a BadgerDB handle. Saves run in a
// read-write transaction so a concurrent commit on the same key is reported
// as state.ErrETagMismatch.
type Store[T any] struct {
	db *badger.DB
}

// New wraps db. The caller keeps ownership of db.
func New[T any](db *badger.DB) (*Store[T], error) {
	if db == nil {
		return nil, errors.New("badger db cannot be nil")
	}
	return &Store[T]{db: db}, nil
}

// SnapshotKey returns the BadgerDB key for a snapshot identifier.
func SnapshotKey(identifier string) []byte {
	return []byte(keyPrefix + identifier)
}

// Load implements state.Store.
func (s *Store[T]) Load(ctx context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, state.Meta{}, false, err
	}
	identifier, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	var env envelope[T]
	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = read(txn, SnapshotKey(identifier), &env)
		return err
	})
	if err != nil || !found {
		return zero, state.Meta{}, false, err
	}
	return env.Data, env.Meta, true, nil
}

// Save implements state.Store.
func (s *Store[T]) Save(ctx context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	if err := ctx.Err(); err != nil {
		return state.Meta{}, err
	}
	identifier, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	key := SnapshotKey(identifier)
	saved := state.NextMeta(meta)

	err = s.db.Update(func(txn *badger.Txn) error {
		var current envelope[json.RawMessage]
		found, err := read(txn, key, &current)
		if err != nil {
			return err
		}
		if found {
			if err := state.CheckETag(current.Meta, meta); err != nil {
				return err
			}
		}
		data, err := json.Marshal(envelope[T]{Data: snapshot, Meta: saved})
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return state.Meta{}, fmt.Errorf("%w: concurrent write to %s", state.ErrETagMismatch, identifier)
	}
	if err != nil {
		return state.Meta{}, err
	}
	return saved, nil
}

// Delete removes the snapshot stored under ref.
func (s *Store[T]) Delete(ctx context.Context, ref state.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	identifier, err := ref.Identifier()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(SnapshotKey(identifier))
	})
}

func read(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}
