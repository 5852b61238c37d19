// Package redisstore persists history snapshots in Redis.
//
// Each snapshot lives in one hash at history:{namespace}:snapshot:{domain}/{id}
// holding the JSON-encoded snapshot and its metadata. Saves run inside
// WATCH/MULTI so a concurrent writer surfaces as state.ErrETagMismatch.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-history/pkg/state"
	"github.com/redis/go-redis/v9"
)

const (
	fieldData       = "data"
	fieldETag       = "etag"
	fieldSnapshotID = "snapshot_id"
	fieldUpdatedAt  = "updated_at"
	fieldExtra      = "extra"
)

// Store implements state.Store over a Redis client. It is safe for
// concurrent use.
type Store[T any] struct {
	rdb       *redis.Client
	namespace string
	owned     bool
}

// New wraps an existing client. Close does not close it.
func New[T any](rdb *redis.Client, namespace string) (*Store[T], error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &Store[T]{rdb: rdb, namespace: namespace}, nil
}

// NewFromOptions dials Redis with opts. Close closes the connection.
func NewFromOptions[T any](opts *redis.Options, namespace string) (*Store[T], error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	store, err := New[T](redis.NewClient(opts), namespace)
	if err != nil {
		return nil, err
	}
	store.owned = true
	return store, nil
}

// SnapshotKey returns the hash key for a snapshot identifier.
func SnapshotKey(namespace, identifier string) string {
	return fmt.Sprintf("history:%s:snapshot:%s", namespace, identifier)
}

// Close releases the connection when the store dialed it.
func (s *Store[T]) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store[T]) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Load implements state.Store.
func (s *Store[T]) Load(ctx context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	key, err := s.key(ref)
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	hash, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	if len(hash) == 0 {
		return zero, state.Meta{}, false, nil
	}

	var snapshot T
	if err := json.Unmarshal([]byte(hash[fieldData]), &snapshot); err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	meta, err := hashToMeta(hash)
	if err != nil {
		return zero, state.Meta{}, false, err
	}
	return snapshot, meta, true, nil
}

// Save implements state.Store.
func (s *Store[T]) Save(ctx context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	key, err := s.key(ref)
	if err != nil {
		return state.Meta{}, err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return state.Meta{}, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	saved := state.NextMeta(meta)
	hash, err := metaToHash(saved)
	if err != nil {
		return state.Meta{}, err
	}
	hash[fieldData] = string(data)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, fieldETag).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read snapshot etag: %w", err)
		}
		if err := state.CheckETag(state.Meta{ETag: stored}, meta); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, hash)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return state.Meta{}, fmt.Errorf("%w: concurrent write to %s", state.ErrETagMismatch, key)
	}
	if err != nil {
		return state.Meta{}, err
	}
	return saved, nil
}

// Delete removes the snapshot stored under ref.
func (s *Store[T]) Delete(ctx context.Context, ref state.Ref) error {
	key, err := s.key(ref)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *Store[T]) key(ref state.Ref) (string, error) {
	identifier, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return SnapshotKey(s.namespace, identifier), nil
}

func metaToHash(meta state.Meta) (map[string]any, error) {
	hash := map[string]any{
		fieldETag:       meta.ETag,
		fieldSnapshotID: meta.SnapshotID,
		fieldUpdatedAt:  meta.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(meta.Extra) > 0 {
		extra, err := json.Marshal(meta.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize snapshot metadata: %w", err)
		}
		hash[fieldExtra] = string(extra)
	}
	return hash, nil
}

func hashToMeta(hash map[string]string) (state.Meta, error) {
	meta := state.Meta{
		ETag:       hash[fieldETag],
		SnapshotID: hash[fieldSnapshotID],
	}
	if raw := hash[fieldUpdatedAt]; raw != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return state.Meta{}, fmt.Errorf("invalid updated_at %q: %w", raw, err)
		}
		meta.UpdatedAt = updatedAt
	}
	if raw := hash[fieldExtra]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta.Extra); err != nil {
			return state.Meta{}, fmt.Errorf("failed to deserialize snapshot metadata: %w", err)
		}
	}
	return meta, nil
}
