package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-history/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Values   []map[string]any `json:"values"`
	CurIndex int              `json:"cur_index"`
}

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T) (*Store[snapshot], *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewFromOptions[snapshot](&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestNewStore(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := New[snapshot](redis.NewClient(&redis.Options{Addr: "localhost:6379"}), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})

	t.Run("rejects nil client", func(t *testing.T) {
		_, err := New[snapshot](nil, "ns")
		assert.Error(t, err)
	})

	t.Run("pings", func(t *testing.T) {
		store, _ := setupTestStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestSaveAndLoad(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()
	ref := state.Ref{Domain: "editor", ID: "doc-1"}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	in := snapshot{
		Values:   []map[string]any{{"foo": "foo", "bar": 2}, {"foo": "foo2", "bar": 2}},
		CurIndex: 1,
	}
	meta, err := store.Save(ctx, ref, in, state.Meta{Extra: map[string]string{"source": "test"}})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ETag)
	assert.NotEmpty(t, meta.SnapshotID)

	assert.True(t, mr.Exists("history:test-instance:snapshot:editor/doc-1"))

	out, loadedMeta, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, out.CurIndex)
	assert.Equal(t, "foo2", out.Values[1]["foo"])
	assert.Equal(t, float64(2), out.Values[1]["bar"])
	assert.Equal(t, meta.ETag, loadedMeta.ETag)
	assert.Equal(t, "test", loadedMeta.Extra["source"])
	assert.True(t, meta.UpdatedAt.Equal(loadedMeta.UpdatedAt))
}

func TestSaveRejectsStaleETag(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	ref := state.Ref{Domain: "editor", ID: "doc-1"}

	first, err := store.Save(ctx, ref, snapshot{CurIndex: 0}, state.Meta{})
	require.NoError(t, err)

	second, err := store.Save(ctx, ref, snapshot{CurIndex: 1}, state.Meta{ETag: first.ETag})
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, second.ETag)

	_, err = store.Save(ctx, ref, snapshot{CurIndex: 2}, state.Meta{ETag: first.ETag})
	assert.ErrorIs(t, err, state.ErrETagMismatch)

	out, _, _, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, out.CurIndex)
}

func TestDeleteAndInvalidRef(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	ref := state.Ref{Domain: "editor", ID: "doc-1"}

	_, err := store.Save(ctx, ref, snapshot{}, state.Meta{})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, ref))

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = store.Load(ctx, state.Ref{Domain: "editor"})
	assert.ErrorIs(t, err, state.ErrInvalidRef)
}

func TestLoadCorruptData(t *testing.T) {
	store, mr := setupTestStore(t)
	mr.HSet("history:test-instance:snapshot:editor/bad", "data", "{not json")

	_, _, _, err := store.Load(context.Background(), state.Ref{Domain: "editor", ID: "bad"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deserialize snapshot")
}
