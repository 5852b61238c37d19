package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrInvalidRef = errors.New("state: invalid ref")

// Ref identifies one persisted snapshot.
type Ref struct {
	Domain string
	ID     string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	domain := strings.Trim(strings.TrimSpace(r.Domain), "/")
	id := strings.Trim(strings.TrimSpace(r.ID), "/")
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidRef)
	}
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidRef)
	}
	return domain + "/" + id, nil
}

// CheckETag rejects a save whose expected ETag differs from the stored one.
// An empty expectation or an empty stored ETag always passes.
func CheckETag(stored, expected Meta) error {
	if expected.ETag == "" || stored.ETag == "" || expected.ETag == stored.ETag {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, stored.ETag)
}

// NextMeta stamps meta for a successful save: a fresh ETag, a snapshot ID
// when the caller did not choose one, and the save time.
func NextMeta(meta Meta) Meta {
	out := CloneMeta(meta)
	out.ETag = uuid.NewString()
	if out.SnapshotID == "" {
		out.SnapshotID = uuid.NewString()
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// CloneMeta copies meta so Extra is detached from the original.
func CloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
