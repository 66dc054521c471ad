package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("state: not found")

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrInvalidRef = errors.New("state: invalid ref")

// Ref identifies one persisted document, optionally scoped to an owner.
type Ref struct {
	Document string
	Owner    string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one value for a single ref. Save rejects the write
// with ErrETagMismatch when meta.ETag is set and differs from the stored
// ETag; the returned Meta carries the ETag of what was written.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (value T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, value T, meta Meta) (Meta, error)
}

// Editor applies read-modify-write cycles against a Store.
type Editor[T any] struct {
	Store Store[T]
}

type Mutator[T any] func(*T) error

type validator interface {
	Validate() error
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	if r.Document == "" {
		return "", fmt.Errorf("%w: document is required", ErrInvalidRef)
	}
	if strings.Contains(r.Document, "/") || strings.Contains(r.Owner, "/") {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidRef, r.Owner+"/"+r.Document)
	}
	if r.Owner == "" {
		return "shared/" + r.Document, nil
	}
	return fmt.Sprintf("owner/%s/%s", r.Owner, r.Document), nil
}

// History returns the ref under which the undo history of r is kept.
func (r Ref) History() Ref {
	return Ref{Document: r.Document + ".history", Owner: r.Owner}
}

// ETag hashes the JSON encoding of value.
func ETag(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("state: etag: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}

// Mutate loads the value for ref, applies fn, validates the result when it
// has a Validate method, then saves. A non-empty meta.ETag must match the
// stored ETag.
func (e Editor[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if e.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	value, loadedMeta, ok, err := e.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Document, err)
	}
	if !ok {
		value = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&value); err != nil {
		return zero, loadedMeta, err
	}
	if v, ok := any(value).(validator); ok {
		if err := v.Validate(); err != nil {
			return zero, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	savedMeta, err := e.Store.Save(ctx, ref, value, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.Document, err)
	}
	return value, savedMeta, nil
}

// prepareMeta checks the optimistic ETag against current and stamps the
// metadata for a write of value.
func prepareMeta(current *Meta, meta Meta, value any, now time.Time) (Meta, error) {
	if current != nil && meta.ETag != "" && current.ETag != meta.ETag {
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.ETag)
	}
	tag, err := ETag(value)
	if err != nil {
		return Meta{}, err
	}
	out := cloneMeta(meta)
	out.ETag = tag
	out.UpdatedAt = now.UTC()
	return out, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
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
