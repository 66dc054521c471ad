package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-snapshot/pkg/state"
)

type countingStore struct {
	*state.MemoryStore[document]
	saves int
}

func (s *countingStore) Save(ctx context.Context, ref state.Ref, value document, meta state.Meta) (state.Meta, error) {
	s.saves++
	return s.MemoryStore.Save(ctx, ref, value, meta)
}

func TestEditorMutateCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: state.NewMemoryStore[document]()}
	editor := state.Editor[document]{Store: store}
	ref := state.Ref{Document: "form1"}

	value, meta, err := editor.Mutate(ctx, ref, state.Meta{}, func(d *document) error {
		d.Title = "new"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", value.Title)
	assert.NotEmpty(t, meta.ETag)

	value, meta2, err := editor.Mutate(ctx, ref, state.Meta{ETag: meta.ETag}, func(d *document) error {
		d.Count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, value.Count)
	assert.NotEqual(t, meta.ETag, meta2.ETag)
	assert.Equal(t, 2, store.saves)
}

func TestEditorMutateValidationFailureDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: state.NewMemoryStore[document]()}
	editor := state.Editor[document]{Store: store}

	_, _, err := editor.Mutate(ctx, state.Ref{Document: "form1"}, state.Meta{}, func(d *document) error {
		d.Count = -1
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestEditorMutateStaleETag(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: state.NewMemoryStore[document]()}
	editor := state.Editor[document]{Store: store}
	ref := state.Ref{Document: "form1"}

	_, err := store.Save(ctx, ref, document{Title: "a"}, state.Meta{})
	require.NoError(t, err)

	_, _, err = editor.Mutate(ctx, ref, state.Meta{ETag: "stale"}, func(d *document) error { return nil })
	assert.ErrorIs(t, err, state.ErrETagMismatch)
	assert.Equal(t, 1, store.saves)
}

func TestEditorMutateErrors(t *testing.T) {
	ctx := context.Background()
	_, _, err := state.Editor[document]{}.Mutate(ctx, state.Ref{Document: "x"}, state.Meta{}, func(*document) error { return nil })
	assert.Error(t, err)

	editor := state.Editor[document]{Store: state.NewMemoryStore[document]()}
	_, _, err = editor.Mutate(ctx, state.Ref{Document: "x"}, state.Meta{}, nil)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, _, err = editor.Mutate(ctx, state.Ref{Document: "x"}, state.Meta{}, func(*document) error { return boom })
	assert.ErrorIs(t, err, boom)
}
