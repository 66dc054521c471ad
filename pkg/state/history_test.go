package state_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-snapshot/pkg/state"
)

func TestHistoryUndoRedo(t *testing.T) {
	h := state.NewHistory(0)
	assert.False(t, h.CanUndo())

	p1, p2, p3 := testPayload("one"), testPayload("two"), testPayload("three")
	_, err := h.Record("one", p1)
	require.NoError(t, err)
	_, err = h.Record("two", p2)
	require.NoError(t, err)
	_, err = h.Record("three", p3)
	require.NoError(t, err)

	got, err := h.Undo()
	require.NoError(t, err)
	assert.Same(t, p2, got)
	got, err = h.Undo()
	require.NoError(t, err)
	assert.Same(t, p1, got)
	_, err = h.Undo()
	assert.ErrorIs(t, err, state.ErrNothingToUndo)

	got, err = h.Redo()
	require.NoError(t, err)
	assert.Same(t, p2, got)
	assert.True(t, h.CanRedo())
}

func TestHistoryRecordDropsRedoBranch(t *testing.T) {
	h := state.NewHistory(0)
	p1, p2, p3 := testPayload("one"), testPayload("two"), testPayload("three")
	_, _ = h.Record("one", p1)
	_, _ = h.Record("two", p2)
	_, err := h.Undo()
	require.NoError(t, err)

	entry, err := h.Record("three", p3)
	require.NoError(t, err)
	assert.False(t, h.CanRedo())

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "three", entries[1].Label)
	current, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, entry.ID, current.ID)

	_, err = h.Redo()
	assert.ErrorIs(t, err, state.ErrNothingToRedo)
}

func TestHistoryLimit(t *testing.T) {
	h := state.NewHistory(2)
	_, _ = h.Record("one", testPayload("one"))
	_, _ = h.Record("two", testPayload("two"))
	_, _ = h.Record("three", testPayload("three"))

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Label)
	assert.Equal(t, "three", entries[1].Label)
}

func TestHistoryRejectsNilPayload(t *testing.T) {
	_, err := state.NewHistory(0).Record("nil", nil)
	assert.Error(t, err)
}

func TestHistoryPersistsThroughSQLite(t *testing.T) {
	store, err := state.NewSQLiteStore[state.HistoryLog](filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ref := state.Ref{Document: "form1"}

	h := state.NewHistory(10)
	_, _ = h.Record("one", testPayload("one"))
	last, _ := h.Record("two", testPayload("two"))
	_, err = h.Undo()
	require.NoError(t, err)

	meta, err := state.SaveHistory(ctx, store, ref, h, state.Meta{})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.SnapshotID)

	restored, loadedMeta, err := state.LoadHistory(ctx, store, ref)
	require.NoError(t, err)
	assert.Equal(t, meta.ETag, loadedMeta.ETag)
	require.Len(t, restored.Entries(), 2)
	assert.True(t, restored.CanRedo())

	payload, err := restored.Redo()
	require.NoError(t, err)
	assert.Equal(t, "form1", payload.Root)
	current, _ := restored.Current()
	assert.Equal(t, last.ID, current.ID)
}

func TestHistoryFromLogClampsCursor(t *testing.T) {
	h := state.HistoryFromLog(state.HistoryLog{
		Entries: []state.HistoryEntry{{Label: "a", Payload: testPayload("a")}},
		Cursor:  7,
	})
	current, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, "a", current.Label)

	empty := state.HistoryFromLog(state.HistoryLog{Cursor: 3})
	_, ok = empty.Current()
	assert.False(t, ok)
}
