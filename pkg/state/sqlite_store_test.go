package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snapshot "github.com/goliatone/go-snapshot"
	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/pkg/state"
)

func testPayload(text string) *snapshot.Payload {
	return &snapshot.Payload{
		ID:    uuid.New(),
		Root:  "form1",
		Names: []string{"button1", "form1"},
		Entries: map[string]*snapshot.PayloadEntry{
			"button1": {Statements: ir.Statements{
				ir.Assign(ir.Prop(ir.Ref("button1"), "Text"), ir.Lit(text)),
			}},
			"form1": {Placeholder: true},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteStorePayloadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "payloads.db")
	store, err := state.OpenPayloadStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ref := state.Ref{Document: "form1", Owner: "alice"}
	payload := testPayload("OK")

	meta, err := store.Save(ctx, ref, payload, state.Meta{SnapshotID: payload.ID.String(), Extra: map[string]string{"label": "initial"}})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ETag)

	loaded, loadedMeta, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload.ID, loaded.ID)
	assert.Equal(t, payload.Names, loaded.Names)
	assert.True(t, loaded.Entry("form1").Placeholder)
	require.Len(t, loaded.Entry("button1").Statements, 1)
	assign, ok := loaded.Entry("button1").Statements[0].(*ir.Assignment)
	require.True(t, ok)
	assert.Equal(t, "OK", assign.Right.(*ir.Primitive).Value)

	assert.Equal(t, meta.ETag, loadedMeta.ETag)
	assert.Equal(t, "initial", loadedMeta.Extra["label"])
	assert.WithinDuration(t, meta.UpdatedAt, loadedMeta.UpdatedAt, time.Millisecond)
}

func TestSQLiteStoreETagConflict(t *testing.T) {
	store, err := state.NewSQLiteStore[document](filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ref := state.Ref{Document: "form1"}

	first, err := store.Save(ctx, ref, document{Title: "a"}, state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, ref, document{Title: "b"}, state.Meta{ETag: first.ETag})
	require.NoError(t, err)

	_, err = store.Save(ctx, ref, document{Title: "c"}, state.Meta{ETag: first.ETag})
	assert.ErrorIs(t, err, state.ErrETagMismatch)

	value, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", value.Title)
}

func TestSQLiteStoreListAndDelete(t *testing.T) {
	store, err := state.NewSQLiteStore[document](filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Save(ctx, state.Ref{Document: "b"}, document{Title: "b"}, state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, state.Ref{Document: "a", Owner: "zed"}, document{Title: "a"}, state.Meta{})
	require.NoError(t, err)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, state.Ref{Document: "a", Owner: "zed"}, records[0].Ref)
	assert.Equal(t, state.Ref{Document: "b"}, records[1].Ref)

	require.NoError(t, store.Delete(ctx, state.Ref{Document: "b"}))
	_, _, ok, err := store.Load(ctx, state.Ref{Document: "b"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreExtraEncoding(t *testing.T) {
	store, err := state.NewSQLiteStore[document](filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	plain := state.Ref{Document: "plain"}
	_, err = store.Save(ctx, plain, document{Title: "a"}, state.Meta{})
	require.NoError(t, err)
	_, meta, ok, err := store.Load(ctx, plain)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, meta.Extra)

	tagged := state.Ref{Document: "tagged"}
	extra := map[string]string{"note": "line\n\"quoted\"", "größe": "ü"}
	_, err = store.Save(ctx, tagged, document{Title: "b"}, state.Meta{Extra: extra})
	require.NoError(t, err)
	_, meta, ok, err = store.Load(ctx, tagged)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, extra, meta.Extra)
}
