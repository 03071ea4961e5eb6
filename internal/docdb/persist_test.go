package docdb

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func quietLogger() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	db, err := Open(ctx, st, quietLogger())
	require.NoError(t, err)
	c, err := db.CreateCollection(ctx, "employees", `{"type":"object"}`)
	require.NoError(t, err)
	_, err = c.Put(ctx, "e1", ir.IRObject{"name": ir.IRString("Ann")})
	require.NoError(t, err)
	_, err = c.Put(ctx, "e2", ir.IRObject{"name": ir.IRString("Bob")})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "e1")
	require.NoError(t, err)

	reopened, err := Open(ctx, st, quietLogger())
	require.NoError(t, err)
	rc, err := reopened.Collection("employees")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object"}`, rc.Schema())

	snap := rc.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "e2", snap[0].ID)
	assert.False(t, snap[0].Corrupt())
	assert.Equal(t, ir.IRString("Bob"), snap[0].Body["name"])

	// New documents continue after the highest persisted seq.
	id, err := rc.Put(ctx, "e3", ir.IRObject{})
	require.NoError(t, err)
	e3, _ := rc.Get(id)
	assert.Greater(t, e3.Seq, snap[0].Seq)
}

func TestOpen_CorruptDocuments(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	require.NoError(t, st.WriteCollection(ctx, store.CollectionRecord{Name: "employees"}))

	good := ir.IRObject{"name": ir.IRString("Ann")}
	body, err := store.EncodeBody(good)
	require.NoError(t, err)

	records := []store.DocumentRecord{
		{Collection: "employees", ID: "bad-json", Seq: 1, Rev: "x", Body: `{"name":`},
		{Collection: "employees", ID: "bad-rev", Seq: 2, Rev: "not-the-digest", Body: body},
		{Collection: "employees", ID: "good", Seq: 3, Rev: ir.MustDocumentDigest(good), Body: body},
	}
	for _, rec := range records {
		require.NoError(t, st.WriteDocument(ctx, rec))
	}

	db, err := Open(ctx, st, quietLogger())
	require.NoError(t, err, "corrupt rows must not fail the load")

	c, err := db.Collection("employees")
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap, 3)

	assert.ErrorIs(t, snap[0].Err, ErrCorruptDocument)
	assert.ErrorIs(t, snap[1].Err, ErrCorruptDocument)
	assert.Nil(t, snap[0].Body)
	assert.NoError(t, snap[2].Err)
	assert.Equal(t, good, snap[2].Body)
}
