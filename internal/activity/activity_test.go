package activity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/libconsole/internal/database"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRecorder(db)
}

func TestRecordAndRecent(t *testing.T) {
	rec := newTestRecorder(t)

	require.NoError(t, rec.Record("book.add", "info", `added book "Dune"`))
	require.NoError(t, rec.Record("book.delete", "warn", "deleted book 3"))

	entries, err := rec.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	types := []string{entries[0].Type, entries[1].Type}
	assert.Contains(t, types, "book.add")
	assert.Contains(t, types, "book.delete")
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestRecent_HonorsLimit(t *testing.T) {
	rec := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record("book.add", "info", "entry"))
	}

	entries, err := rec.Recent(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecent_EmptyLog(t *testing.T) {
	rec := newTestRecorder(t)

	entries, err := rec.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneOlderThan(t *testing.T) {
	rec := newTestRecorder(t)

	require.NoError(t, rec.Record("book.add", "info", "entry"))

	// A cutoff in the past leaves fresh entries alone.
	pruned, err := rec.PruneOlderThan(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// A cutoff in the future sweeps everything.
	pruned, err = rec.PruneOlderThan(time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	entries, err := rec.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
