package monitoring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/database"
	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/state"
)

func TestNewJanitor_RejectsBadSchedule(t *testing.T) {
	_, err := NewJanitor(nil, nil, "not a cron expression", time.Hour)
	assert.Error(t, err)
}

func TestSweep_PrunesOldActivity(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	rec := activity.NewRecorder(db)
	require.NoError(t, rec.Record("book.add", "info", "old entry"))

	dispatcher := dispatch.New(nil, state.NewController(nil, nil), rec, db)

	// Zero retention: everything recorded before the sweep goes away.
	j, err := NewJanitor(dispatcher, rec, "*/15 * * * *", 0)
	require.NoError(t, err)
	j.sweep()

	entries, err := rec.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunAndStop(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	rec := activity.NewRecorder(db)
	dispatcher := dispatch.New(nil, state.NewController(nil, nil), rec, db)

	j, err := NewJanitor(dispatcher, rec, "*/15 * * * *", time.Hour)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		j.Run()
		close(stopped)
	}()

	j.Stop()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
