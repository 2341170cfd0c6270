package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/libconsole/internal/database"
	"github.com/opencirc/libconsole/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewStore(db)
}

func TestStore_RestoreEmpty(t *testing.T) {
	store := newTestStore(t)

	identity, credential := store.Restore()
	assert.Nil(t, identity)
	assert.Empty(t, credential)
	assert.Zero(t, store.Generation())
}

func TestStore_EstablishRestoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	alice := models.Identity{Username: "alice", Email: "alice@example.com", Role: models.RoleLibrarian}
	require.NoError(t, store.Establish(alice, "bearer-token-1"))

	identity, credential := store.Restore()
	require.NotNil(t, identity)
	assert.Equal(t, alice, *identity)
	assert.Equal(t, "bearer-token-1", credential)
}

func TestStore_EstablishReplacesPriorSession(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Establish(models.Identity{Username: "alice", Role: models.RoleLibrarian}, "token-a"))
	require.NoError(t, store.Establish(models.Identity{Username: "bob", Role: models.RoleUser}, "token-b"))

	identity, credential := store.Restore()
	require.NotNil(t, identity)
	assert.Equal(t, "bob", identity.Username)
	assert.Equal(t, "token-b", credential)
}

func TestStore_ClearRemovesBothKeys(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Establish(models.Identity{Username: "alice", Role: models.RoleAdmin}, "token"))
	require.NoError(t, store.Clear())

	identity, credential := store.Restore()
	assert.Nil(t, identity)
	assert.Empty(t, credential)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	identity, _ := store.Restore()
	assert.Nil(t, identity)
}

func TestStore_GenerationAdvances(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Establish(models.Identity{Username: "alice", Role: models.RoleAdmin}, "token"))
	afterLogin := store.Generation()
	assert.EqualValues(t, 1, afterLogin)

	// Clearing advances the generation even when nothing was stored, so
	// cookies minted before a logout always stop validating.
	require.NoError(t, store.Clear())
	assert.Greater(t, store.Generation(), afterLogin)
}

func TestStore_CorruptedIdentityTreatedAsNoSession(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Establish(models.Identity{Username: "alice", Role: models.RoleAdmin}, "token"))
	_, err := store.db.Exec("UPDATE session_state SET value = ? WHERE key = ?", "{not valid json", "identity")
	require.NoError(t, err)

	identity, credential := store.Restore()
	assert.Nil(t, identity)
	assert.Empty(t, credential)
}
