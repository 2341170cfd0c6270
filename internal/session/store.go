package session

import (
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/models"
)

// Fixed keys in the session_state table. The identity record and the bearer
// credential always move together: established together, cleared together.
const (
	keyIdentity   = "identity"
	keyCredential = "authToken"
	keyGeneration = "generation"
)

// StoreProvider defines the interface for session persistence.
type StoreProvider interface {
	Restore() (*models.Identity, string)
	Establish(identity models.Identity, credential string) error
	Clear() error
	Generation() int64
}

// Store persists the operator session across console restarts.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Restore reads the persisted identity and credential. A missing session or
// an unparsable identity both come back as (nil, ""): the operator simply
// is not logged in. Parse failures are logged, never surfaced.
func (s *Store) Restore() (*models.Identity, string) {
	identityJSON, okID := s.get(keyIdentity)
	credential, okCred := s.get(keyCredential)
	if !okID || !okCred {
		return nil, ""
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(identityJSON), &identity); err != nil {
		log.Warn().Err(err).Msg("Persisted identity is unparsable, treating as no session")
		return nil, ""
	}
	return &identity, credential
}

// Establish persists the identity and credential, replacing any prior
// session, and bumps the session generation.
func (s *Store) Establish(identity models.Identity, credential string) error {
	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := put(tx, keyIdentity, string(identityJSON)); err != nil {
		return err
	}
	if err := put(tx, keyCredential, credential); err != nil {
		return err
	}
	if err := bumpGeneration(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear removes the identity and credential together. Clearing an already
// empty store is a no-op; the generation still advances so outstanding
// operator cookies stop validating.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM session_state WHERE key IN (?, ?)", keyIdentity, keyCredential); err != nil {
		return err
	}
	if err := bumpGeneration(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Generation returns the current session generation. Cookies issued under
// an older generation are rejected by the auth middleware.
func (s *Store) Generation() int64 {
	value, ok := s.get(keyGeneration)
	if !ok {
		return 0
	}
	gen, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

func (s *Store) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM session_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Error().Err(err).Str("key", key).Msg("Failed to read session state")
		}
		return "", false
	}
	return value, true
}

func put(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		"INSERT INTO session_state(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func bumpGeneration(tx *sql.Tx) error {
	var value string
	err := tx.QueryRow("SELECT value FROM session_state WHERE key = ?", keyGeneration).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	current, _ := strconv.ParseInt(value, 10, 64)
	return put(tx, keyGeneration, strconv.FormatInt(current+1, 10))
}
