package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/minder/internal/domain"
)

// StateStore persists one versioned ActorState blob per user. The blob is a
// cache over the conversation log: loading a missing row is not an error,
// the actor simply rebuilds from the log.
type StateStore struct {
	db *DB
}

// NewStateStore creates an actor state store using the given database.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Load returns a user's actor state and its version, or (nil, 0) when no
// blob has been written yet.
func (s *StateStore) Load(userID string) (*domain.ActorState, int64, error) {
	var payload string
	var version int64
	err := s.db.sql.QueryRow(
		`SELECT payload, version FROM actor_state WHERE user_id = ?`, userID,
	).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading actor state: %w", err)
	}

	var state domain.ActorState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, 0, fmt.Errorf("decoding actor state: %w", err)
	}
	return &state, version, nil
}

// Save writes a user's actor state, bumping the version counter.
func (s *StateStore) Save(userID string, state *domain.ActorState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding actor state: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO actor_state (user_id, version, payload, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   version = version + 1,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		userID, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving actor state: %w", err)
	}
	return nil
}
