package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/minder/internal/domain"
)

// MessageStore is the durable conversation log, one append-only stream per
// user. Timestamps are stored at nanosecond precision so intra-second
// ordering survives a round trip.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append writes a message to a user's log. A zero ID or timestamp is filled
// in. The stored message is returned.
func (s *MessageStore) Append(userID string, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return domain.Message{}, fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO messages (id, user_id, role, content, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, userID, msg.Role, msg.Content, metadata,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("appending message: %w", err)
	}
	return msg, nil
}

// History returns the most recent limit messages for a user in
// chronological order. A limit of 0 returns the full log.
func (s *MessageStore) History(userID string, limit int) ([]domain.Message, error) {
	var rows *sql.Rows
	var err error

	if limit > 0 {
		// Take the newest N, then flip back to chronological order.
		rows, err = s.db.sql.Query(
			`SELECT id, role, content, metadata, timestamp FROM (
				SELECT id, role, content, metadata, timestamp, rowid
				FROM messages WHERE user_id = ?
				ORDER BY timestamp DESC, rowid DESC LIMIT ?
			) ORDER BY timestamp ASC, rowid ASC`,
			userID, limit,
		)
	} else {
		rows, err = s.db.sql.Query(
			`SELECT id, role, content, metadata, timestamp
			 FROM messages WHERE user_id = ?
			 ORDER BY timestamp ASC, rowid ASC`,
			userID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts string
		var metadata sql.NullString

		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &metadata, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &msg.Metadata)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Count returns the number of messages in a user's log.
func (s *MessageStore) Count(userID string) (int, error) {
	var n int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, err
}
