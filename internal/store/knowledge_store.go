package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KnowledgeChunk is a piece of retrievable knowledge: a past conversation
// turn or an ingested note, indexed for full-text search.
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"` // JSON blob
	CreatedAt time.Time `json:"createdAt"`
	Rank      float64   `json:"rank,omitempty"` // FTS5 rank (search results only)
}

// KnowledgeStore manages retrievable chunks with full-text search via
// SQLite FTS5.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a knowledge store using the given database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Store inserts a knowledge chunk.
func (s *KnowledgeStore) Store(chunk KnowledgeChunk) (KnowledgeChunk, error) {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	chunk.CreatedAt = time.Now()

	var metadata sql.NullString
	if chunk.Metadata != "" {
		metadata = sql.NullString{String: chunk.Metadata, Valid: true}
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO knowledge_chunks (id, user_id, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		chunk.ID, chunk.UserID, chunk.Content, metadata,
		chunk.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return KnowledgeChunk{}, fmt.Errorf("storing chunk: %w", err)
	}
	return chunk, nil
}

// Search finds chunks matching the query using FTS5, ranked by relevance.
// Limit of 0 defaults to 5.
func (s *KnowledgeStore) Search(userID, query string, limit int) ([]KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.sql.Query(
		`SELECT kc.id, kc.user_id, kc.content, kc.metadata, kc.created_at, rank
		 FROM knowledge_fts
		 JOIN knowledge_chunks kc ON kc.rowid = knowledge_fts.rowid
		 WHERE knowledge_fts MATCH ?
		   AND kc.user_id = ?
		 ORDER BY rank
		 LIMIT ?`,
		query, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []KnowledgeChunk
	for rows.Next() {
		var chunk KnowledgeChunk
		var createdAt string
		var metadata sql.NullString

		if err := rows.Scan(
			&chunk.ID, &chunk.UserID, &chunk.Content, &metadata, &createdAt, &chunk.Rank,
		); err != nil {
			return nil, err
		}
		chunk.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if metadata.Valid {
			chunk.Metadata = metadata.String
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteByUser removes all chunks for a user.
func (s *KnowledgeStore) DeleteByUser(userID string) error {
	_, err := s.db.sql.Exec(`DELETE FROM knowledge_chunks WHERE user_id = ?`, userID)
	return err
}
