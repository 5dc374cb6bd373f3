//go:build sqlite_fts5

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/mimir/internal/models"
)

const ftsEnabled = true

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(conn *sql.DB, id, title, content string) error {
	_, _ = conn.Exec(`DELETE FROM knowledge_fts WHERE id = ?`, id)
	_, err := conn.Exec(`INSERT INTO knowledge_fts (id, title, content) VALUES (?, ?, ?)`,
		id, title, content)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(conn *sql.DB, id string) {
	_, _ = conn.Exec(`DELETE FROM knowledge_fts WHERE id = ?`, id)
}

// RebuildFTS repopulates the full-text index from the knowledge table.
// Called once after every bootstrap load.
func (db *DB) RebuildFTS() error {
	if _, err := db.conn.Exec(`DELETE FROM knowledge_fts`); err != nil {
		return fmt.Errorf("store: clear fts: %w", err)
	}
	_, err := db.conn.Exec(`
		INSERT INTO knowledge_fts (id, title, content)
		SELECT id, title, content FROM knowledge
	`)
	if err != nil {
		return fmt.Errorf("store: rebuild fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search ranked by bm25 relevance.
// Transcript entries are excluded unless includeTranscripts is set.
func (db *DB) Search(query string, limit int, includeTranscripts bool) ([]models.EntrySummary, error) {
	if limit <= 0 {
		limit = 10
	}
	transcriptSQL := "AND k.category <> 'transcript'"
	if includeTranscripts {
		transcriptSQL = ""
	}
	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT k.id, k.category, k.title, k.tags,
		       substr(k.content, 1, 400),
		       k.updated,
		       -bm25(knowledge_fts) AS score
		FROM knowledge_fts
		JOIN knowledge k ON k.id = knowledge_fts.id
		WHERE knowledge_fts MATCH ? %s
		ORDER BY score DESC
		LIMIT ?
	`, transcriptSQL), query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []models.EntrySummary
	for rows.Next() {
		var s models.EntrySummary
		var tagsJSON string
		if err := rows.Scan(&s.ID, &s.Category, &s.Title, &tagsJSON, &s.Preview, &s.Updated, &s.Score); err != nil {
			return nil, fmt.Errorf("store: scan search: %w", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}
