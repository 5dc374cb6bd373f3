//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/mimir/internal/models"
)

const ftsEnabled = false

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; full-text search falls back to LIKE matching
	// against the knowledge table itself.
	return nil
}

func ftsUpsert(_ *sql.DB, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.DB, _ string) {}

// RebuildFTS is a no-op without FTS5: the knowledge table is the index.
func (db *DB) RebuildFTS() error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). Results carry no relevance score.
func (db *DB) Search(query string, limit int, includeTranscripts bool) ([]models.EntrySummary, error) {
	if limit <= 0 {
		limit = 10
	}
	transcriptSQL := "AND category <> 'transcript'"
	if includeTranscripts {
		transcriptSQL = ""
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT id, category, title, tags, substr(content, 1, 400), updated
		FROM knowledge
		WHERE (title LIKE ? OR content LIKE ? OR id LIKE ?) %s
		ORDER BY updated DESC
		LIMIT ?
	`, transcriptSQL), like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []models.EntrySummary
	for rows.Next() {
		var s models.EntrySummary
		var tagsJSON string
		if err := rows.Scan(&s.ID, &s.Category, &s.Title, &tagsJSON, &s.Preview, &s.Updated); err != nil {
			return nil, fmt.Errorf("store: scan search: %w", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}
