package persist

import (
	"fmt"

	"github.com/starford/mimir/internal/store"
)

// migrateLegacy copies every knowledge row out of a legacy single-file
// SQLite store into the in-memory store. The legacy file is attached
// read-only and detached afterwards; it is never modified.
func migrateLegacy(db *store.DB, legacyPath string) (int, error) {
	conn := db.Conn()

	if _, err := conn.Exec(`ATTACH DATABASE ? AS legacy`, "file:"+legacyPath+"?mode=ro"); err != nil {
		return 0, fmt.Errorf("attach: %w", err)
	}

	res, err := conn.Exec(`
		INSERT INTO knowledge (id, category, title, tags, content, metadata, embedding, created, updated)
		SELECT id, category, title, tags, content, metadata, embedding, created, updated
		FROM legacy.knowledge
	`)
	if err != nil {
		_, _ = conn.Exec(`DETACH DATABASE legacy`)
		return 0, fmt.Errorf("copy rows: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := conn.Exec(`DETACH DATABASE legacy`); err != nil {
		return 0, fmt.Errorf("detach: %w", err)
	}
	return int(n), nil
}
