package store

import (
	"fmt"
	"time"

	"github.com/starford/mimir/internal/models"
)

// LogAccess appends one audit row per touched entry id. A session of 0
// means "no session set" and the call is a no-op, as is an empty id list.
func (db *DB) LogAccess(session int64, op string, ids []string) error {
	if session == 0 || len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, id := range ids {
		_, err := db.conn.Exec(`
			INSERT INTO kb_access (timestamp, session, op, id) VALUES (?, ?, ?, ?)
		`, now, session, op, id)
		if err != nil {
			return fmt.Errorf("store: log access: %w", err)
		}
	}
	return nil
}

// InsertAccess loads one audit row verbatim (snapshot restore path).
func (db *DB) InsertAccess(rec models.AccessRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO kb_access (timestamp, session, op, id) VALUES (?, ?, ?, ?)
	`, rec.Timestamp, rec.Session, rec.Op, rec.EntryID)
	if err != nil {
		return fmt.Errorf("store: insert access: %w", err)
	}
	return nil
}

// AccessLog returns the full audit trail in insertion order.
func (db *DB) AccessLog() ([]models.AccessRecord, error) {
	rows, err := db.conn.Query(`SELECT timestamp, session, op, id FROM kb_access ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: access log: %w", err)
	}
	defer rows.Close()

	var out []models.AccessRecord
	for rows.Next() {
		var r models.AccessRecord
		if err := rows.Scan(&r.Timestamp, &r.Session, &r.Op, &r.EntryID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
