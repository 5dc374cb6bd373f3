package store

import (
	"fmt"

	"github.com/starford/mimir/internal/models"
)

// AddLink records a directed typed relation. Inserting an existing
// (from, to) pair is a no-op; endpoint existence is checked by the caller.
func (db *DB) AddLink(fromID, toID, linkType string) error {
	if linkType == "" {
		linkType = "related"
	}
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO links (from_id, to_id, link_type) VALUES (?, ?, ?)
	`, fromID, toID, linkType)
	if err != nil {
		return fmt.Errorf("store: add link: %w", err)
	}
	return nil
}

// LinksFor returns every link where id is either endpoint.
func (db *DB) LinksFor(id string) ([]models.Link, error) {
	rows, err := db.conn.Query(`
		SELECT from_id, to_id, link_type FROM links
		WHERE from_id = ? OR to_id = ?
		ORDER BY from_id, to_id
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("store: links for %q: %w", id, err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.FromID, &l.ToID, &l.Type); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AllLinks returns the full link set ordered by endpoints.
func (db *DB) AllLinks() ([]models.Link, error) {
	rows, err := db.conn.Query(`SELECT from_id, to_id, link_type FROM links ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("store: all links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.FromID, &l.ToID, &l.Type); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
