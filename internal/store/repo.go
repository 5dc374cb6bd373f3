package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/models"
)

// Upsert inserts or updates an entry by id. On update every field except
// created is replaced; a nil embedding keeps the previously stored vector.
func (db *DB) Upsert(e *models.Entry) error {
	tagsJSON, _ := json.Marshal(normalizedTags(e.Tags))
	metaJSON, err := marshalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	emb, err := encodeEmbedding(e.Embedding)
	if err != nil {
		return fmt.Errorf("store: encode embedding: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO knowledge (id, category, title, tags, content, metadata, embedding, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category  = excluded.category,
			title     = excluded.title,
			tags      = excluded.tags,
			content   = excluded.content,
			metadata  = excluded.metadata,
			embedding = COALESCE(excluded.embedding, knowledge.embedding),
			updated   = excluded.updated
	`, e.ID, e.Category, e.Title, string(tagsJSON), e.Content, metaJSON, emb, e.Created, e.Updated)
	if err != nil {
		return fmt.Errorf("store: upsert: %w", err)
	}

	return ftsUpsert(db.conn, e.ID, e.Title, e.Content)
}

// Get returns the entry with the given id, or apperr.ErrNotFound.
func (db *DB) Get(id string) (*models.Entry, error) {
	row := db.conn.QueryRow(`
		SELECT id, category, title, tags, content, metadata, embedding, created, updated
		FROM knowledge WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: entry %q: %w", id, apperr.ErrNotFound)
	}
	return e, err
}

// Exists reports whether an entry with the given id is present.
func (db *DB) Exists(id string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM knowledge WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return true, nil
}

// Delete removes an entry and cascades to every link touching it.
func (db *DB) Delete(id string) error {
	res, err := db.conn.Exec(`DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: entry %q: %w", id, apperr.ErrNotFound)
	}
	if _, err := db.conn.Exec(`DELETE FROM links WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return fmt.Errorf("store: cascade links: %w", err)
	}
	ftsDelete(db.conn, id)
	return nil
}

// UpdateContent replaces the content field in place (list-style edits).
func (db *DB) UpdateContent(id, content string, updated time.Time) error {
	res, err := db.conn.Exec(`UPDATE knowledge SET content = ?, updated = ? WHERE id = ?`,
		content, updated, id)
	if err != nil {
		return fmt.Errorf("store: update content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: entry %q: %w", id, apperr.ErrNotFound)
	}
	var title string
	if err := db.conn.QueryRow(`SELECT title FROM knowledge WHERE id = ?`, id).Scan(&title); err != nil {
		return fmt.Errorf("store: update content: %w", err)
	}
	return ftsUpsert(db.conn, id, title, content)
}

// All returns every entry ordered by id, embeddings included.
func (db *DB) All() ([]models.Entry, error) {
	rows, err := db.conn.Query(`
		SELECT id, category, title, tags, content, metadata, embedding, created, updated
		FROM knowledge ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Count returns the number of entries.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM knowledge`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// ListFilter narrows List results. Zero values mean "no constraint".
// Tags match any-of: an entry qualifies when it carries at least one of
// the listed tags.
type ListFilter struct {
	Category  string
	Tags      []string
	DateAfter time.Time
	Limit     int
	Offset    int
}

// List returns entry summaries matching the filter, newest first.
// The preview is the first 200 characters of content.
func (db *DB) List(f ListFilter) ([]models.EntrySummary, error) {
	var where []string
	var args []interface{}

	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		var or []string
		for _, t := range f.Tags {
			or = append(or, `EXISTS (SELECT 1 FROM json_each(knowledge.tags) WHERE json_each.value = ?)`)
			args = append(args, strings.ToLower(strings.TrimSpace(t)))
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}
	if !f.DateAfter.IsZero() {
		where = append(where, "updated > ?")
		args = append(args, f.DateAfter)
	}

	whereSQL := "1=1"
	if len(where) > 0 {
		whereSQL = strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)

	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT id, category, title, tags, substr(content, 1, 200), updated
		FROM knowledge
		WHERE %s
		ORDER BY updated DESC
		LIMIT ? OFFSET ?
	`, whereSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []models.EntrySummary
	for rows.Next() {
		var s models.EntrySummary
		var tagsJSON string
		if err := rows.Scan(&s.ID, &s.Category, &s.Title, &tagsJSON, &s.Preview, &s.Updated); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats is the aggregate view returned by the get_stats tool.
type Stats struct {
	TotalEntries   int            `json:"total_entries"`
	Categories     int            `json:"categories"`
	UniqueTags     int            `json:"unique_tags"`
	WithEmbeddings int            `json:"with_embeddings"`
	Links          int            `json:"links"`
	ByCategory     map[string]int `json:"by_category,omitempty"`
}

// Stats aggregates entry, tag, and link counts.
func (db *DB) Stats(detailed bool) (*Stats, error) {
	st := &Stats{}
	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT category),
		       COUNT(embedding)
		FROM knowledge
	`).Scan(&st.TotalEntries, &st.Categories, &st.WithEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	err = db.conn.QueryRow(`
		SELECT COUNT(DISTINCT value) FROM knowledge, json_each(knowledge.tags)
	`).Scan(&st.UniqueTags)
	if err != nil {
		return nil, fmt.Errorf("store: stats tags: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&st.Links); err != nil {
		return nil, fmt.Errorf("store: stats links: %w", err)
	}

	if detailed {
		rows, err := db.conn.Query(`SELECT category, COUNT(*) FROM knowledge GROUP BY category`)
		if err != nil {
			return nil, fmt.Errorf("store: stats by category: %w", err)
		}
		defer rows.Close()
		st.ByCategory = make(map[string]int)
		for rows.Next() {
			var cat string
			var n int
			if err := rows.Scan(&cat, &n); err != nil {
				return nil, err
			}
			st.ByCategory[cat] = n
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// RawQuery runs a caller-supplied read-only query. Only SELECT statements
// are accepted; execution errors are returned to the caller as data.
func (db *DB) RawQuery(query string) ([]map[string]interface{}, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, fmt.Errorf("store: %w: only SELECT queries allowed", apperr.ErrValidation)
	}
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("store: raw query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: raw query columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: raw query scan: %w", err)
		}
		rec := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(r rowScanner) (*models.Entry, error) {
	var e models.Entry
	var tagsJSON string
	var metaJSON sql.NullString
	var emb []byte
	err := r.Scan(&e.ID, &e.Category, &e.Title, &tagsJSON, &e.Content, &metaJSON, &emb, &e.Created, &e.Updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags for %q: %w", e.ID, err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("store: decode metadata for %q: %w", e.ID, err)
		}
	}
	vec, err := decodeEmbedding(emb)
	if err != nil {
		return nil, fmt.Errorf("store: decode embedding for %q: %w", e.ID, err)
	}
	e.Embedding = vec
	return &e, nil
}

func marshalMetadata(m map[string]interface{}) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func normalizedTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
