package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/models"
)

// encodeEmbedding serializes a vector into sqlite-vec's little-endian
// float32 blob format. A nil/empty vector encodes as NULL.
func encodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(vec)
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

// SetEmbedding attaches a vector to an existing entry.
func (db *DB) SetEmbedding(id string, vec []float32, updated time.Time) error {
	blob, err := encodeEmbedding(vec)
	if err != nil {
		return fmt.Errorf("store: encode embedding: %w", err)
	}
	res, err := db.conn.Exec(`UPDATE knowledge SET embedding = ?, updated = ? WHERE id = ?`,
		blob, updated, id)
	if err != nil {
		return fmt.Errorf("store: set embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: entry %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// EmbeddingCoverage returns how many entries carry a vector and the total
// entry count. The analyzer uses this to distinguish "no findings" from
// "could not compute".
func (db *DB) EmbeddingCoverage() (withEmbeddings, total int, err error) {
	err = db.conn.QueryRow(`SELECT COUNT(embedding), COUNT(*) FROM knowledge`).
		Scan(&withEmbeddings, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("store: embedding coverage: %w", err)
	}
	return withEmbeddings, total, nil
}

// CosineSimilarity computes the cosine similarity of two raw vectors
// through sqlite-vec. Vectors of differing length are a configuration
// error, never a silently wrong result.
func (db *DB) CosineSimilarity(a, b []float32) (float64, error) {
	if !db.vecOK {
		return 0, fmt.Errorf("store: sqlite-vec functions unavailable")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("store: %w: %d vs %d", apperr.ErrDimension, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("store: %w: empty vectors", apperr.ErrDimension)
	}
	ab, err := encodeEmbedding(a)
	if err != nil {
		return 0, fmt.Errorf("store: encode vector: %w", err)
	}
	bb, err := encodeEmbedding(b)
	if err != nil {
		return 0, fmt.Errorf("store: encode vector: %w", err)
	}
	var sim float64
	if err := db.conn.QueryRow(`SELECT 1.0 - vec_distance_cosine(?, ?)`, ab, bb).Scan(&sim); err != nil {
		return 0, fmt.Errorf("store: cosine similarity: %w", err)
	}
	return sim, nil
}

// SimilarPair is one all-pairs similarity hit. Pairs are emitted once, with
// id1 < id2, so an entry is never compared to itself and no pair repeats.
type SimilarPair struct {
	ID1        string
	Title1     string
	Category1  string
	Content1   string
	ID2        string
	Title2     string
	Category2  string
	Content2   string
	Similarity float64
}

// SimilarPairs cross-joins all embedded entries and returns pairs whose
// cosine similarity falls in (min, max], sorted descending. Float rounding
// in vec_distance_cosine can push identical vectors a hair past 1.0, so
// similarity is clamped to 1.0 before the band check; byte-identical
// embeddings always land inside (min, 1.0]. Mixing embedding dimensions
// fails the whole query; that error is fatal upstream.
func (db *DB) SimilarPairs(min, max float64) ([]SimilarPair, error) {
	if !db.vecOK {
		return nil, fmt.Errorf("store: sqlite-vec functions unavailable")
	}
	rows, err := db.conn.Query(`
		SELECT * FROM (
			SELECT a.id, a.title, a.category, a.content,
			       b.id, b.title, b.category, b.content,
			       MIN(1.0, 1.0 - vec_distance_cosine(a.embedding, b.embedding)) AS similarity
			FROM knowledge a
			JOIN knowledge b ON a.id < b.id
			WHERE a.embedding IS NOT NULL
			  AND b.embedding IS NOT NULL
		)
		WHERE similarity > ? AND similarity <= ?
		ORDER BY similarity DESC
	`, min, max)
	if err != nil {
		return nil, fmt.Errorf("store: similar pairs: %w", err)
	}
	defer rows.Close()

	var out []SimilarPair
	for rows.Next() {
		var p SimilarPair
		err := rows.Scan(&p.ID1, &p.Title1, &p.Category1, &p.Content1,
			&p.ID2, &p.Title2, &p.Category2, &p.Content2, &p.Similarity)
		if err != nil {
			return nil, fmt.Errorf("store: scan pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SimilarFilter narrows SearchSimilar results. Zero values mean "no
// constraint"; tags match any-of, the same as ListFilter.
type SimilarFilter struct {
	Threshold float64
	Category  string
	Tags      []string
	DateAfter time.Time
	Limit     int
}

// SearchSimilar ranks entries by cosine similarity against a query vector,
// restricted to entries passing the filter.
func (db *DB) SearchSimilar(query []float32, f SimilarFilter) ([]models.EntrySummary, error) {
	if !db.vecOK {
		return nil, fmt.Errorf("store: sqlite-vec functions unavailable")
	}
	blob, err := encodeEmbedding(query)
	if err != nil {
		return nil, fmt.Errorf("store: encode query vector: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	where := []string{"embedding IS NOT NULL"}
	args := []interface{}{blob}
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
	args = append(args, f.Threshold, limit)

	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT * FROM (
			SELECT id, category, title, tags, substr(content, 1, 300) AS preview, updated,
			       1.0 - vec_distance_cosine(embedding, ?) AS score
			FROM knowledge
			WHERE %s
		)
		WHERE score >= ?
		ORDER BY score DESC
		LIMIT ?
	`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, fmt.Errorf("store: search similar: %w", err)
	}
	defer rows.Close()

	var out []models.EntrySummary
	for rows.Next() {
		var s models.EntrySummary
		var tagsJSON string
		if err := rows.Scan(&s.ID, &s.Category, &s.Title, &tagsJSON, &s.Preview, &s.Updated, &s.Score); err != nil {
			return nil, fmt.Errorf("store: scan similar: %w", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}
