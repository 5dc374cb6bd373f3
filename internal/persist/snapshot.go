package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/starford/mimir/internal/models"
)

// entryRow is the Parquet schema for the knowledge table. Column order and
// types are the durable contract; metadata is carried as a JSON string and
// an empty embedding list encodes "no vector".
type entryRow struct {
	ID        string    `parquet:"id,zstd"`
	Category  string    `parquet:"category,zstd"`
	Title     string    `parquet:"title,zstd"`
	Tags      []string  `parquet:"tags,list,zstd"`
	Content   string    `parquet:"content,zstd"`
	Metadata  string    `parquet:"metadata,optional,zstd"`
	Embedding []float32 `parquet:"embedding,list,zstd"`
	Created   time.Time `parquet:"created,timestamp,zstd"`
	Updated   time.Time `parquet:"updated,timestamp,zstd"`
}

// accessRow is the Parquet schema for the access-log table.
type accessRow struct {
	Timestamp time.Time `parquet:"timestamp,timestamp,zstd"`
	Session   int64     `parquet:"session,zstd"`
	Op        string    `parquet:"op,zstd"`
	EntryID   string    `parquet:"id,zstd"`
}

func writeEntrySnapshot(path string, entries []models.Entry) error {
	rows := make([]entryRow, 0, len(entries))
	for i := range entries {
		row, err := toEntryRow(&entries[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return writeParquet(path, rows)
}

func readEntrySnapshot(path string) ([]models.Entry, error) {
	rows, err := parquet.ReadFile[entryRow](path)
	if err != nil {
		return nil, err
	}
	entries := make([]models.Entry, 0, len(rows))
	for i := range rows {
		e, err := fromEntryRow(&rows[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func writeAccessSnapshot(path string, records []models.AccessRecord) error {
	rows := make([]accessRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, accessRow{
			Timestamp: r.Timestamp,
			Session:   r.Session,
			Op:        r.Op,
			EntryID:   r.EntryID,
		})
	}
	return writeParquet(path, rows)
}

func readAccessSnapshot(path string) ([]models.AccessRecord, error) {
	rows, err := parquet.ReadFile[accessRow](path)
	if err != nil {
		return nil, err
	}
	records := make([]models.AccessRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, models.AccessRecord{
			Timestamp: r.Timestamp,
			Session:   r.Session,
			Op:        r.Op,
			EntryID:   r.EntryID,
		})
	}
	return records, nil
}

// writeParquet writes rows to a temp file in the target directory and
// renames it into place, so a crash mid-write never clobbers the previous
// snapshot.
func writeParquet[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			w.Close()
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func toEntryRow(e *models.Entry) (entryRow, error) {
	row := entryRow{
		ID:        e.ID,
		Category:  e.Category,
		Title:     e.Title,
		Tags:      e.Tags,
		Content:   e.Content,
		Embedding: e.Embedding,
		Created:   e.Created,
		Updated:   e.Updated,
	}
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return entryRow{}, fmt.Errorf("persist: marshal metadata for %q: %w", e.ID, err)
		}
		row.Metadata = string(b)
	}
	return row, nil
}

func fromEntryRow(row *entryRow) (*models.Entry, error) {
	e := &models.Entry{
		ID:        row.ID,
		Category:  row.Category,
		Title:     row.Title,
		Tags:      row.Tags,
		Content:   row.Content,
		Embedding: row.Embedding,
		Created:   row.Created.UTC(),
		Updated:   row.Updated.UTC(),
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("persist: decode metadata for %q: %w", row.ID, err)
		}
	}
	return e, nil
}
