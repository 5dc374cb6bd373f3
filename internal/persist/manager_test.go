package persist_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/persist"
)

func testConfig(t *testing.T) persist.Config {
	t.Helper()
	dir := t.TempDir()
	return persist.Config{
		SnapshotPath:       filepath.Join(dir, "knowledge.parquet"),
		AccessSnapshotPath: filepath.Join(dir, "kb_access.parquet"),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	mgr := persist.NewManager(cfg, quietLogger())
	db, err := mgr.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	entry := &models.Entry{
		ID:       "caching-strategy",
		Category: "pattern",
		Title:    "Caching strategy",
		Tags:     []string{"zeta", "alpha", "cache"},
		Content:  "Use write-through caching.",
		Metadata: map[string]interface{}{"source": "review"},
		Embedding: []float32{
			0.25, -0.5, 0.125,
		},
		Created: created,
		Updated: created.Add(time.Hour),
	}
	if err := db.Upsert(entry); err != nil {
		t.Fatal(err)
	}
	if err := db.Upsert(&models.Entry{
		ID: "bare-entry", Category: "other", Title: "Bare", Content: "no vector, no tags",
		Created: created, Updated: created,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.LogAccess(7, "upsert", []string{"caching-strategy"}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Release(); err != nil {
		t.Fatal(err)
	}

	// A second manager over the same files must reconstruct the store
	// exactly.
	mgr2 := persist.NewManager(cfg, quietLogger())
	db2, err := mgr2.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr2.Release()

	got, err := db2.Get("caching-strategy")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != entry.Title || got.Category != entry.Category || got.Content != entry.Content {
		t.Errorf("fields changed: %+v", got)
	}
	// Tag order is preserved verbatim, not resorted.
	if !reflect.DeepEqual(got.Tags, []string{"zeta", "alpha", "cache"}) {
		t.Errorf("tags = %v", got.Tags)
	}
	if !reflect.DeepEqual(got.Embedding, entry.Embedding) {
		t.Errorf("embedding = %v, want %v", got.Embedding, entry.Embedding)
	}
	if got.Metadata["source"] != "review" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if !got.Created.Equal(entry.Created) || !got.Updated.Equal(entry.Updated) {
		t.Errorf("times = %v/%v", got.Created, got.Updated)
	}

	bare, err := db2.Get("bare-entry")
	if err != nil {
		t.Fatal(err)
	}
	if bare.HasEmbedding() {
		t.Error("empty embedding came back non-empty")
	}

	log, err := db2.AccessLog()
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Session != 7 || log[0].EntryID != "caching-strategy" {
		t.Errorf("access log = %+v", log)
	}
}

func TestAcquireIdempotent(t *testing.T) {
	mgr := persist.NewManager(testConfig(t), quietLogger())
	ctx := context.Background()

	db1, err := mgr.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Release()
	db2, err := mgr.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if db1 != db2 {
		t.Error("second Acquire returned a different handle")
	}
}

func TestBootstrapFromMarkdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarkdownDir = t.TempDir()

	writeFile(t, filepath.Join(cfg.MarkdownDir, "pattern", "good-one.md"),
		"---\nid: good-one\ntitle: Good one\ncategory: pattern\n---\nbody\n")
	writeFile(t, filepath.Join(cfg.MarkdownDir, "good-two.md"),
		"---\nid: good-two\ntitle: Good two\n---\nbody\n")
	writeFile(t, filepath.Join(cfg.MarkdownDir, "broken.md"), "no frontmatter here\n")
	writeFile(t, filepath.Join(cfg.MarkdownDir, "notes.txt"), "not markdown\n")

	mgr := persist.NewManager(cfg, quietLogger())
	db, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Release()

	if n, _ := db.Count(); n != 2 {
		t.Errorf("count = %d, want 2 (malformed files skipped)", n)
	}
	// The bootstrap result is persisted immediately.
	if _, err := os.Stat(cfg.SnapshotPath); err != nil {
		t.Errorf("snapshot not written after bootstrap: %v", err)
	}
}

func TestBootstrapEmptyMarkdownDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarkdownDir = t.TempDir()

	mgr := persist.NewManager(cfg, quietLogger())
	db, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Release()

	if n, _ := db.Count(); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestLegacyMigration(t *testing.T) {
	cfg := testConfig(t)
	cfg.LegacyPath = filepath.Join(t.TempDir(), "legacy.db")
	seedLegacy(t, cfg.LegacyPath)

	mgr := persist.NewManager(cfg, quietLogger())
	db, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.Get("legacy-entry")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Legacy entry" || got.Category != "decision" {
		t.Errorf("migrated entry = %+v", got)
	}
	// Migration snapshots immediately, so the legacy file is read only once.
	if _, err := os.Stat(cfg.SnapshotPath); err != nil {
		t.Errorf("snapshot not written after migration: %v", err)
	}
	if err := mgr.Release(); err != nil {
		t.Fatal(err)
	}

	// Subsequent runs load the snapshot, not the legacy file.
	if err := os.Remove(cfg.LegacyPath); err != nil {
		t.Fatal(err)
	}
	mgr2 := persist.NewManager(cfg, quietLogger())
	db2, err := mgr2.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr2.Release()
	if _, err := db2.Get("legacy-entry"); err != nil {
		t.Errorf("entry missing after snapshot reload: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedLegacy builds a single-file store with the historical schema.
func seedLegacy(t *testing.T, path string) {
	t.Helper()
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_, err = conn.Exec(`
		CREATE TABLE knowledge (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			content TEXT NOT NULL,
			metadata TEXT,
			embedding BLOB,
			created DATETIME NOT NULL,
			updated DATETIME NOT NULL
		)`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`
		INSERT INTO knowledge (id, category, title, tags, content, created, updated)
		VALUES ('legacy-entry', 'decision', 'Legacy entry', '["old"]', 'carried over',
		        '2023-02-01 00:00:00', '2023-02-01 00:00:00')`)
	if err != nil {
		t.Fatal(err)
	}
}
