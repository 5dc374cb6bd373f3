package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/mimir/internal/export"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/parser"
)

func fixture() models.Entry {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.Entry{
		ID:       "caching-strategy",
		Category: "pattern",
		Title:    "Caching strategy",
		Tags:     []string{"cache", "redis"},
		Content:  "Use write-through caching for the hot path.",
		Metadata: map[string]interface{}{"source": "review"},
		Created:  created,
		Updated:  created.Add(time.Hour),
	}
}

func TestWriteLayout(t *testing.T) {
	dir := t.TempDir()
	entries := []models.Entry{
		fixture(),
		{ID: "first-decision", Category: "decision", Title: "First decision",
			Content: "We chose Go.", Created: time.Now().UTC(), Updated: time.Now().UTC()},
	}

	n, err := export.Write(entries, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("written = %d", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pattern", "caching-strategy.md"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		t.Error("file does not start with frontmatter")
	}
	if !strings.Contains(text, "# Caching strategy") {
		t.Error("missing title heading")
	}
	if !strings.Contains(text, "*KB Entry: `caching-strategy` | Category: pattern | Updated: 2024-03-01*") {
		t.Errorf("missing footer:\n%s", text)
	}

	if _, err := os.Stat(filepath.Join(dir, "decision", "first-decision.md")); err != nil {
		t.Errorf("per-category layout: %v", err)
	}
}

// An exported file must parse back to the same entry, without accreting
// the generated heading or footer into the content.
func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := fixture()

	if _, err := export.Write([]models.Entry{want}, dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "pattern", "caching-strategy.md"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := parser.Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != want.ID || got.Category != want.Category || got.Title != want.Title {
		t.Errorf("identity fields: %+v", got)
	}
	if got.Content != want.Content {
		t.Errorf("content = %q, want %q", got.Content, want.Content)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "cache" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["source"] != "review" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if !got.Created.Equal(want.Created) || !got.Updated.Equal(want.Updated) {
		t.Errorf("times = %v/%v", got.Created, got.Updated)
	}
}
