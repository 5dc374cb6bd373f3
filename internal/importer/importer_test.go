package importer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mimir/internal/importer"
	"github.com/starford/mimir/internal/testutil"
)

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "pattern", "good-one.md"),
		"---\nid: good-one\ntitle: Good one\ncategory: pattern\n---\nbody one\n")
	write(t, filepath.Join(dir, "good-two.md"),
		"---\nid: good-two\ntitle: Good two\n---\nbody two\n")
	write(t, filepath.Join(dir, "no-front.md"), "just text\n")
	write(t, filepath.Join(dir, "no-title.md"), "---\nid: x\n---\nbody\n")
	write(t, filepath.Join(dir, "readme.txt"), "ignored extension\n")

	db := testutil.TestStore(t)
	imported, skipped, err := importer.ImportDir(db, dir)
	if err != nil {
		t.Fatal(err)
	}
	if imported != 2 || skipped != 2 {
		t.Errorf("imported/skipped = %d/%d, want 2/2", imported, skipped)
	}

	got, err := db.Get("good-one")
	if err != nil {
		t.Fatal(err)
	}
	if got.Category != "pattern" || got.Content != "body one" {
		t.Errorf("entry = %+v", got)
	}
}

func TestImportDirMissing(t *testing.T) {
	db := testutil.TestStore(t)
	imported, skipped, err := importer.ImportDir(db, filepath.Join(t.TempDir(), "nope"))
	if err != nil || imported != 0 || skipped != 0 {
		t.Errorf("missing dir: %d/%d/%v", imported, skipped, err)
	}
}

// Re-importing the same file replaces the entry instead of duplicating it.
func TestImportFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entry.md")
	write(t, path, "---\nid: repeat-entry\ntitle: Repeat\n---\nfirst\n")

	db := testutil.TestStore(t)
	if ok, err := importer.ImportFile(db, path); err != nil || !ok {
		t.Fatalf("first import: %v/%v", ok, err)
	}
	write(t, path, "---\nid: repeat-entry\ntitle: Repeat\n---\nsecond\n")
	if ok, err := importer.ImportFile(db, path); err != nil || !ok {
		t.Fatalf("second import: %v/%v", ok, err)
	}

	if n, _ := db.Count(); n != 1 {
		t.Errorf("count = %d", n)
	}
	got, err := db.Get("repeat-entry")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "second" {
		t.Errorf("content = %q", got.Content)
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
