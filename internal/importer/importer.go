// Package importer loads frontmatter Markdown files into the record store,
// both as a bulk import and as a live directory watcher.
package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/parser"
	"github.com/starford/mimir/internal/store"
)

// ImportDir walks a directory tree and upserts every parseable .md file.
// Malformed files are skipped and counted, never fatal; a missing or empty
// tree yields zero entries and no error.
func ImportDir(db *store.DB, dir string) (imported, skipped int, err error) {
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		return 0, 0, nil
	}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		n, impErr := ImportFile(db, path)
		if impErr != nil {
			return impErr
		}
		if n {
			imported++
		} else {
			skipped++
		}
		return nil
	})
	if walkErr != nil {
		return 0, 0, walkErr
	}
	return imported, skipped, nil
}

// ImportFile upserts a single Markdown file. It returns false when the file
// cannot be read or parsed; only store write failures are errors.
func ImportFile(db *store.DB, path string) (bool, error) {
	ok, _, err := importFile(db, path)
	return ok, err
}

func importFile(db *store.DB, path string) (bool, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, "", nil
	}
	sum := checksum.Sum(data)
	entry, err := parser.Parse(data)
	if err != nil {
		return false, sum, nil
	}
	if err := db.Upsert(entry); err != nil {
		return false, sum, err
	}
	return true, sum, nil
}
