// Package testutil provides shared test helpers for setting up stores and fixtures.
package testutil

import (
	"testing"
	"time"

	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/store"
)

// TestStore creates an in-memory record store that is automatically closed.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Entry builds an entry fixture with current timestamps.
func Entry(id, category, title string, tags []string, content string) *models.Entry {
	now := time.Now().UTC()
	return &models.Entry{
		ID:       id,
		Category: category,
		Title:    title,
		Tags:     tags,
		Content:  content,
		Created:  now,
		Updated:  now,
	}
}

// MustUpsert writes an entry and fails the test on error.
func MustUpsert(t *testing.T, db *store.DB, e *models.Entry) {
	t.Helper()
	if err := db.Upsert(e); err != nil {
		t.Fatalf("upsert %s: %v", e.ID, err)
	}
}
