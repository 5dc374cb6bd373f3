// Package models defines the domain types for Mimir.
package models

import "time"

// Entry represents one knowledge record.
type Entry struct {
	ID        string                 `json:"id"`
	Category  string                 `json:"category"`
	Title     string                 `json:"title"`
	Tags      []string               `json:"tags"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float32              `json:"-"`
	Created   time.Time              `json:"created"`
	Updated   time.Time              `json:"updated"`
}

// HasEmbedding reports whether a semantic vector is attached.
func (e *Entry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// EntrySummary is a lightweight representation returned by list and search
// operations: the content is truncated to a preview.
type EntrySummary struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags"`
	Preview  string    `json:"preview"`
	Updated  time.Time `json:"updated"`
	Score    float64   `json:"score,omitempty"`
}

// Link represents a directed typed edge between two entries.
// A given (FromID, ToID) pair carries at most one type at a time.
type Link struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"link_type"`
}

// AccessRecord is one row of the append-only audit trail of entry touches.
type AccessRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Session   int64     `json:"session"`
	Op        string    `json:"op"`
	EntryID   string    `json:"id"`
}

// Categories accepted by the tool layer. Category is an open string in
// storage; this set drives validation and documentation only.
var Categories = []string{
	"reference", "pattern", "table", "command", "issue", "troubleshooting",
	"project", "decision", "research", "log", "actions", "todo", "seed",
	"transcript", "other",
}
