package kbservice

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/models"
)

// ListResult reports the outcome of a list mutation.
type ListResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Item      string `json:"item,omitempty"`
	Removed   string `json:"removed,omitempty"`
	ItemCount int    `json:"item_count"`
}

// ListAdd appends "- item" to a list entry, creating the entry when it does
// not exist yet. This is the only write path for protected list entries.
func (s *Service) ListAdd(id, item, title, category string) (*ListResult, error) {
	if strings.TrimSpace(item) == "" {
		return nil, fmt.Errorf("%w: list item must not be empty", apperr.ErrValidation)
	}

	now := time.Now().UTC()
	entry, err := s.db.Get(id)
	if err == nil {
		content := strings.TrimRight(entry.Content, " \t\r\n") + "\n- " + item + "\n"
		if err := s.db.UpdateContent(id, content, now); err != nil {
			return nil, err
		}
		if err := s.flusher.Flush(); err != nil {
			return nil, err
		}
		return &ListResult{ID: id, Status: "added", Item: item, ItemCount: countItems(content)}, nil
	}

	if title == "" {
		title = titleFromID(id)
	}
	if category == "" {
		category = "other"
	}
	fresh := &models.Entry{
		ID:       id,
		Category: category,
		Title:    title,
		Tags:     []string{category},
		Content:  "- " + item + "\n",
		Created:  now,
		Updated:  now,
	}
	if err := s.db.Upsert(fresh); err != nil {
		return nil, err
	}
	if err := s.flusher.Flush(); err != nil {
		return nil, err
	}
	return &ListResult{ID: id, Status: "created", Item: item, ItemCount: 1}, nil
}

// ListRemove deletes the first "- " line whose text contains match,
// case-insensitively. The error message for a miss carries a sample of the
// current items so the caller can correct the match text.
func (s *Service) ListRemove(id, match string) (*ListResult, error) {
	entry, err := s.db.Get(id)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(match)
	lines := strings.Split(entry.Content, "\n")
	removed := ""
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if removed == "" && strings.HasPrefix(trimmed, "- ") &&
			strings.Contains(strings.ToLower(line), needle) {
			removed = trimmed
			continue
		}
		kept = append(kept, line)
	}

	if removed == "" {
		sample := listItems(lines, 5)
		return nil, apperr.WithDetails(
			fmt.Errorf("%w: no item matching %q", apperr.ErrNotFound, match),
			map[string]interface{}{"items": sample})
	}

	content := strings.Join(kept, "\n")
	if err := s.db.UpdateContent(id, content, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.flusher.Flush(); err != nil {
		return nil, err
	}
	return &ListResult{ID: id, Status: "removed", Removed: removed, ItemCount: countItems(content)}, nil
}

// titleFromID turns "accumulator-corrections" into "Accumulator Corrections".
func titleFromID(id string) string {
	words := strings.Split(id, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func countItems(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			n++
		}
	}
	return n
}

func listItems(lines []string, max int) []string {
	var items []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			items = append(items, trimmed)
			if len(items) == max {
				break
			}
		}
	}
	return items
}
