package parser_test

import (
	"testing"
	"time"

	"github.com/starford/mimir/internal/parser"
)

const sample = `---
id: caching-strategy
category: pattern
title: Caching strategy
tags:
  - cache
  - redis
created: 2024-03-01T10:00:00Z
updated: 2024-06-01T10:00:00Z
metadata:
  source: review
---

# Caching strategy

Use write-through caching for the hot path.

---

*KB Entry: ` + "`caching-strategy`" + ` | Category: pattern | Updated: 2024-06-01*
`

func TestParse(t *testing.T) {
	entry, err := parser.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID != "caching-strategy" || entry.Category != "pattern" {
		t.Errorf("id/category = %s/%s", entry.ID, entry.Category)
	}
	if len(entry.Tags) != 2 || entry.Tags[0] != "cache" {
		t.Errorf("tags = %v", entry.Tags)
	}
	if entry.Metadata["source"] != "review" {
		t.Errorf("metadata = %v", entry.Metadata)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !entry.Created.Equal(want) {
		t.Errorf("created = %v, want %v", entry.Created, want)
	}

	// The duplicate title heading and the export footer are not content.
	if entry.Content != "Use write-through caching for the hot path." {
		t.Errorf("content = %q", entry.Content)
	}
}

func TestParseDefaultsCategory(t *testing.T) {
	entry, err := parser.Parse([]byte("---\nid: x\ntitle: X\n---\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Category != "seed" {
		t.Errorf("category = %q, want seed", entry.Category)
	}
	if entry.Created.IsZero() || entry.Updated.IsZero() {
		t.Error("missing dates must default to now, not zero")
	}
}

func TestParseDateOnlyFormat(t *testing.T) {
	entry, err := parser.Parse([]byte("---\nid: x\ntitle: X\ncreated: 2024-01-15\n---\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Created.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %v", entry.Created)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no frontmatter":           "just a body\n",
		"unterminated frontmatter": "---\nid: x\ntitle: X\nbody\n",
		"missing id":               "---\ntitle: X\n---\nbody\n",
		"missing title":            "---\nid: x\n---\nbody\n",
		"invalid yaml":             "---\nid: [\n---\nbody\n",
	}
	for name, input := range cases {
		if _, err := parser.Parse([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
